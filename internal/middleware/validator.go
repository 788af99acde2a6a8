package middleware

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Input validation and sanitization utilities

// MaxUploadBytes batas ukuran PDF yang diterima (100 MB). Annual report
// besar tapi gak sebesar itu; lebih dari ini hampir pasti salah file.
const MaxUploadBytes = 100 << 20

// ValidatePDF checks the upload is a plausible PDF: non-empty, within the
// size cap, and starts with the PDF magic bytes.
func ValidatePDF(content []byte) error {
	if len(content) == 0 {
		return fmt.Errorf("empty file")
	}
	if len(content) > MaxUploadBytes {
		return fmt.Errorf("file too large (max %d bytes)", MaxUploadBytes)
	}
	if !bytes.HasPrefix(content, []byte("%PDF-")) {
		return fmt.Errorf("not a PDF file")
	}
	return nil
}

// ValidateFiscalYear sanity range; 0 berarti unknown dan diterima.
func ValidateFiscalYear(year int) error {
	if year == 0 {
		return nil
	}
	if year < 1990 || year > time.Now().Year()+1 {
		return fmt.Errorf("invalid fiscal year: %d", year)
	}
	return nil
}

// ValidateTenantID validates tenant ID format
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}

	// Allow alphanumeric, dash, underscore (max 64 chars)
	pattern := `^[a-zA-Z0-9_-]{1,64}$`
	matched, _ := regexp.MatchString(pattern, tenant)
	if !matched {
		return fmt.Errorf("invalid tenant ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}

	return nil
}

// ValidateJobID validates analysis job / verdict ID format (uuid)
func ValidateJobID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	pattern := `^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`
	matched, _ := regexp.MatchString(pattern, id)
	if !matched {
		return fmt.Errorf("invalid id format")
	}
	return nil
}

// ValidateDocumentHash sha256 hex
func ValidateDocumentHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("document hash cannot be empty")
	}
	matched, _ := regexp.MatchString(`^[a-f0-9]{64}$`, hash)
	if !matched {
		return fmt.Errorf("invalid document hash format")
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
