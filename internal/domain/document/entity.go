package document

import (
	"crypto/sha256"
	"encoding/hex"
)

// Method enum: cara sebuah halaman berhasil diekstrak
type Method string

const (
	MethodNative Method = "native" // PDF text layer
	MethodOCR    Method = "ocr"    // on-device OCR
	MethodVendor Method = "vendor" // paid vendor OCR
	MethodFailed Method = "failed" // all tiers exhausted
)

// SourceDocument immutable input untuk satu analysis run
type SourceDocument struct {
	Hash       string `json:"hash"`
	Content    []byte `json:"-"`
	PageCount  int    `json:"page_count"`
	Company    string `json:"company,omitempty"`
	FiscalYear int    `json:"fiscal_year,omitempty"`
}

// Page hasil ekstraksi satu halaman fisik. Confidence 0..1; pages with
// confidence 0 are unreliable but never fatal downstream.
type Page struct {
	Number     int     `json:"number"` // 1-based
	Text       string  `json:"text"`
	Method     Method  `json:"method"`
	Confidence float64 `json:"confidence"`
}

// HashContent returns the sha256 hex digest used as the dedup/cache key.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
