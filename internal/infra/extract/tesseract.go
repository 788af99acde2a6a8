package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// TesseractEngine on-device OCR tier: render satu halaman dengan pdftoppm
// lalu OCR dengan tesseract. Output TSV dipakai untuk confidence per kata.
type TesseractEngine struct {
	// WorkDir holds intermediate page rasters; default ./temp
	WorkDir  string
	Language string
	DPI      int
}

func NewTesseractEngine(workDir string) *TesseractEngine {
	if workDir == "" {
		workDir = filepath.Join(".", "temp")
	}
	return &TesseractEngine{WorkDir: workDir, Language: "eng", DPI: 200}
}

// RenderPage rasterizes one page (1-based) to PNG bytes.
func (e *TesseractEngine) RenderPage(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	if err := os.MkdirAll(e.WorkDir, 0o755); err != nil {
		return nil, err
	}
	base := filepath.Join(e.WorkDir, fmt.Sprintf("%s-p%d", strings.TrimSuffix(filepath.Base(pdfPath), ".pdf"), page))

	// jalankan pdftoppm untuk satu halaman saja
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-f", strconv.Itoa(page), "-l", strconv.Itoa(page),
		"-r", strconv.Itoa(e.DPI),
		"-png", "-singlefile",
		pdfPath, base,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %v, output=%s", page, err, string(out))
	}

	pngPath := base + ".png"
	data, err := os.ReadFile(pngPath)
	if err != nil {
		return nil, err
	}
	os.Remove(pngPath)
	return data, nil
}

// RecognizePage OCRs one page and returns text plus mean word confidence
// normalized to 0..1.
func (e *TesseractEngine) RecognizePage(ctx context.Context, pdfPath string, page int) (string, float64, error) {
	png, err := e.RenderPage(ctx, pdfPath, page)
	if err != nil {
		return "", 0, err
	}

	imgPath := filepath.Join(e.WorkDir, fmt.Sprintf("ocr-%s-p%d.png", strings.TrimSuffix(filepath.Base(pdfPath), ".pdf"), page))
	if err := os.WriteFile(imgPath, png, 0o644); err != nil {
		return "", 0, err
	}
	defer os.Remove(imgPath)

	cmd := exec.CommandContext(ctx, "tesseract", imgPath, "stdout", "-l", e.Language, "tsv")
	out, err := cmd.Output()
	if err != nil {
		return "", 0, fmt.Errorf("tesseract page %d: %w", page, err)
	}

	text, conf := ParseTSV(string(out))
	return text, conf, nil
}

// ParseTSV extracts text and mean confidence from tesseract TSV output.
// Kolom: level page block par line word left top width height conf text.
func ParseTSV(tsv string) (string, float64) {
	var b strings.Builder
	var confSum float64
	var words int
	lastLine := ""

	for i, line := range strings.Split(tsv, "\n") {
		if i == 0 { // header
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue // non-word rows report conf -1
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		lineKey := cols[1] + ":" + cols[2] + ":" + cols[3] + ":" + cols[4]
		if lastLine != "" && lineKey != lastLine {
			b.WriteString("\n")
		} else if words > 0 {
			b.WriteString(" ")
		}
		lastLine = lineKey
		b.WriteString(word)
		confSum += conf
		words++
	}

	if words == 0 {
		return "", 0
	}
	return b.String(), confSum / float64(words) / 100
}
