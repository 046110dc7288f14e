// Package ingest loads documents for extraction: plain text, markdown, and
// PDF text.
package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// maxUploadBytes bounds in-memory reads of uploaded documents.
const maxUploadBytes = 32 << 20 // 32 MiB

// ReadFile loads a document from disk, dispatching on extension.
func ReadFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return readPDF(path)
	case ".txt", ".md", ".markdown", "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read document: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported document type %q", filepath.Ext(path))
	}
}

// Read loads a document from a stream. filename determines the format;
// ledongthuc/pdf needs a ReadSeeker plus size, so PDF streams spill to a
// temp file first.
func Read(r io.Reader, filename string) (string, error) {
	if strings.ToLower(filepath.Ext(filename)) != ".pdf" {
		data, err := io.ReadAll(io.LimitReader(r, maxUploadBytes))
		if err != nil {
			return "", fmt.Errorf("read document: %w", err)
		}
		return string(data), nil
	}

	tmp, err := os.CreateTemp("", "distill-pdf-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, io.LimitReader(r, maxUploadBytes)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	return readPDF(tmpPath)
}

// readPDF extracts plain text from every page, separated by form feeds.
func readPDF(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\f")
		}
		buf.WriteString(text)
	}

	out := strings.TrimSpace(buf.String())
	if out == "" {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return out, nil
}
