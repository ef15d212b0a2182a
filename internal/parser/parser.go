package parser

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"document-assistant/internal/models"
)

// SupportedFormat reports whether filename has an extension ExtractText can read.
func SupportedFormat(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".pdf":
		return true
	}
	return false
}

// ExtractText returns the plain text of a saved file, dispatching on its extension.
func ExtractText(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".txt":
		return parseText(filePath)
	case ".pdf":
		return parsePDF(filePath)
	default:
		return "", models.NewValidation(models.CodeUnsupportedFormat, "unsupported file format: %s", ext)
	}
}

func parseText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// pages are joined with a newline; a page without extractable text contributes "".
func parsePDF(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", err
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		pages = append(pages, pageText)
	}
	return strings.Join(pages, "\n"), nil
}
