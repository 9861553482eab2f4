// Package documents turns uploaded files into plain text.
package documents

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

var ErrUnsupportedFileType = errors.New("unsupported file type")

// Supported lists the extensions ReadFile understands.
var Supported = []string{".txt", ".md", ".pdf"}

// ReadFile returns the text content of a .txt, .md or .pdf file.
func ReadFile(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
		}
		return string(b), nil
	case ".pdf":
		return readPDF(path)
	default:
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFileType, ext, strings.Join(Supported, ", "))
	}
}

func readPDF(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("failed to read PDF page %d: %w", i+1, err)
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n"), nil
}
