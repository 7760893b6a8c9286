// Package extract converts document files into plain text so they can be
// embedded and stored. Supported formats are plain text (.txt, .md, .rst),
// PDF, DOCX, and XLSX.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is wrapped into errors for extensions we cannot parse.
var ErrUnsupportedFormat = fmt.Errorf("unsupported document format")

// Supported reports whether files with the given extension can be extracted.
// ext includes the leading dot and is matched case-insensitively.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx":
		return true
	}
	return false
}

// Text reads the file at path and returns its textual content.
func Text(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return TextFromBytes(content, filepath.Ext(path))
}

// TextFromBytes extracts text from raw file content. ext selects the parser
// and includes the leading dot; unknown extensions are an error.
func TextFromBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".txt", ".md", ".rst":
		return plainText(content), nil
	case ".pdf":
		return pdfText(content)
	case ".docx":
		return docxText(content)
	case ".xlsx":
		return excelText(content)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
