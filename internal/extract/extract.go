// Package extract turns uploaded documents into plain text. It is the seam
// in front of the retrieval core: whatever produces the text, the core only
// ever sees an ordered string.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrUnsupported indicates a file type no extractor handles.
var ErrUnsupported = errors.New("extract: unsupported file type")

// Supported reports whether the filename's extension has an extractor.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown":
		return true
	}
	return false
}

// File reads the document at path and returns its text content.
func File(path string) (string, error) {
	if !Supported(path) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Text(data)
}

// Text validates raw bytes as UTF-8 document text and normalizes line
// endings.
func Text(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: content is not valid UTF-8", ErrUnsupported)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return text, nil
}
