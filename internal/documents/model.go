package documents

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type Format string

const (
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrInvalidName       = errors.New("invalid document name")
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// UploadExtensions are the extensions accepted at the upload boundary.
var UploadExtensions = []string{".pdf", ".md", ".txt"}

type Document struct {
	Filename string
	Format   Format
	Content  []byte
}

type DocumentInfo struct {
	Filename   string    `json:"filename"`
	Format     Format    `json:"format"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// IngestionError reports a document whose text could not be extracted.
type IngestionError struct {
	Filename string
	Format   Format
	Err      error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingesting %s (%s): %v", e.Filename, e.Format, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// FormatFromName derives the document format from its extension.
func FormatFromName(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF, true
	case ".md", ".markdown":
		return FormatMarkdown, true
	case ".txt", ".text":
		return FormatText, true
	default:
		return "", false
	}
}

// ValidateName rejects names that could escape the document directory or
// that carry no supported extension.
func ValidateName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) ||
		strings.HasPrefix(name, ".") || len(name) > 255 {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, ok := FormatFromName(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return nil
}

// AllowedUpload reports whether the upload boundary accepts name.
func AllowedUpload(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range UploadExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
