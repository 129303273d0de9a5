package ingestion_engine

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/chatlas-ai/chatlas/internal/core"
)

// Supported upload extensions.
var SupportedExts = []string{"pdf", "txt", "md", "doc", "docx"}

var (
	ErrUnsupportedFormat = errors.New("unsupported file type. Supported: PDF, TXT, MD, DOC, DOCX")
	ErrEmptyContent      = errors.New("file contains no text content")
)

// ExtractionError wraps a parser failure for a particular format.
type ExtractionError struct {
	Ext string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Ext, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsSupportedExt reports whether ext (without dot, any case) can be
// extracted.
func IsSupportedExt(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range SupportedExts {
		if s == ext {
			return true
		}
	}
	return false
}

var _ core.TextExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor implements core.TextExtractor using sajari/docconv for
// the binary formats; txt and md pass through as UTF-8.
type DocconvExtractor struct{}

func NewDocconvExtractor() *DocconvExtractor {
	return &DocconvExtractor{}
}

// Extract dispatches strictly by extension. DOCX tries the structured
// docx parser first and falls back to the legacy Word parser when the
// structured path yields nothing. Blank extracted text is a caller-visible
// validation error, not a system fault.
func (e *DocconvExtractor) Extract(data []byte, ext string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if !IsSupportedExt(ext) {
		return "", ErrUnsupportedFormat
	}

	var (
		text string
		err  error
	)
	switch ext {
	case "pdf":
		text, _, err = docconv.ConvertPDF(bytes.NewReader(data))
	case "docx":
		text, _, err = docconv.ConvertDocx(bytes.NewReader(data))
		if err != nil || strings.TrimSpace(text) == "" {
			text, _, err = docconv.ConvertDoc(bytes.NewReader(data))
		}
	case "doc":
		text, _, err = docconv.ConvertDoc(bytes.NewReader(data))
	default: // txt, md
		text = string(data)
	}
	if err != nil {
		return "", &ExtractionError{Ext: ext, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}
