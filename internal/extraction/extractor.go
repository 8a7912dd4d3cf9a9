// Package extraction normalizes uploaded funding documents (PDF, image, CSV,
// spreadsheet, plain text) into raw text or tabular rows for the downstream
// parsers.
package extraction

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// minTextLayerLength is the minimum-viable-content threshold: a PDF text
// layer shorter than this is assumed to be a scan and routed to OCR.
const minTextLayerLength = 50

// File is one uploaded document.
type File struct {
	Name         string
	Bytes        []byte
	DeclaredType string // MIME type as declared by the uploader
}

// Result is the normalized extraction output.
type Result struct {
	Text   string `json:"text"`
	Table  *Table `json:"table,omitempty"`
	Method string `json:"method"` // pdf-text, ocr, csv, xlsx, text
}

// Table is a header-addressed row set from a delimited or spreadsheet source.
type Table struct {
	Headers []string
	Rows    []Row
}

// Row maps lower-cased header names to cell values. Numeric-looking cells are
// typed to float64, everything else stays a string.
type Row map[string]any

// ExtractionError reports that no extraction method produced usable content.
// Recoverable: callers fall through to manual entry.
type ExtractionError struct {
	FileName  string
	Attempted []string
	Err       error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s (tried %s): %v",
		e.FileName, strings.Join(e.Attempted, ", "), e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// UpstreamError carries the HTTP status a recognition service returned, so
// callers can surface rate limits distinctly from other failures.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %v", e.StatusCode, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// OCRClient recognizes text in page images. Implemented by the vision client;
// nil disables the OCR fallback.
type OCRClient interface {
	RecognizeText(ctx context.Context, images [][]byte) (string, error)
}

// Adapter routes files to format-specific extractors.
type Adapter struct {
	ocr    OCRClient
	logger *zap.Logger
}

// NewAdapter creates an extraction adapter. ocr may be nil.
func NewAdapter(ocr OCRClient, logger *zap.Logger) *Adapter {
	return &Adapter{
		ocr:    ocr,
		logger: logger,
	}
}

// Extract normalizes a file into text and, for tabular formats, a row set.
// It has no side effects beyond the returned data.
func (a *Adapter) Extract(ctx context.Context, file File) (*Result, error) {
	if len(file.Bytes) == 0 {
		return nil, &ExtractionError{FileName: file.Name, Attempted: []string{"none"}, Err: fmt.Errorf("empty file")}
	}

	switch classify(file) {
	case kindPDF:
		return a.extractPDF(ctx, file)
	case kindImage:
		return a.extractImage(ctx, file)
	case kindCSV:
		return a.extractCSV(file)
	case kindSpreadsheet:
		return a.extractSpreadsheet(file)
	default:
		return &Result{Text: string(file.Bytes), Method: "text"}, nil
	}
}

type fileKind int

const (
	kindText fileKind = iota
	kindPDF
	kindImage
	kindCSV
	kindSpreadsheet
)

func classify(file File) fileKind {
	mime := strings.ToLower(file.DeclaredType)
	ext := strings.ToLower(filepath.Ext(file.Name))

	switch {
	case strings.Contains(mime, "pdf") || ext == ".pdf":
		return kindPDF
	case strings.HasPrefix(mime, "image/") || ext == ".png" || ext == ".jpg" || ext == ".jpeg":
		return kindImage
	case strings.Contains(mime, "csv") || ext == ".csv":
		return kindCSV
	case strings.Contains(mime, "spreadsheet") || strings.Contains(mime, "excel") ||
		ext == ".xlsx" || ext == ".xls":
		return kindSpreadsheet
	default:
		return kindText
	}
}

func (a *Adapter) extractImage(ctx context.Context, file File) (*Result, error) {
	if a.ocr == nil {
		return nil, &ExtractionError{FileName: file.Name, Attempted: []string{"ocr"}, Err: fmt.Errorf("ocr not configured")}
	}

	text, err := a.ocr.RecognizeText(ctx, [][]byte{file.Bytes})
	if err != nil {
		a.logger.Warn("Image OCR failed", zap.String("file", file.Name), zap.Error(err))
		return nil, &ExtractionError{FileName: file.Name, Attempted: []string{"ocr"}, Err: err}
	}

	return &Result{Text: text, Method: "ocr"}, nil
}
