package extraction

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// extractPDF reads the embedded text layer first and fails over to OCR of the
// rendered pages when the layer is too short to be a real document.
func (a *Adapter) extractPDF(ctx context.Context, file File) (*Result, error) {
	attempted := []string{"pdf-text"}

	doc, err := fitz.NewFromMemory(file.Bytes)
	if err != nil {
		return nil, &ExtractionError{FileName: file.Name, Attempted: attempted, Err: fmt.Errorf("failed to open pdf: %w", err)}
	}
	defer doc.Close()

	var sb strings.Builder
	for page := 0; page < doc.NumPage(); page++ {
		text, err := doc.Text(page)
		if err != nil {
			a.logger.Warn("Failed to read page text layer",
				zap.String("file", file.Name),
				zap.Int("page", page),
				zap.Error(err))
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	if len(text) >= minTextLayerLength {
		return &Result{Text: text, Method: "pdf-text"}, nil
	}

	// Scanned document: render pages and OCR them.
	a.logger.Info("PDF text layer below threshold, falling back to OCR",
		zap.String("file", file.Name),
		zap.Int("text_length", len(text)))

	if a.ocr == nil {
		return nil, &ExtractionError{FileName: file.Name, Attempted: attempted, Err: fmt.Errorf("text layer too short and ocr not configured")}
	}
	attempted = append(attempted, "ocr")

	images, err := renderPages(doc)
	if err != nil {
		return nil, &ExtractionError{FileName: file.Name, Attempted: attempted, Err: err}
	}
	if len(images) == 0 {
		return nil, &ExtractionError{FileName: file.Name, Attempted: attempted, Err: fmt.Errorf("no renderable pages")}
	}

	ocrText, err := a.ocr.RecognizeText(ctx, images)
	if err != nil {
		return nil, &ExtractionError{FileName: file.Name, Attempted: attempted, Err: err}
	}

	return &Result{Text: ocrText, Method: "ocr"}, nil
}

// renderPages renders every page to JPEG bytes.
func renderPages(doc *fitz.Document) ([][]byte, error) {
	var images [][]byte
	for page := 0; page < doc.NumPage(); page++ {
		img, err := doc.Image(page)
		if err != nil {
			continue
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", page, err)
		}
		images = append(images, buf.Bytes())
	}
	return images, nil
}
