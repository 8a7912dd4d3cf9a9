package extraction

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ocrCharWhitelist restricts recognition to characters that appear in
// financial documents. Keeps OCR output consistent across runs.
const ocrCharWhitelist = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz $.,/:()-#%&"

// VisionOCR recognizes document text with a vision model.
type VisionOCR struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewVisionOCR creates a vision OCR client. The timeout bounds the whole
// recognition call; on expiry the caller falls over to manual entry.
func NewVisionOCR(apiKey, model string, timeout time.Duration, logger *zap.Logger) *VisionOCR {
	return &VisionOCR{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// RecognizeText transcribes the given page images, in order.
func (v *VisionOCR) RecognizeText(ctx context.Context, images [][]byte) (string, error) {
	if len(images) == 0 {
		return "", fmt.Errorf("no images to recognize")
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	contentParts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: v.buildPrompt(),
		},
	}

	for i, imgData := range images {
		b64 := base64.StdEncoding.EncodeToString(imgData)
		contentParts = append(contentParts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:image/jpeg;base64,%s", b64),
				Detail: openai.ImageURLDetailHigh,
			},
		})
		v.logger.Debug("Added page image to OCR request",
			zap.Int("page", i+1),
			zap.Int("size_bytes", len(imgData)))
	}

	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       v.model,
		MaxTokens:   4096,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You transcribe financial documents exactly as printed. Output plain text only, no commentary.",
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: contentParts,
			},
		},
	})
	if err != nil {
		v.logger.Error("Vision OCR call failed", zap.Error(err))
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &UpstreamError{StatusCode: apiErr.HTTPStatusCode, Err: err}
		}
		return "", fmt.Errorf("vision ocr failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from vision ocr")
	}

	text := resp.Choices[0].Message.Content
	v.logger.Info("OCR completed",
		zap.Int("page_count", len(images)),
		zap.Int("text_length", len(text)))

	return text, nil
}

func (v *VisionOCR) buildPrompt() string {
	return fmt.Sprintf(`Transcribe all text from these document pages as one uniform text block, preserving line breaks and reading top to bottom.

Rules:
- Use only these characters: %s
- Keep dollar amounts, dates, and account descriptions exactly as printed.
- Do not summarize, interpret, or reorder anything.`, ocrCharWhitelist)
}
