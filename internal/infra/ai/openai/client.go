package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	domai "github.com/annualguard/annualguard/internal/domain/ai"
	"github.com/annualguard/annualguard/internal/infra/ai/prompt"
)

const maxTokens = 2048

type Client struct {
	*openai.Client
	Model       string
	VisionModel string
}

func NewClient(apiKey, model, visionModel string) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model, VisionModel: visionModel}
}

// Complete satu chat call dengan JSON response format
func (c *Client) Complete(ctx context.Context, system, user string) (string, domai.Usage, error) {
	model := c.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	applyMaxTokens(&req, model)

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", domai.Usage{}, wrapErr(err)
	}
	usage := domai.Usage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens}
	if len(resp.Choices) == 0 {
		return "", usage, fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, usage, nil
}

// OCRImage vendor OCR tier: kirim halaman sebagai data URL ke vision model
func (c *Client) OCRImage(ctx context.Context, png []byte) (string, float64, domai.Usage, error) {
	model := c.VisionModel
	if model == "" {
		model = "gpt-4o-mini"
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.OCRSystem()},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt.OCRUser()},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
				},
			},
		},
	}
	applyMaxTokens(&req, model)

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", 0, domai.Usage{}, wrapErr(err)
	}
	usage := domai.Usage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens}
	if len(resp.Choices) == 0 {
		return "", 0, usage, fmt.Errorf("vision completion returned no choices")
	}

	var out struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return "", 0, usage, fmt.Errorf("parse vendor ocr response: %w", err)
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	return out.Text, out.Confidence, usage, nil
}

// Ping reachability probe untuk health endpoint
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.ListModels(ctx); err != nil {
		return wrapErr(err)
	}
	return nil
}

// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
func applyMaxTokens(req *openai.ChatCompletionRequest, model string) {
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}
}

func wrapErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return fmt.Errorf("%w: %v", domai.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("chat completion: %w", err)
}
