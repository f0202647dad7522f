// Package openai implements models.Generator on OpenAI chat completions.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"yukti-backend/files"
	"yukti-backend/models"
)

// chatAPI is the part of *openai.Client the generator uses.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Client struct {
	api   chatAPI
	Model string
}

func NewClient(apiKey, model string) *Client {
	return &Client{api: openai.NewClient(apiKey), Model: model}
}

// Tiers returns the primary and secondary tiers sharing one API key.
func Tiers(apiKey, primary, secondary string) []models.Tier {
	first := NewClient(apiKey, primary)
	return []models.Tier{
		{Name: primary, Generator: first},
		{Name: secondary, Generator: &Client{api: first.api, Model: secondary}},
	}
}

// ErrUnsupportedAttachment is returned for documents chat completions cannot read.
var ErrUnsupportedAttachment = errors.New("openai: unsupported attachment")

func (c *Client) Generate(ctx context.Context, req models.Request) (string, error) {
	msg, err := buildMessage(req)
	if err != nil {
		return "", err
	}
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.Model,
		Messages: []openai.ChatCompletionMessage{msg},
	})
	if err != nil {
		return "", fmt.Errorf("openai %s: %w", c.Model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai %s: empty response", c.Model)
	}
	return resp.Choices[0].Message.Content, nil
}

// buildMessage sends images as data URLs; PDFs and text documents are inlined as text.
func buildMessage(req models.Request) (openai.ChatCompletionMessage, error) {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	a := req.Attachment
	if a == nil || len(a.Data) == 0 {
		msg.Content = req.Prompt
		return msg, nil
	}
	mime := strings.ToLower(a.MimeType)
	switch {
	case strings.HasPrefix(mime, "image/"):
		url := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
		msg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: url, Detail: openai.ImageURLDetailHigh}},
		}
	case mime == files.MimePDF || files.IsPDF(a.Data):
		text, err := files.ExtractText(a.Data, 0)
		if err != nil {
			return msg, fmt.Errorf("%w: pdf %s: %v", ErrUnsupportedAttachment, a.Name, err)
		}
		msg.Content = req.Prompt + "\n\nDOCUMENT TEXT (extracted from PDF):\n" + text
	case strings.HasPrefix(mime, "text/"):
		msg.Content = req.Prompt + "\n\nDOCUMENT TEXT:\n" + string(a.Data)
	default:
		return msg, fmt.Errorf("%w: %s", ErrUnsupportedAttachment, a.MimeType)
	}
	return msg, nil
}
