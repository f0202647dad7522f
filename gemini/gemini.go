// Package gemini implements models.Generator on the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"yukti-backend/models"
)

// contentAPI is the part of *genai.Models the generator uses.
type contentAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator sends prompts and inline documents to one Gemini model.
type Generator struct {
	api   contentAPI
	model string
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: GEMINI_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return client, nil
}

func NewGenerator(client *genai.Client, model string) *Generator {
	return &Generator{api: client.Models, model: model}
}

// Tiers returns the primary and secondary tiers sharing one client.
func Tiers(client *genai.Client, primary, secondary string) []models.Tier {
	return []models.Tier{
		{Name: primary, Generator: NewGenerator(client, primary)},
		{Name: secondary, Generator: NewGenerator(client, secondary)},
	}
}

func (g *Generator) Generate(ctx context.Context, req models.Request) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if a := req.Attachment; a != nil && len(a.Data) > 0 {
		mime := a.MimeType
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(a.Data, mime))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.api.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", g.model, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini %s: empty response", g.model)
	}
	return resp.Text(), nil
}
