package completion

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiService calls the Gemini generateContent API.
type GeminiService struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

// NewGeminiService creates a client for the Gemini API. baseURL overrides the
// endpoint and is meant for tests.
func NewGeminiService(ctx context.Context, apiKey, model string, maxTokens int, baseURL ...string) (*GeminiService, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if len(baseURL) > 0 {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL[0]}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GeminiService{client: client, model: model, maxTokens: int32(maxTokens)}, nil
}

func (s *GeminiService) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		MaxOutputTokens:   s.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}
