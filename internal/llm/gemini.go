package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient wraps the official Google Gemini Go SDK. One client serves
// every Gemini catalog entry; the model name travels in the request.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client}, nil
}

func (gc *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if gc.client == nil {
		return "", fmt.Errorf("gemini client not initialized")
	}

	contents := genai.Text(req.Prompt)

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
	}

	resp, err := gc.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return extractText(resp)
}

// DescribeImage sends a photo through Gemini's multimodal input.
func (gc *GeminiClient) DescribeImage(ctx context.Context, model string, imageData []byte, maxTokens int) (string, error) {
	if gc.client == nil {
		return "", fmt.Errorf("gemini client not initialized")
	}

	contents := []*genai.Content{
		{
			Parts: []*genai.Part{
				{Text: "Describe this image clearly."},
				{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: imageData}},
			},
		},
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}

	resp, err := gc.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to analyze image: %w", err)
	}

	return extractText(resp)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in Gemini response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content parts in Gemini response")
	}

	var content string
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			content += part.Text
		}
	}

	return strings.TrimSpace(content), nil
}

// Close cleans up the client resources. The SDK client needs no explicit
// cleanup today; kept for symmetry with the other adapters.
func (gc *GeminiClient) Close() error {
	return nil
}
