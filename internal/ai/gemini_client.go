package ai

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiModel generates replies through the Google Generative AI SDK.
type GeminiModel struct {
	client      *genai.Client
	temperature float32
}

// NewGeminiModel returns a model that reports ErrMissingAPIKey on every call
// when apiKey is empty, so a missing key degrades instead of failing startup.
func NewGeminiModel(ctx context.Context, apiKey string, temperature float64) (*GeminiModel, error) {
	gm := &GeminiModel{temperature: float32(temperature)}
	if apiKey == "" {
		return gm, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	gm.client = client
	return gm, nil
}

func (g *GeminiModel) Complete(ctx context.Context, model, prompt string) (string, error) {
	if g.client == nil {
		return "", ErrMissingAPIKey
	}

	gm := g.client.GenerativeModel(model)
	gm.SetTemperature(g.temperature)
	gm.SetMaxOutputTokens(256)

	resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// Close the client
func (g *GeminiModel) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}
