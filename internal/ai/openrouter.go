package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrMissingAPIKey   = errors.New("generation API key not configured")
	ErrEmptyCompletion = errors.New("generation returned no text")
)

// StatusError is a non-2xx answer from a generation API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generation API status %d: %s", e.StatusCode, e.Message)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

type OpenRouterConfig struct {
	APIKey      string
	APIURL      string
	SiteURL     string
	SiteName    string
	Temperature float64
	HTTPClient  *http.Client
}

// OpenRouterModel talks to an OpenAI-compatible chat completions endpoint.
type OpenRouterModel struct {
	apiKey      string
	apiURL      string
	siteURL     string
	siteName    string
	temperature float64
	httpClient  *http.Client
}

func NewOpenRouterModel(cfg OpenRouterConfig) *OpenRouterModel {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &OpenRouterModel{
		apiKey:      cfg.APIKey,
		apiURL:      cfg.APIURL,
		siteURL:     cfg.SiteURL,
		siteName:    cfg.SiteName,
		temperature: cfg.Temperature,
		httpClient:  client,
	}
}

func (o *OpenRouterModel) Complete(ctx context.Context, model, prompt string) (string, error) {
	if o.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	payload, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: o.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.siteURL != "" {
		req.Header.Set("HTTP-Referer", o.siteURL)
	}
	if o.siteName != "" {
		req.Header.Set("X-Title", o.siteName)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var out chatResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil {
			if out.Error != nil && out.Error.Message != "" {
				msg = out.Error.Message
			} else if out.Message != "" {
				msg = out.Message
			}
		}
		return "", &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", decodeErr)
	}

	if len(out.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
