package rewrite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lysyi3m/rss-relay/app/apperr"
	"google.golang.org/genai"
)

type GenerationConfig struct {
	Temperature     float64
	MaxOutputTokens int
	ThinkingBudget  int
}

// GeminiClient calls generateContent through the genai SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, httpClient *http.Client, baseURL, model, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: strings.TrimRight(baseURL, "/") + "/",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Generate sends a single-turn prompt and returns the first text part of the
// top candidate. urlContext enables the backend's page retrieval tool.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, config GenerationConfig, urlContext bool) (string, error) {
	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(config.Temperature)),
		MaxOutputTokens: int32(config.MaxOutputTokens),
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(config.ThinkingBudget)),
		},
	}
	if urlContext {
		genConfig.Tools = []*genai.Tool{{URLContext: &genai.URLContext{}}}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), genConfig)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", apperr.Wrap(apperr.KindGeneration, apperr.CodeAPIError, err, "status %d %s", apiErr.Code, apiErr.Status)
		}
		if isDecodeError(err) {
			return "", apperr.Wrap(apperr.KindGeneration, apperr.CodeInvalidResponse, err, "failed to decode response")
		}
		return "", apperr.Wrap(apperr.KindGeneration, apperr.CodeAPIError, err, "request failed")
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", apperr.New(apperr.KindGeneration, apperr.CodeNoCandidates, "response has no candidates")
	}

	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil || strings.TrimSpace(content.Parts[0].Text) == "" {
		return "", apperr.New(apperr.KindGeneration, apperr.CodeNoContent, "candidate has no text")
	}

	return content.Parts[0].Text, nil
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}
