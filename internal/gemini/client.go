// Package gemini implements inference.Client on top of Google's Gemini API,
// as an alternative to a local Ollama server.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/Yunkai-Xiao/MisakiCat/internal/config"
	"github.com/Yunkai-Xiao/MisakiCat/internal/inference"
)

// Client talks to Gemini through the genai SDK.
type Client struct {
	genaiClient *genai.Client
	log         *slog.Logger
	maxRetries  int
	retryDelay  time.Duration
}

var _ inference.Client = (*Client)(nil)

// NewClient creates a Gemini client from the backend section of the config.
func NewClient(ctx context.Context, cfg config.BackendConfig, log *slog.Logger) (*Client, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if log == nil {
		log = slog.Default()
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized", "max_retries", cfg.GeminiMaxRetries)
	return &Client{
		genaiClient: gi,
		log:         logger,
		maxRetries:  cfg.GeminiMaxRetries,
		retryDelay:  time.Duration(cfg.GeminiRetryDelaySeconds) * time.Second,
	}, nil
}

// contentConfig maps generation options onto the SDK config. Options the SDK
// has no field for are ignored.
func contentConfig(opts inference.Options) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}
	if t, ok := opts.Float(inference.OptionTemperature); ok {
		cfg.Temperature = genai.Ptr(float32(t))
	}
	if n, ok := opts.Int(inference.OptionMaxTokens); ok && n > 0 {
		cfg.MaxOutputTokens = int32(n)
	}
	return cfg
}

// retriable reports whether err is a transient server-side APIError.
func retriable(err error) (int, bool) {
	var code int
	var ptrErr *genai.APIError
	var valErr genai.APIError
	switch {
	case errors.As(err, &ptrErr):
		code = ptrErr.Code
	case errors.As(err, &valErr):
		code = valErr.Code
	default:
		return 0, false
	}
	return code, code == 500 || code == 503
}

func (c *Client) generateContentWithRetries(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	for i := 0; ; i++ {
		resp, err := c.genaiClient.Models.GenerateContent(ctx, model, contents, cfg)
		if err == nil {
			return resp, nil
		}

		code, ok := retriable(err)
		if !ok {
			c.log.ErrorContext(ctx, "Gemini API call failed with non-retriable error", "error", err)
			return nil, fmt.Errorf("%w: gemini: %w", inference.ErrTransport, err)
		}
		if i >= c.maxRetries {
			c.log.ErrorContext(ctx, "Gemini API call failed after max retries", "error", err, "code", code)
			return nil, fmt.Errorf("%w: gemini failed after %d retries (code %d): %w", inference.ErrTransport, c.maxRetries, code, err)
		}

		c.log.WarnContext(ctx, "Retrying Gemini API call", "attempt", i+1, "delay", c.retryDelay, "code", code)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: gemini: %w", inference.ErrTransport, ctx.Err())
		case <-time.After(c.retryDelay):
		}
	}
}

// Generate implements inference.Client.
func (c *Client) Generate(ctx context.Context, req inference.Request) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, req.Model, contents, contentConfig(req.Options))
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

// GenerateStream implements inference.Client.
func (c *Client) GenerateStream(ctx context.Context, req inference.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
		stream := c.genaiClient.Models.GenerateContentStream(ctx, req.Model, contents, contentConfig(req.Options))

		for resp, err := range stream {
			if err != nil {
				yield("", fmt.Errorf("%w: gemini stream: %w", inference.ErrTransport, err))
				return
			}
			if blocked := blockReason(resp); blocked != "" {
				yield("", fmt.Errorf("%w: gemini blocked the request: %s", inference.ErrMalformedResponse, blocked))
				return
			}
			if chunk := resp.Text(); chunk != "" {
				if !yield(chunk, nil) {
					return
				}
			}
		}
	}
}

// Embeddings implements inference.Client.
func (c *Client) Embeddings(ctx context.Context, model, text string) ([]float32, error) {
	resp, err := c.genaiClient.Models.EmbedContent(ctx, model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini embed: %w", inference.ErrTransport, err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("%w: gemini returned no embeddings", inference.ErrMalformedResponse)
	}
	return resp.Embeddings[0].Values, nil
}

// ListModels implements inference.Client.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	for m, err := range c.genaiClient.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("%w: gemini list models: %w", inference.ErrTransport, err)
		}
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	return names, nil
}

func blockReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || resp.PromptFeedback == nil || resp.PromptFeedback.BlockReason == genai.BlockedReasonUnspecified {
		return ""
	}
	if resp.PromptFeedback.BlockReasonMessage != "" {
		return resp.PromptFeedback.BlockReasonMessage
	}
	return fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: gemini returned no response", inference.ErrMalformedResponse)
	}
	if reason := blockReason(resp); reason != "" {
		return "", fmt.Errorf("%w: gemini blocked the request: %s", inference.ErrMalformedResponse, reason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("%w: gemini returned no content, finish reason: %s", inference.ErrMalformedResponse, finishReason)
	}
	return resp.Text(), nil
}
