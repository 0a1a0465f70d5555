// Package ollama implements inference.Client over the Ollama HTTP API.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Yunkai-Xiao/MisakiCat/internal/inference"
)

const (
	// DefaultBaseURL is where a local Ollama server listens.
	DefaultBaseURL = "http://localhost:11434"

	maxErrorBody   = 1024
	maxStreamLine  = 1024 * 1024
	generatePath   = "/api/generate"
	embeddingsPath = "/api/embeddings"
	tagsPath       = "/api/tags"
)

// Client talks to an Ollama server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

var _ inference.Client = (*Client)(nil)

// NewClient creates a client for baseURL. A zero timeout leaves requests
// bounded only by the caller's context.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.With("component", "ollama_client"),
	}
}

// BaseURL returns the server address the client was configured with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type generateChunk struct {
	Response *string `json:"response"`
	Done     bool    `json:"done"`
	Error    string  `json:"error"`
}

type embeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingsResponse struct {
	Embedding []float32 `json:"embedding"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Generate performs a non-streaming /api/generate call.
func (c *Client) Generate(ctx context.Context, req inference.Request) (string, error) {
	started := time.Now()
	resp, err := c.post(ctx, generatePath, generateBody(req, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded generateChunk
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: decode generate response: %v", inference.ErrMalformedResponse, err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("%w: backend error: %s", inference.ErrTransport, decoded.Error)
	}
	if decoded.Response == nil {
		return "", fmt.Errorf("%w: generate response has no \"response\" field", inference.ErrMalformedResponse)
	}

	c.log.DebugContext(ctx, "Generation finished", "model", req.Model, "chars", len(*decoded.Response), "duration", time.Since(started))
	return *decoded.Response, nil
}

// GenerateStream performs a streaming /api/generate call and yields each
// "response" chunk until the server reports done.
func (c *Client) GenerateStream(ctx context.Context, req inference.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := c.post(ctx, generatePath, generateBody(req, true))
		if err != nil {
			yield("", err)
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk generateChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				yield("", fmt.Errorf("%w: decode stream chunk: %v", inference.ErrMalformedResponse, err))
				return
			}
			if chunk.Error != "" {
				yield("", fmt.Errorf("%w: backend error: %s", inference.ErrTransport, chunk.Error))
				return
			}
			if chunk.Response != nil {
				if !yield(*chunk.Response, nil) {
					return
				}
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("%w: read stream: %v", inference.ErrTransport, err))
		}
	}
}

// Embeddings calls /api/embeddings.
func (c *Client) Embeddings(ctx context.Context, model, text string) ([]float32, error) {
	resp, err := c.post(ctx, embeddingsPath, embeddingsRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode embeddings response: %v", inference.ErrMalformedResponse, err)
	}
	if decoded.Embedding == nil {
		return nil, fmt.Errorf("%w: embeddings response has no \"embedding\" field", inference.ErrMalformedResponse)
	}
	return decoded.Embedding, nil
}

// ListModels calls /api/tags and returns the model names.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tagsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode tags response: %v", inference.ErrMalformedResponse, err)
	}

	names := make([]string, 0, len(decoded.Models))
	for _, m := range decoded.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// generateBody spreads the options next to model/prompt/stream. The fixed keys
// always win over an option of the same name.
func generateBody(req inference.Request, stream bool) map[string]any {
	body := make(map[string]any, len(req.Options)+3)
	for k, v := range req.Options {
		body[k] = v
	}
	body["model"] = req.Model
	body["prompt"] = req.Prompt
	body["stream"] = stream
	return body
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return c.do(httpReq)
}

// do executes the request and turns network errors and non-2xx statuses into
// inference.ErrTransport. The caller owns the returned body.
func (c *Client) do(httpReq *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", inference.ErrTransport, httpReq.Method, httpReq.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %s %s returned status %d: %s",
			inference.ErrTransport, httpReq.Method, httpReq.URL.Path, resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return resp, nil
}
