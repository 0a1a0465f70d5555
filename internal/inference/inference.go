// Package inference defines the contract between the chat front-ends and a
// text-generation backend, independent of which backend serves it.
package inference

import (
	"context"
	"errors"
	"iter"
	"math"
)

var (
	// ErrTransport covers network failures and non-2xx responses from the backend.
	ErrTransport = errors.New("inference transport failure")
	// ErrMalformedResponse is returned when the backend payload lacks an expected field.
	ErrMalformedResponse = errors.New("malformed inference response")
)

// Option keys understood by every backend.
const (
	OptionTemperature = "temperature"
	OptionMaxTokens   = "max_tokens"
)

// Options carries generation parameters. Backends that speak the Ollama wire
// format spread these at the top level of the request body.
type Options map[string]any

// Float returns the option as a float64 when it holds a numeric value.
func (o Options) Float(key string) (float64, bool) {
	switch v := o[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Int returns the option as an int when it holds an integral value.
func (o Options) Int(key string) (int, bool) {
	switch v := o[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	}
	return 0, false
}

// Request is a single generation call.
type Request struct {
	Model   string
	Prompt  string
	Options Options
}

// Client is implemented by every inference backend.
type Client interface {
	// Generate blocks until the full completion is available.
	Generate(ctx context.Context, req Request) (string, error)

	// GenerateStream yields completion chunks as they arrive. Iteration stops
	// after the first error.
	GenerateStream(ctx context.Context, req Request) iter.Seq2[string, error]

	// Embeddings returns the embedding vector for text.
	Embeddings(ctx context.Context, model, text string) ([]float32, error)

	// ListModels returns the names of the models the backend can serve.
	ListModels(ctx context.Context) ([]string, error)
}
