package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultEndpoint is the OpenAI API base URL.
	DefaultEndpoint = "https://api.openai.com"
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "text-embedding-3-small"
	// DefaultDimensions is the output size of DefaultModel.
	DefaultDimensions = 1536

	openAIName      = "openai"
	maxErrorBodyLen = 512
)

// OpenAIConfig configures an OpenAIEmbedder.
type OpenAIConfig struct {
	Endpoint   string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// Validate checks required fields.
func (c *OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("openai: api key is required")
	}
	if _, err := url.Parse(c.Endpoint); err != nil || c.Endpoint == "" {
		return fmt.Errorf("openai: invalid endpoint %q", c.Endpoint)
	}
	if c.Model == "" {
		return fmt.Errorf("openai: model is required")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("openai: dimensions must be positive")
	}
	return nil
}

// OpenAIEmbedder calls an OpenAI-compatible /v1/embeddings endpoint.
type OpenAIEmbedder struct {
	config   OpenAIConfig
	client   *http.Client
	endpoint string
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// NewOpenAIEmbedder validates cfg and returns an embedder. The HTTP client timeout is
// cfg.Timeout; callers may also bound each call through the context.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, _ := url.Parse(cfg.Endpoint)
	return &OpenAIEmbedder{
		config:   cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		endpoint: base.JoinPath("/v1/embeddings").String(),
	}, nil
}

// Embed requests the embedding of text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingsRequest{Model: e.config.Model, Input: []string{text}})
	if err != nil {
		return nil, NewProviderError(openAIName, "marshal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, NewProviderError(openAIName, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if cerr := classifyContextErr(ctx, err); cerr != err {
			return nil, cerr
		}
		pe := NewProviderError(openAIName, "request failed", err)
		pe.Retryable = true
		return nil, pe
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return nil, statusError(openAIName, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, NewProviderError(openAIName, "malformed response", classifyContextErr(ctx, err))
	}
	if len(out.Data) == 0 {
		return nil, NewProviderError(openAIName, "response contained no embeddings", nil)
	}
	vec := out.Data[0].Embedding
	if len(vec) != e.config.Dimensions {
		return nil, NewProviderError(openAIName,
			fmt.Sprintf("model %s returned %d dimensions, expected %d", e.config.Model, len(vec), e.config.Dimensions), nil)
	}
	return vec, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// Close releases idle connections.
func (e *OpenAIEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
