// Package ollama embeds memory content through a local or remote Ollama
// server's /api/embed endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/mnemo/pkg/embeddings"
)

const (
	DefaultEmbeddingModel = "nomic-embed-text"
	DefaultBaseURL        = "http://localhost:11434"
	DefaultTimeout        = 120 * time.Second

	// maxErrorBody caps how much of a failed response is quoted in errors.
	maxErrorBody = 512
)

// EmbedderConfig configures an Embedder. Zero values select the defaults.
type EmbedderConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration

	// Dimensions, when set, is the vector size every response must have.
	// Vector collections are created with a fixed size, so a model swap that
	// changes it is reported here instead of at insert time.
	Dimensions uint

	// KeepAlive is passed through to Ollama to keep the model loaded between
	// requests, e.g. "10m".
	KeepAlive string
}

// Embedder implements embeddings.Embedder against Ollama.
type Embedder struct {
	endpoint   string
	model      string
	dimensions int
	keepAlive  string
	httpClient *http.Client
}

type embedRequest struct {
	Model     string `json:"model"`
	Input     string `json:"input"`
	Truncate  bool   `json:"truncate"`
	KeepAlive string `json:"keep_alive,omitempty"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// NewEmbedder builds an Embedder.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Embedder{
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/api/embed",
		model:      cfg.Model,
		dimensions: int(cfg.Dimensions),
		keepAlive:  cfg.KeepAlive,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Embed returns the embedding of text. Inputs longer than the model context
// are truncated by Ollama rather than rejected, since entry content is
// already bounded upstream.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{
		Model:     e.model,
		Input:     text,
		Truncate:  true,
		KeepAlive: e.keepAlive,
	})
	if err != nil {
		return nil, e.fail("marshaling request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, e.fail("creating request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, e.fail("sending request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: ollama returned status %d: %s",
			embeddings.ErrEmbedding, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, e.fail("decoding response", err)
	}

	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: model %s returned no embeddings", embeddings.ErrEmbedding, e.model)
	}

	emb := out.Embeddings[0]
	if e.dimensions > 0 && len(emb) != e.dimensions {
		return nil, fmt.Errorf("%w: model %s returned %d dimensions, configured %d",
			embeddings.ErrEmbedding, e.model, len(emb), e.dimensions)
	}

	return emb, nil
}

func (e *Embedder) fail(step string, err error) error {
	return fmt.Errorf("%w: %s: %v", embeddings.ErrEmbedding, step, err)
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
