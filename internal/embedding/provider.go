// Package embedding provides the Store's embedding-generation backend: an
// HTTP-based Provider talking to a local OpenAI-compatible embeddings
// endpoint, and a Service wrapper that enforces the Store's embedding
// contract (zero vector on empty input or provider failure, never a failed
// write).
package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Provider generates vector embeddings for text. The reference embedding
// model determines D (384 by default); callers that need a fixed dimension
// regardless of provider behavior should go through Service, not Provider,
// directly.
type Provider interface {
	Embed(text string) ([]float32, error)
	EmbedBatch(texts []string) ([][]float32, error)
	Dimensions() int
}

// HTTPProvider implements Provider against a local OpenAI-compatible
// embeddings endpoint (LM Studio, Ollama's OpenAI-compat surface, etc).
type HTTPProvider struct {
	baseURL    string
	model      string
	client     *http.Client
	dimensions int
}

// NewHTTPProvider builds a provider pointed at baseURL (e.g.
// "http://localhost:1234/v1") using model for every request. dimensions is
// the expected/declared vector length D; it is authoritative for Service's
// zero-vector fallback even before any real embedding has been observed.
func NewHTTPProvider(baseURL, model string, dimensions int) *HTTPProvider {
	return &HTTPProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		client:     &http.Client{Timeout: 30 * time.Second},
		dimensions: dimensions,
	}
}

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// doRequest issues one embeddings call against the endpoint and returns the
// raw provider response, or an error naming the stage that failed.
func (p *HTTPProvider) doRequest(text string) (*embeddingResponse, error) {
	payload, err := json.Marshal(embeddingRequest{Input: text, Model: p.model})
	if err != nil {
		return nil, fmt.Errorf("embedding: encode request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding: request to %s: %w", p.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding: endpoint returned %s: %s", resp.Status, detail)
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	return &out, nil
}

func (p *HTTPProvider) Embed(text string) ([]float32, error) {
	resp, err := p.doRequest(text)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding: endpoint returned zero vectors for a non-empty request")
	}

	vec := resp.Data[0].Embedding
	if len(vec) > 0 {
		p.dimensions = len(vec)
	}
	return vec, nil
}

// EmbedBatch embeds each text in order. The reference endpoint has no native
// batch route, so this issues one call per text; a failure partway through
// reports which input it was on rather than discarding that context.
func (p *HTTPProvider) EmbedBatch(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(text)
		if err != nil {
			return nil, fmt.Errorf("embedding: batch item %d/%d: %w", i+1, len(texts), err)
		}
		out[i] = vec
	}
	return out, nil
}

func (p *HTTPProvider) Dimensions() int {
	return p.dimensions
}

// Service wraps a Provider and enforces the Store's embedding contract
// (§4.1): empty input yields a zero vector of the declared dimension
// without calling the provider at all; a provider error is logged and
// degrades to a zero vector instead of failing the caller's write.
type Service struct {
	provider Provider
	dim      int
}

// NewService builds a Service over provider, declaring dim as D. dim
// should match provider.Dimensions() once warmed up; Service does not
// require that to have happened yet.
func NewService(provider Provider, dim int) *Service {
	return &Service{provider: provider, dim: dim}
}

// Dimensions returns the declared vector length D.
func (s *Service) Dimensions() int { return s.dim }

// Embed returns text's embedding, or a zero vector of length D if text is
// empty or the provider fails. Provider failures are logged, not returned.
func (s *Service) Embed(text string) []float32 {
	if strings.TrimSpace(text) == "" {
		return make([]float32, s.dim)
	}
	vec, err := s.provider.Embed(text)
	if err != nil {
		log.Printf("[EMBEDDING] provider failure, falling back to zero vector: %v", err)
		return make([]float32, s.dim)
	}
	if len(vec) != s.dim {
		// Provider disagrees with the declared dimension; truncate/pad so
		// every stored embedding column stays a fixed width.
		fitted := make([]float32, s.dim)
		copy(fitted, vec)
		return fitted
	}
	return vec
}
