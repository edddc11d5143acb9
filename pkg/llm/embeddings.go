package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type EmbeddingClient interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// defaultEmbeddingBatch caps inputs per OpenAI request; ingestion of a large
// course can produce hundreds of chunks at once.
const defaultEmbeddingBatch = 64

type EmbeddingProvider struct {
	client    *http.Client
	apiKey    string
	apiURL    string
	model     string
	provider  string
	batchSize int
}

func NewEmbeddingClient(cfg Config) (EmbeddingClient, error) {
	if cfg.Model == "" {
		return nil, errors.New("embedding model is required")
	}
	provider := strings.ToLower(cfg.Provider)
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		if provider == "ollama" {
			apiURL = "http://localhost:11434"
		} else {
			apiURL = "https://api.openai.com/v1"
		}
	}

	return &EmbeddingProvider{
		client:    &http.Client{Timeout: 120 * time.Second},
		apiKey:    cfg.APIKey,
		apiURL:    apiURL,
		model:     cfg.Model,
		provider:  provider,
		batchSize: defaultEmbeddingBatch,
	}, nil
}

func (p *EmbeddingProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, errors.New("inputs are required")
	}
	switch p.provider {
	case "ollama":
		return p.embedOllama(ctx, inputs)
	case "openai", "":
		vectors := make([][]float32, 0, len(inputs))
		for start := 0; start < len(inputs); start += p.batchSize {
			end := min(start+p.batchSize, len(inputs))
			batch, err := p.embedOpenAI(ctx, inputs[start:end])
			if err != nil {
				return nil, err
			}
			vectors = append(vectors, batch...)
		}
		return vectors, nil
	default:
		return nil, fmt.Errorf("embedding provider %q is not supported", p.provider)
	}
}

type openAIEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *EmbeddingProvider) embedOpenAI(ctx context.Context, inputs []string) ([][]float32, error) {
	payload, err := json.Marshal(openAIEmbeddingRequest{Model: p.model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("openai embed: marshal request: %w", err)
	}
	body, err := p.post(ctx, p.apiURL+"/embeddings", payload)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	var response openAIEmbeddingResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("openai embed: decode response: %w", err)
	}
	if len(response.Data) != len(inputs) {
		return nil, fmt.Errorf("openai embed: unexpected embeddings count: %d", len(response.Data))
	}
	vectors := make([][]float32, len(inputs))
	for i, entry := range response.Data {
		idx := entry.Index
		if idx < 0 || idx >= len(vectors) || vectors[idx] != nil {
			idx = i
		}
		vectors[idx] = entry.Embedding
	}
	return vectors, nil
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *EmbeddingProvider) embedOllama(ctx context.Context, inputs []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(inputs))
	for _, input := range inputs {
		payload, err := json.Marshal(ollamaEmbeddingRequest{Model: p.model, Prompt: input})
		if err != nil {
			return nil, fmt.Errorf("ollama embed: marshal request: %w", err)
		}
		body, err := p.post(ctx, p.apiURL+"/api/embeddings", payload)
		if err != nil {
			return nil, fmt.Errorf("ollama embed: %w", err)
		}
		var response ollamaEmbeddingResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, fmt.Errorf("ollama embed: decode response: %w", err)
		}
		vectors = append(vectors, response.Embedding)
	}
	return vectors, nil
}

// DetectEmbeddingDimensions makes a single embedding call and returns the
// vector length. Use this at startup to discover the model's output dimensions
// without hardcoding a model-to-dimension mapping.
func DetectEmbeddingDimensions(ctx context.Context, client EmbeddingClient) (int, error) {
	vecs, err := client.Embed(ctx, []string{"dimension check"})
	if err != nil {
		return 0, fmt.Errorf("detect embedding dimensions: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return 0, errors.New("embedding model returned an empty vector")
	}
	return len(vecs[0]), nil
}

func (p *EmbeddingProvider) post(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	resp, err := doWithRetry(ctx, p.client, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if reqErr != nil {
			return nil, fmt.Errorf("create request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
		}
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
