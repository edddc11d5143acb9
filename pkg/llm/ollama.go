package llm

import (
	"context"
	"strings"
)

const defaultOllamaModel = "llama3.1"

// OllamaProvider speaks to Ollama's OpenAI-compatible endpoint.
type OllamaProvider struct {
	openai *OpenAIProvider
}

func NewOllamaProvider(cfg Config) *OllamaProvider {
	cfgCopy := cfg
	if strings.TrimSpace(cfgCopy.APIURL) == "" {
		cfgCopy.APIURL = "http://localhost:11434/v1"
	}
	if strings.TrimSpace(cfgCopy.Model) == "" {
		cfgCopy.Model = defaultOllamaModel
	}
	return &OllamaProvider{
		openai: NewOpenAIProvider(cfgCopy),
	}
}

func (p *OllamaProvider) Complete(ctx context.Context, messages []Message, tools []Tool) (Stream, error) {
	return p.openai.Complete(ctx, messages, tools)
}
