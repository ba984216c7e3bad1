package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

const defaultOllamaModel = "llama3.2:3b"

// OllamaProvider implements the Provider interface for a local Ollama server
type OllamaProvider struct {
	client *api.Client
	config Config
}

// NewOllamaProvider creates a new Ollama provider.
// Without a BaseURL the client honours OLLAMA_HOST.
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	var client *api.Client
	if config.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(config.BaseURL, "/"))
		if err != nil {
			return nil, fmt.Errorf("parse ollama base URL: %w", err)
		}
		client = api.NewClient(base, config.httpClient())
	} else {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		client = c
	}

	return &OllamaProvider{
		client: client,
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable lists local models as a health check
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.List(ctx)
	return err == nil
}

// Complete uses the generate endpoint without streaming
func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := p.config.model(req, defaultOllamaModel)

	ctx, cancel := context.WithTimeout(ctx, p.config.timeout())
	defer cancel()

	stream := false
	genReq := &api.GenerateRequest{
		Model:  model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: &stream,
		Options: map[string]any{
			"temperature": 0,
			"num_predict": p.config.maxTokens(req),
		},
	}
	if req.JSON {
		genReq.Format = json.RawMessage(`"json"`)
	}

	var text strings.Builder
	tokens := 0
	err := p.client.Generate(ctx, genReq, func(resp api.GenerateResponse) error {
		text.WriteString(resp.Response)
		if resp.Done {
			tokens = resp.PromptEvalCount + resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama generation failed: %w", err)
	}

	return &CompletionResponse{
		Text:       strings.TrimSpace(text.String()),
		Model:      model,
		TokensUsed: tokens,
	}, nil
}
