package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// LocalProvider calls a local Ollama-compatible HTTP endpoint, used as
// the fallback/offline tier of the Router (spec.md §4.3 "local model
// fallback").
type LocalProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewLocalProvider builds a LocalProvider against baseURL (e.g.
// "http://localhost:11434").
func NewLocalProvider(baseURL, model string) *LocalProvider {
	return &LocalProvider{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (p *LocalProvider) Name() string { return "local" }

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaOptions       `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
	// Usage fields present on the final message of a /api/chat response.
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

// Generate issues a non-streaming request (stream=false) to /api/chat
// and delivers the result as a two-chunk stream, matching HostedProvider's
// shape so Router treats both uniformly.
func (p *LocalProvider) Generate(ctx context.Context, input *GenerateInput) (<-chan Chunk, error) {
	model := input.Model
	if model == "" {
		model = p.model
	}

	reqBody := ollamaChatRequest{
		Model:  model,
		Stream: false,
		Options: ollamaOptions{
			Temperature: input.Temperature,
			NumPredict:  input.MaxTokens,
		},
	}
	for _, m := range input.Messages {
		reqBody.Messages = append(reqBody.Messages, ollamaChatMessage{Role: m.Role, Content: m.Content})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling local provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building local provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading local provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPStatus(p.Name(), resp.StatusCode, string(body))
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding local provider response: %w", err)
	}

	out := make(chan Chunk, 2)
	out <- &TextChunk{Content: parsed.Message.Content}
	out <- &UsageChunk{InputTokens: parsed.PromptEvalCount, OutputTokens: parsed.EvalCount}
	close(out)
	return out, nil
}
