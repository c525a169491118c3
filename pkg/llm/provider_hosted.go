package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// HostedProvider calls a hosted Anthropic model. Grounded on the
// teacher corpus's direct anthropic-sdk-go usage for single-shot prompt
// calls (see DESIGN.md).
type HostedProvider struct {
	client anthropic.Client
	model  string
}

// NewHostedProvider builds a HostedProvider. apiKey may be empty if
// ANTHROPIC_API_KEY is set in the environment; the SDK reads it itself.
func NewHostedProvider(apiKey, model string) *HostedProvider {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &HostedProvider{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (p *HostedProvider) Name() string { return "hosted" }

// Generate issues a single non-streaming Messages.New call and delivers
// the result as a two-chunk stream (text, then usage), or a single
// ErrorChunk on failure. Extraction prompts are single-shot, so true
// token-level streaming buys nothing here; the channel shape is kept
// for interface symmetry with the local provider and the teacher's
// streaming LLM client idiom.
func (p *HostedProvider) Generate(ctx context.Context, input *GenerateInput) (<-chan Chunk, error) {
	out := make(chan Chunk, 3)

	model := input.Model
	if model == "" {
		model = p.model
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(input.MaxTokens),
	}
	for _, m := range input.Messages {
		switch m.Role {
		case RoleSystem:
			params.System = []anthropic.TextBlockParam{{Text: m.Content}}
		case RoleUser:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		close(out)
		return nil, err
	}

	go func() {
		defer close(out)
		if len(message.Content) == 0 {
			out <- &ErrorChunk{Err: &LLMError{
				Category: CategoryPermanent, ErrorCode: "empty_response",
				Message: "anthropic response had no content blocks", Provider: p.Name(),
			}}
			return
		}
		block := message.Content[0]
		if block.Type != "text" {
			out <- &ErrorChunk{Err: &LLMError{
				Category: CategoryPermanent, ErrorCode: "unexpected_block_type",
				Message: fmt.Sprintf("unexpected response block type %q", block.Type), Provider: p.Name(),
			}}
			return
		}
		out <- &TextChunk{Content: block.Text}
		out <- &UsageChunk{InputTokens: int(message.Usage.InputTokens), OutputTokens: int(message.Usage.OutputTokens)}
	}()

	return out, nil
}
