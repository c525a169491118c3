// Package llm provides the multi-provider LLM abstraction used by the
// extraction pipeline: a streaming Provider interface, an error
// classifier, a per-provider circuit breaker, and a Router that applies
// fallback policy across providers (spec.md §4.3, §4.4).
package llm

import "context"

// Message is one turn of a single-shot extraction prompt. Extraction
// calls are system+user only; no multi-turn tool-calling loop.
type Message struct {
	Role    string // RoleSystem or RoleUser
	Content string
}

// Message roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// GenerateInput is a single completion request against one provider.
type GenerateInput struct {
	Messages    []Message
	Model       string
	Temperature float64
	MaxTokens   int
}

// Provider is implemented by each concrete backend (hosted, local). The
// channel-based streaming return mirrors the teacher's agent LLM client,
// generalized from a tool-calling chat loop to a single-shot JSON
// extraction call.
type Provider interface {
	Name() string
	Generate(ctx context.Context, input *GenerateInput) (<-chan Chunk, error)
}

// Chunk is the interface for all streaming chunk types.
type Chunk interface {
	chunkType() ChunkType
}

// ChunkType identifies the kind of streaming chunk.
type ChunkType string

// Chunk type values.
const (
	ChunkTypeText  ChunkType = "text"
	ChunkTypeUsage ChunkType = "usage"
	ChunkTypeError ChunkType = "error"
)

// TextChunk is a fragment of the provider's text response.
type TextChunk struct{ Content string }

// UsageChunk reports token consumption for the call.
type UsageChunk struct{ InputTokens, OutputTokens int }

// ErrorChunk carries a classified failure from the provider.
type ErrorChunk struct{ Err *LLMError }

func (c *TextChunk) chunkType() ChunkType  { return ChunkTypeText }
func (c *UsageChunk) chunkType() ChunkType { return ChunkTypeUsage }
func (c *ErrorChunk) chunkType() ChunkType { return ChunkTypeError }

// Drain collects a Provider's chunk stream into its full text, token
// usage, and terminal error (if any). Extraction stages call this
// rather than consuming the channel directly, since they need the
// complete response before parsing JSON out of it.
func Drain(chunks <-chan Chunk) (text string, usage UsageChunk, err *LLMError) {
	for c := range chunks {
		switch v := c.(type) {
		case *TextChunk:
			text += v.Content
		case *UsageChunk:
			usage = *v
		case *ErrorChunk:
			err = v.Err
		}
	}
	return text, usage, err
}
