package providers

import (
	"context"

	"github.com/go-go-golems/cogchat/pkg/conversation"
)

// ChunkHandler receives incremental completion text during streaming. Chunk
// boundaries carry no meaning; callers must only rely on the concatenation of
// all chunks. Returning a non-nil error aborts the stream.
type ChunkHandler func(chunk string) error

// Adapter is the provider contract. One implementation exists per backend
// family; each translates a provider-neutral conversation into that backend's
// request shape (system prompt placement, role names, auth placement) and maps
// failures onto the shared error taxonomy in errors.go.
type Adapter interface {
	// Complete sends the full conversation and returns the single reply text.
	Complete(ctx context.Context, messages []conversation.Message) (string, error)

	// CompleteStream invokes onChunk one or more times with substrings that
	// concatenate to the same text Complete would return for the same input.
	// Backends without incremental delivery may simulate streaming by chunking
	// the final text.
	CompleteStream(ctx context.Context, messages []conversation.Message, onChunk ChunkHandler) error

	// Embeddings returns an embedding vector for the given text, or
	// ErrUnsupportedCapability for backends without an embeddings endpoint.
	Embeddings(ctx context.Context, text string) ([]float32, error)
}

// ClientConfig carries everything an adapter needs to talk to its backend.
// Credentials and endpoints are injected here, never hard-coded downstream;
// each adapter applies its provider-specific default endpoint when BaseURL is
// empty.
type ClientConfig struct {
	// Provider must match a factory key ("openai", "claude", "gemini",
	// "ollama", "groq", "local").
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key,omitempty"`
	// BaseURL overrides the provider's default endpoint.
	BaseURL     string  `yaml:"base_url,omitempty"`
	Temperature float32 `yaml:"temperature,omitempty"`
	TopP        float32 `yaml:"top_p,omitempty"`
	// MaxTokens caps output tokens; zero means provider default.
	MaxTokens int `yaml:"max_tokens,omitempty"`
}
