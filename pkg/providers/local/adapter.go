package local

import (
	"context"
	"fmt"

	"github.com/go-go-golems/cogchat/pkg/conversation"
	"github.com/go-go-golems/cogchat/pkg/providers"
)

const defaultModel = "local-weights"

// Adapter simulates inference over locally loaded weights. It produces a
// deterministic reply derived from the last user message, which makes it
// useful as a free offline fallback and for tests. It is not a real
// inference engine.
type Adapter struct {
	model string
}

var _ providers.Adapter = (*Adapter)(nil)

func New(cfg providers.ClientConfig) *Adapter {
	model := defaultModel
	if cfg.Model != "" {
		model = cfg.Model
	}
	return &Adapter{model: model}
}

func (a *Adapter) Complete(ctx context.Context, messages []conversation.Message) (string, error) {
	lastUser := ""
	for _, m := range messages {
		if m.Role == conversation.RoleUser {
			lastUser = m.Content
		}
	}
	return fmt.Sprintf("[%s] I understand you said: %s", a.model, lastUser), nil
}

func (a *Adapter) CompleteStream(ctx context.Context, messages []conversation.Message, onChunk providers.ChunkHandler) error {
	text, err := a.Complete(ctx, messages)
	if err != nil {
		return err
	}
	return providers.SimulateStream(ctx, text, onChunk)
}

func (a *Adapter) Embeddings(ctx context.Context, text string) ([]float32, error) {
	return nil, providers.ErrUnsupportedCapability
}
