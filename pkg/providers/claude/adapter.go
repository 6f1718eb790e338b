package claude

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/cogchat/pkg/conversation"
	"github.com/go-go-golems/cogchat/pkg/providers"
	"github.com/go-go-golems/cogchat/pkg/providers/claude/api"
)

const (
	defaultModel     = "claude-3-haiku-20240307"
	defaultMaxTokens = 1024
)

// Adapter talks to the Anthropic messages API. System-role content is
// extracted into the request's dedicated system field; auth goes through the
// x-api-key header. Streaming is simulated by chunking the final text; only
// the streaming contract matters, not the pacing.
type Adapter struct {
	client      *api.Client
	model       string
	temperature float32
	topP        float32
	maxTokens   int
}

var _ providers.Adapter = (*Adapter)(nil)

func New(cfg providers.ClientConfig) *Adapter {
	model := defaultModel
	if cfg.Model != "" {
		model = cfg.Model
	}
	maxTokens := defaultMaxTokens
	if cfg.MaxTokens > 0 {
		maxTokens = cfg.MaxTokens
	}
	return &Adapter{
		client:      api.NewClient(cfg.APIKey, cfg.BaseURL),
		model:       model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   maxTokens,
	}
}

func (a *Adapter) request(messages []conversation.Message) *api.Request {
	system, rest := conversation.SplitSystem(messages)

	req := &api.Request{
		Model:     a.model,
		System:    system,
		MaxTokens: a.maxTokens,
	}
	if a.temperature > 0 {
		t := a.temperature
		req.Temperature = &t
	}
	if a.topP > 0 {
		p := a.topP
		req.TopP = &p
	}
	for _, m := range rest {
		req.Messages = append(req.Messages, api.Message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return req
}

func (a *Adapter) Complete(ctx context.Context, messages []conversation.Message) (string, error) {
	log.Debug().Str("provider", "claude").Int("num_messages", len(messages)).Msg("chat completion started")

	resp, err := a.client.Complete(ctx, a.request(messages))
	if err != nil {
		return "", mapError(err)
	}

	text := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", &providers.MalformedResponseError{Provider: "claude", Reason: "response contains no text content"}
	}
	return text, nil
}

func (a *Adapter) CompleteStream(ctx context.Context, messages []conversation.Message, onChunk providers.ChunkHandler) error {
	text, err := a.Complete(ctx, messages)
	if err != nil {
		return err
	}
	return providers.SimulateStream(ctx, text, onChunk)
}

// Embeddings always fails: Anthropic exposes no embeddings endpoint.
func (a *Adapter) Embeddings(ctx context.Context, text string) ([]float32, error) {
	return nil, providers.ErrUnsupportedCapability
}

func mapError(err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return &providers.ProviderError{Provider: "claude", Message: apiErr.Message}
	}
	var decodeErr *api.DecodeError
	if errors.As(err, &decodeErr) {
		return &providers.MalformedResponseError{Provider: "claude", Reason: decodeErr.Reason}
	}
	return &providers.TransportError{Provider: "claude", Err: err}
}
