package ollama

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/cogchat/pkg/conversation"
	"github.com/go-go-golems/cogchat/pkg/providers"
)

const (
	defaultBaseURL        = "http://localhost:11434"
	defaultModel          = "llama3"
	defaultEmbeddingModel = "all-minilm"
)

// Adapter talks to a self-hosted ollama server. It is the one backend with
// true incremental delivery: chunks arrive as the server generates them. The
// server takes no credentials; the system role is a first-class message.
type Adapter struct {
	client      *api.Client
	model       string
	temperature float32
	topP        float32
}

var _ providers.Adapter = (*Adapter)(nil)

func New(cfg providers.ClientConfig) (*Adapter, error) {
	baseURL := defaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid ollama base URL %s", baseURL)
	}
	model := defaultModel
	if cfg.Model != "" {
		model = cfg.Model
	}
	return &Adapter{
		client:      api.NewClient(parsed, http.DefaultClient),
		model:       model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
	}, nil
}

func (a *Adapter) request(messages []conversation.Message, stream bool) *api.ChatRequest {
	ollamaMessages := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		ollamaMessages = append(ollamaMessages, api.Message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	options := map[string]interface{}{}
	if a.temperature > 0 {
		options["temperature"] = a.temperature
	}
	if a.topP > 0 {
		options["top_p"] = a.topP
	}

	return &api.ChatRequest{
		Model:    a.model,
		Messages: ollamaMessages,
		Stream:   &stream,
		Options:  options,
	}
}

func (a *Adapter) Complete(ctx context.Context, messages []conversation.Message) (string, error) {
	log.Debug().Str("provider", "ollama").Int("num_messages", len(messages)).Msg("chat completion started")

	var sb strings.Builder
	err := a.client.Chat(ctx, a.request(messages, false), func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", mapError(err)
	}
	return sb.String(), nil
}

func (a *Adapter) CompleteStream(ctx context.Context, messages []conversation.Message, onChunk providers.ChunkHandler) error {
	log.Debug().Str("provider", "ollama").Int("num_messages", len(messages)).Msg("streaming completion started")

	emitted := false
	var handlerErr error
	err := a.client.Chat(ctx, a.request(messages, true), func(resp api.ChatResponse) error {
		if resp.Message.Content == "" {
			return nil
		}
		emitted = true
		if err := onChunk(resp.Message.Content); err != nil {
			handlerErr = err
			return err
		}
		return nil
	})
	if handlerErr != nil {
		return handlerErr
	}
	if err != nil {
		return mapError(err)
	}
	if !emitted {
		return onChunk("")
	}
	return nil
}

func (a *Adapter) Embeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  defaultEmbeddingModel,
		Prompt: text,
	})
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Embedding) == 0 {
		return nil, &providers.MalformedResponseError{Provider: "ollama", Reason: "response contains no embedding values"}
	}

	out := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

func mapError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		msg := statusErr.ErrorMessage
		if msg == "" {
			msg = statusErr.Status
		}
		return &providers.ProviderError{Provider: "ollama", Message: msg}
	}
	return &providers.TransportError{Provider: "ollama", Err: err}
}
