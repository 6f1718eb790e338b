package openai

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/cogchat/pkg/conversation"
	"github.com/go-go-golems/cogchat/pkg/providers"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	groqBaseURL        = "https://api.groq.com/openai/v1"
	defaultModel       = "gpt-3.5-turbo"
	defaultGroqModel   = "llama3-70b-8192"
	embeddingModelName = go_openai.AdaEmbeddingV2
)

// Adapter talks to OpenAI-compatible chat completion backends. The same
// implementation serves the hosted OpenAI API and the Groq fast-inference
// endpoint; they differ only in default endpoint, default model and whether
// an embeddings endpoint exists. Auth is a bearer header, the system role is
// a first-class message and role names map straight through.
type Adapter struct {
	name               string
	client             *go_openai.Client
	model              string
	temperature        float32
	topP               float32
	maxTokens          int
	supportsEmbeddings bool
}

var _ providers.Adapter = (*Adapter)(nil)

// New returns an adapter for the hosted OpenAI API.
func New(cfg providers.ClientConfig) *Adapter {
	return newCompatible("openai", defaultBaseURL, defaultModel, true, cfg)
}

// NewGroq returns an adapter for the Groq OpenAI-compatible API, which offers
// no embeddings endpoint.
func NewGroq(cfg providers.ClientConfig) *Adapter {
	return newCompatible("groq", groqBaseURL, defaultGroqModel, false, cfg)
}

// NewCompatible returns an adapter for a self-hosted OpenAI-compatible
// endpoint at the given base URL.
func NewCompatible(name string, baseURL string, cfg providers.ClientConfig) *Adapter {
	return newCompatible(name, baseURL, defaultModel, false, cfg)
}

func newCompatible(name, baseURL, model string, embeddings bool, cfg providers.ClientConfig) *Adapter {
	clientCfg := go_openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = baseURL
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		model = cfg.Model
	}

	return &Adapter{
		name:               name,
		client:             go_openai.NewClientWithConfig(clientCfg),
		model:              model,
		temperature:        cfg.Temperature,
		topP:               cfg.TopP,
		maxTokens:          cfg.MaxTokens,
		supportsEmbeddings: embeddings,
	}
}

func (a *Adapter) request(messages []conversation.Message, stream bool) go_openai.ChatCompletionRequest {
	req := go_openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.temperature,
		TopP:        a.topP,
		Stream:      stream,
	}
	if a.maxTokens > 0 {
		req.MaxTokens = a.maxTokens
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, go_openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return req
}

func (a *Adapter) Complete(ctx context.Context, messages []conversation.Message) (string, error) {
	log.Debug().Str("provider", a.name).Int("num_messages", len(messages)).Msg("chat completion started")

	resp, err := a.client.CreateChatCompletion(ctx, a.request(messages, false))
	if err != nil {
		return "", a.mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &providers.MalformedResponseError{Provider: a.name, Reason: "response contains no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

func (a *Adapter) CompleteStream(ctx context.Context, messages []conversation.Message, onChunk providers.ChunkHandler) error {
	log.Debug().Str("provider", a.name).Int("num_messages", len(messages)).Msg("streaming completion started")

	stream, err := a.client.CreateChatCompletionStream(ctx, a.request(messages, true))
	if err != nil {
		return a.mapError(err)
	}
	defer stream.Close()

	emitted := false
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return a.mapError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		emitted = true
		if err := onChunk(delta); err != nil {
			return err
		}
	}

	// The contract requires at least one chunk on success.
	if !emitted {
		return onChunk("")
	}
	return nil
}

func (a *Adapter) Embeddings(ctx context.Context, text string) ([]float32, error) {
	if !a.supportsEmbeddings {
		return nil, providers.ErrUnsupportedCapability
	}

	resp, err := a.client.CreateEmbeddings(ctx, go_openai.EmbeddingRequest{
		Input: []string{text},
		Model: embeddingModelName,
	})
	if err != nil {
		return nil, a.mapError(err)
	}
	if len(resp.Data) == 0 {
		return nil, &providers.MalformedResponseError{Provider: a.name, Reason: "response contains no embedding data"}
	}
	return resp.Data[0].Embedding, nil
}

// mapError translates go-openai failures onto the shared taxonomy. A
// structured API error body becomes a ProviderError; anything else is treated
// as a transport failure.
func (a *Adapter) mapError(err error) error {
	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		return &providers.ProviderError{Provider: a.name, Message: apiErr.Message}
	}
	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		return &providers.ProviderError{Provider: a.name, Message: reqErr.Error()}
	}
	return &providers.TransportError{Provider: a.name, Err: err}
}
