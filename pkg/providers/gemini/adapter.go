package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/cogchat/pkg/conversation"
	"github.com/go-go-golems/cogchat/pkg/providers"
)

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel          = "gemini-1.5-flash"
	defaultEmbeddingModel = "text-embedding-004"
)

// Adapter talks to the Google generativelanguage REST API. The assistant
// role is remapped to "model", system-role content travels as a dedicated
// systemInstruction field, and authentication is a key query parameter
// rather than a header. Streaming is simulated by chunking the final text.
type Adapter struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float32
	topP        float32
	maxTokens   int
}

var _ providers.Adapter = (*Adapter)(nil)

func New(cfg providers.ClientConfig) *Adapter {
	baseURL := defaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	model := defaultModel
	if cfg.Model != "" {
		model = cfg.Model
	}
	return &Adapter{
		httpClient:  &http.Client{},
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
	}
}

func (a *Adapter) endpoint(model, operation string) string {
	return fmt.Sprintf("%s/models/%s:%s?key=%s", a.baseURL, model, operation, url.QueryEscape(a.apiKey))
}

func (a *Adapter) request(messages []conversation.Message) *generateRequest {
	system, rest := conversation.SplitSystem(messages)

	req := &generateRequest{}
	if system != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	for _, m := range rest {
		role := string(m.Role)
		if m.Role == conversation.RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, content{
			Role:  role,
			Parts: []part{{Text: m.Content}},
		})
	}

	cfg := &generationConfig{MaxOutputTokens: a.maxTokens}
	if a.temperature > 0 {
		t := a.temperature
		cfg.Temperature = &t
	}
	if a.topP > 0 {
		p := a.topP
		cfg.TopP = &p
	}
	req.GenerationConfig = cfg
	return req
}

func (a *Adapter) post(ctx context.Context, endpoint string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &providers.TransportError{Provider: "gemini", Err: err}
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &providers.TransportError{Provider: "gemini", Err: err}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &providers.ProviderError{Provider: "gemini", Message: string(respBody)}
		}
		return &providers.MalformedResponseError{Provider: "gemini", Reason: err.Error()}
	}
	return nil
}

func (a *Adapter) Complete(ctx context.Context, messages []conversation.Message) (string, error) {
	log.Debug().Str("provider", "gemini").Int("num_messages", len(messages)).Msg("chat completion started")

	var resp generateResponse
	if err := a.post(ctx, a.endpoint(a.model, "generateContent"), a.request(messages), &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", &providers.ProviderError{Provider: "gemini", Message: resp.Error.Message}
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &providers.MalformedResponseError{Provider: "gemini", Reason: "response contains no candidates"}
	}

	text := ""
	for _, p := range resp.Candidates[0].Content.Parts {
		text += p.Text
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

func (a *Adapter) Embeddings(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	req := &embedRequest{Content: content{Parts: []part{{Text: text}}}}
	if err := a.post(ctx, a.endpoint(defaultEmbeddingModel, "embedContent"), req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &providers.ProviderError{Provider: "gemini", Message: resp.Error.Message}
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, &providers.MalformedResponseError{Provider: "gemini", Reason: "response contains no embedding values"}
	}
	return resp.Embedding.Values, nil
}
