package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/cogchat/pkg/conversation"
	"github.com/go-go-golems/cogchat/pkg/providers"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(providers.ClientConfig{APIKey: "test-key", BaseURL: server.URL})
}

func TestCompletePassesRolesThrough(t *testing.T) {
	var received go_openai.ChatCompletionRequest
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(go_openai.ChatCompletionResponse{
			Choices: []go_openai.ChatCompletionChoice{
				{Message: go_openai.ChatCompletionMessage{Role: "assistant", Content: "hello back"}},
			},
		})
	})

	reply, err := adapter.Complete(context.Background(), []conversation.Message{
		conversation.NewMessage(conversation.RoleSystem, "be nice"),
		conversation.NewMessage(conversation.RoleUser, "hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello back", reply)

	// The system role is a first-class message here, not a separate field.
	require.Len(t, received.Messages, 2)
	assert.Equal(t, "system", received.Messages[0].Role)
	assert.Equal(t, "user", received.Messages[1].Role)
}

func TestCompleteMapsEmptyChoices(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(go_openai.ChatCompletionResponse{})
	})

	_, err := adapter.Complete(context.Background(), []conversation.Message{
		conversation.NewMessage(conversation.RoleUser, "hi"),
	})

	var malformed *providers.MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func TestCompleteMapsAPIError(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`))
	})

	_, err := adapter.Complete(context.Background(), []conversation.Message{
		conversation.NewMessage(conversation.RoleUser, "hi"),
	})
	require.Error(t, err)

	var providerErr *providers.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "openai", providerErr.Provider)
	assert.Contains(t, providerErr.Message, "Incorrect API key")
}

func TestCompleteStreamDeliversDeltas(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"hel", "lo"} {
			chunk := go_openai.ChatCompletionStreamResponse{
				Choices: []go_openai.ChatCompletionStreamChoice{
					{Delta: go_openai.ChatCompletionStreamChoiceDelta{Content: delta}},
				},
			}
			b, _ := json.Marshal(chunk)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", b)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var b strings.Builder
	err := adapter.CompleteStream(context.Background(), []conversation.Message{
		conversation.NewMessage(conversation.RoleUser, "hi"),
	}, func(chunk string) error {
		b.WriteString(chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", b.String())
}

func TestCompleteStreamEmptyStreamEmitsOneChunk(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	})

	calls := 0
	err := adapter.CompleteStream(context.Background(), []conversation.Message{
		conversation.NewMessage(conversation.RoleUser, "hi"),
	}, func(chunk string) error {
		calls++
		assert.Empty(t, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestEmbeddings(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(go_openai.EmbeddingResponse{
			Data: []go_openai.Embedding{{Embedding: []float32{0.5, -0.5}}},
		})
	})

	vector, err := adapter.Embeddings(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.5}, vector)
}

func TestGroqHasNoEmbeddings(t *testing.T) {
	adapter := NewGroq(providers.ClientConfig{APIKey: "k"})

	_, err := adapter.Embeddings(context.Background(), "text")
	assert.ErrorIs(t, err, providers.ErrUnsupportedCapability)
}
