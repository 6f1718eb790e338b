package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/cogchat/pkg/conversation"
)

func userMessages(contents ...string) []conversation.Message {
	var out []conversation.Message
	for _, c := range contents {
		out = append(out, conversation.NewMessage(conversation.RoleUser, c))
	}
	return out
}

func TestPreferredProviderWinsRegardlessOfFit(t *testing.T) {
	r := NewRouter()
	r.Register("a", Capabilities{SupportsChat: true, MaxContextLength: 100})
	r.Register("b", Capabilities{SupportsChat: true, MaxContextLength: 10000})

	// "a" cannot fit the conversation, but pinning dominates scoring.
	long := strings.Repeat("x", 500)
	name, err := r.Select(userMessages(long), TaskChat, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", name)
}

func TestPreferredProviderIgnoredWhenUnregistered(t *testing.T) {
	r := NewRouter()
	r.Register("b", Capabilities{SupportsChat: true, MaxContextLength: 10000})

	name, err := r.Select(userMessages("hi"), TaskChat, "ghost")
	require.NoError(t, err)
	assert.Equal(t, "b", name)
}

func TestPreferredProviderIgnoredWhenTaskUnsupported(t *testing.T) {
	r := NewRouter()
	r.Register("chatonly", Capabilities{SupportsChat: true, MaxContextLength: 10000})
	r.Register("embedder", Capabilities{SupportsEmbeddings: true, MaxContextLength: 10000})

	name, err := r.Select(userMessages("hi"), TaskEmbedding, "chatonly")
	require.NoError(t, err)
	assert.Equal(t, "embedder", name)
}

func TestContextLengthExcludesProvider(t *testing.T) {
	r := NewRouter()
	// The free small provider would win on score, but cannot fit the
	// conversation.
	r.Register("small", Capabilities{SupportsChat: true, MaxContextLength: 4096})
	r.Register("large", Capabilities{SupportsChat: true, CostPerToken: 0.00003, MaxContextLength: 8192})

	long := strings.Repeat("x", 5000)
	name, err := r.Select(userMessages(long), TaskChat, "")
	require.NoError(t, err)
	assert.Equal(t, "large", name)
}

func TestContextLengthSumsAllMessages(t *testing.T) {
	r := NewRouter()
	r.Register("small", Capabilities{SupportsChat: true, MaxContextLength: 100})
	r.Register("large", Capabilities{SupportsChat: true, MaxContextLength: 10000})

	// Each message fits individually, the sum does not.
	msgs := userMessages(strings.Repeat("a", 60), strings.Repeat("b", 60))
	name, err := r.Select(msgs, TaskChat, "")
	require.NoError(t, err)
	assert.Equal(t, "large", name)
}

func TestFreeProviderBeatsPaid(t *testing.T) {
	r := NewRouter()
	r.Register("paid", Capabilities{SupportsChat: true, CostPerToken: 0.0000005, MaxContextLength: 10000})
	r.Register("free", Capabilities{SupportsChat: true, MaxContextLength: 10000})

	name, err := r.Select(userMessages("hi"), TaskChat, "")
	require.NoError(t, err)
	assert.Equal(t, "free", name)
}

func TestFeatureBonusesBreakCostTies(t *testing.T) {
	r := NewRouter()
	r.Register("plain", Capabilities{SupportsChat: true, MaxContextLength: 10000})
	r.Register("rich", Capabilities{
		SupportsChat:      true,
		SupportsStreaming: true,
		SupportsFunctions: true,
		MaxContextLength:  10000,
	})

	name, err := r.Select(userMessages("hi"), TaskChat, "")
	require.NoError(t, err)
	assert.Equal(t, "rich", name)
}

func TestEqualScoresBreakLexicographically(t *testing.T) {
	caps := Capabilities{SupportsChat: true, MaxContextLength: 10000}
	r := NewRouter()
	r.Register("zeta", caps)
	r.Register("alpha", caps)

	name, err := r.Select(userMessages("hi"), TaskChat, "")
	require.NoError(t, err)
	assert.Equal(t, "alpha", name)
}

func TestEmptyRegistry(t *testing.T) {
	r := NewRouter()

	_, err := r.Select(userMessages("hi"), TaskChat, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSuitableProvider)
}

func TestNoProviderSupportsTask(t *testing.T) {
	r := NewRouter()
	r.Register("chatonly", Capabilities{SupportsChat: true, MaxContextLength: 10000})

	_, err := r.Select(userMessages("hi"), TaskEmbedding, "")
	assert.ErrorIs(t, err, ErrNoSuitableProvider)
}

func TestRegisterUpserts(t *testing.T) {
	r := NewRouter()
	r.Register("p", Capabilities{SupportsChat: true, MaxContextLength: 100})
	r.Register("p", Capabilities{SupportsChat: true, MaxContextLength: 9000})

	caps, ok := r.Capabilities("p")
	require.True(t, ok)
	assert.Equal(t, 9000, caps.MaxContextLength)
}

func TestDefaultRouterPrefersGeminiForShortChat(t *testing.T) {
	r := NewDefaultRouter()

	// gemini's capped inverse-cost bonus plus the function-calling bonus
	// outscores the free providers, which lack function calling.
	name, err := r.Select(userMessages("hello"), TaskChat, "")
	require.NoError(t, err)
	assert.Equal(t, "gemini", name)
}

func TestDefaultRouterEmbeddingFallsBackToPaid(t *testing.T) {
	r := NewDefaultRouter()

	// Too long for ollama's 8192 budget; gemini wins on cost among the paid
	// embedding providers.
	long := strings.Repeat("x", 20000)
	name, err := r.Select(userMessages(long), TaskEmbedding, "")
	require.NoError(t, err)
	assert.Equal(t, "gemini", name)
}

func TestListFiltersByTask(t *testing.T) {
	r := NewDefaultRouter()

	embedders := r.List(TaskEmbedding)
	assert.Equal(t, []string{"gemini", "ollama", "openai"}, embedders)

	all := r.List("")
	assert.Len(t, all, 6)
}

func TestLoadCapabilities(t *testing.T) {
	yaml := `
myprovider:
  supports_chat: true
  supports_streaming: true
  cost_per_token: 0.00001
  max_context_length: 32768
`
	caps, err := LoadCapabilities(strings.NewReader(yaml))
	require.NoError(t, err)
	require.Contains(t, caps, "myprovider")
	assert.True(t, caps["myprovider"].SupportsChat)
	assert.Equal(t, 32768, caps["myprovider"].MaxContextLength)
	assert.InDelta(t, 0.00001, caps["myprovider"].CostPerToken, 1e-12)
}
