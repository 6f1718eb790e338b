package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/cogchat/pkg/conversation"
	"github.com/go-go-golems/cogchat/pkg/graph"
	"github.com/go-go-golems/cogchat/pkg/providers"
	"github.com/go-go-golems/cogchat/pkg/providers/factory"
)

// echoAdapter replies with a fixed string and records the config it was
// created from.
type echoAdapter struct {
	cfg providers.ClientConfig
}

var _ providers.Adapter = (*echoAdapter)(nil)

func (a *echoAdapter) Complete(context.Context, []conversation.Message) (string, error) {
	return "echo", nil
}

func (a *echoAdapter) CompleteStream(_ context.Context, _ []conversation.Message, onChunk providers.ChunkHandler) error {
	return onChunk("echo")
}

func (a *echoAdapter) Embeddings(context.Context, string) ([]float32, error) {
	return nil, providers.ErrUnsupportedCapability
}

type echoFactory struct {
	created []providers.ClientConfig
}

var _ factory.AdapterFactory = (*echoFactory)(nil)

func (f *echoFactory) CreateAdapter(cfg providers.ClientConfig) (providers.Adapter, error) {
	f.created = append(f.created, cfg)
	return &echoAdapter{cfg: cfg}, nil
}

func (f *echoFactory) SupportedProviders() []string { return []string{"echo"} }
func (f *echoFactory) DefaultProvider() string      { return "echo" }

// fakeClock is an adjustable time source.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T) (*Manager, *graph.MemoryStore, *fakeClock) {
	t.Helper()
	store := graph.NewMemoryStore()
	clock := newFakeClock()
	m := NewManager(store, &echoFactory{}, WithClock(clock.now))
	return m, store, clock
}

func TestCreatePersistentWritesNameMapping(t *testing.T) {
	m, store, _ := newTestManager(t)

	id, err := m.CreatePersistent("research", "openai", "gpt-4o")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// The name node exists and maps back to the session.
	nameNode, err := store.GetNode(graph.NodeTypeConcept, "session-name:research")
	require.NoError(t, err)
	require.NotNil(t, nameNode)

	resolved, err := m.lookupSessionID("research")
	require.NoError(t, err)
	assert.Equal(t, id, resolved)
}

func TestCreatePersistentMetadata(t *testing.T) {
	m, _, clock := newTestManager(t)

	id, err := m.CreatePersistent("research", "claude", "claude-3-haiku")
	require.NoError(t, err)

	meta, ok := m.Metadata(id)
	require.True(t, ok)
	assert.Equal(t, "claude", meta.Provider)
	assert.Equal(t, "claude-3-haiku", meta.Model)
	assert.True(t, meta.IsPersistent)
	assert.Equal(t, clock.now(), meta.CreatedAt)
	assert.Equal(t, clock.now(), meta.LastAccessed)
	assert.NotNil(t, meta.Anchor)
}

func TestCreateDefaultsProviderAndModel(t *testing.T) {
	m, _, _ := newTestManager(t)

	id, err := m.Create("", "")
	require.NoError(t, err)

	meta, ok := m.Metadata(id)
	require.True(t, ok)
	assert.Equal(t, "openai", meta.Provider)
	assert.Equal(t, "gpt-3.5-turbo", meta.Model)
	assert.False(t, meta.IsPersistent)
}

func TestResumeUnknownNameCreates(t *testing.T) {
	m, _, _ := newTestManager(t)

	id, err := m.Resume("fresh", "ollama", "llama3")
	require.NoError(t, err)

	meta, ok := m.Metadata(id)
	require.True(t, ok)
	assert.True(t, meta.IsPersistent)
	assert.Equal(t, "ollama", meta.Provider)
}

func TestResumeRoundTripRestoresConversation(t *testing.T) {
	store := graph.NewMemoryStore()
	clock := newFakeClock()

	m1 := NewManager(store, &echoFactory{}, WithClock(clock.now))
	id, err := m1.CreatePersistent("journal", "ollama", "llama3")
	require.NoError(t, err)

	completion, ok := m1.Completion(id)
	require.True(t, ok)
	completion.AddMessage(conversation.RoleUser, "first entry")
	_, err = completion.Complete(context.Background())
	require.NoError(t, err)
	require.NoError(t, m1.Mediate(id))

	// A second manager over the same store simulates a fresh process.
	m2 := NewManager(store, &echoFactory{}, WithClock(clock.now))
	resumedID, err := m2.Resume("journal", "", "")
	require.NoError(t, err)
	assert.Equal(t, id, resumedID)

	meta, ok := m2.Metadata(resumedID)
	require.True(t, ok)
	assert.Equal(t, 2, meta.MessageCount)
	assert.Equal(t, "ollama", meta.Provider)
	assert.Equal(t, "llama3", meta.Model)

	resumed, ok := m2.Completion(resumedID)
	require.True(t, ok)
	msgs := resumed.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first entry", msgs[0].Content)
	assert.Equal(t, "echo", msgs[1].Content)
}

func TestResumeRefreshesLastAccessed(t *testing.T) {
	m, _, clock := newTestManager(t)

	id, err := m.CreatePersistent("busy", "", "")
	require.NoError(t, err)

	clock.advance(30 * time.Minute)
	_, err = m.Resume("busy", "", "")
	require.NoError(t, err)

	meta, _ := m.Metadata(id)
	assert.Equal(t, clock.now(), meta.LastAccessed)
	assert.True(t, m.IsActive(id))
}

func TestMediateFlushesActiveSession(t *testing.T) {
	m, store, _ := newTestManager(t)

	id, err := m.CreatePersistent("notes", "", "")
	require.NoError(t, err)

	completion, _ := m.Completion(id)
	completion.AddMessage(conversation.RoleUser, "remember this")

	require.NoError(t, m.Mediate(id))

	meta, _ := m.Metadata(id)
	assert.Equal(t, 1, meta.MessageCount)

	// The message landed in the store under the session id.
	node, err := store.GetNode(graph.NodeTypeConcept, "conversation:"+id)
	require.NoError(t, err)
	assert.NotNil(t, node)
}

func TestMediateInactiveSession(t *testing.T) {
	m, _, clock := newTestManager(t)

	id, err := m.CreatePersistent("stale", "", "")
	require.NoError(t, err)

	clock.advance(2 * time.Hour)
	assert.False(t, m.IsActive(id))

	// Mediating an inactive session must not refresh its access time.
	require.NoError(t, m.Mediate(id))
	meta, _ := m.Metadata(id)
	assert.False(t, meta.LastAccessed.Equal(clock.now()))
}

func TestMediateUnknownSession(t *testing.T) {
	m, _, _ := newTestManager(t)

	err := m.Mediate("session-unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCleanupEvictsOnlyStaleEphemeralSessions(t *testing.T) {
	m, _, clock := newTestManager(t)

	persistent, err := m.CreatePersistent("keep", "", "")
	require.NoError(t, err)
	stale, err := m.Create("", "")
	require.NoError(t, err)

	clock.advance(3 * time.Hour)
	fresh, err := m.Create("", "")
	require.NoError(t, err)

	evicted := m.Cleanup(2)
	assert.Equal(t, 1, evicted)

	_, ok := m.Metadata(stale)
	assert.False(t, ok)
	_, ok = m.Metadata(persistent)
	assert.True(t, ok)
	_, ok = m.Metadata(fresh)
	assert.True(t, ok)
}

func TestCleanupZeroAgeEvictsAllEphemeral(t *testing.T) {
	m, _, clock := newTestManager(t)

	_, err := m.Create("", "")
	require.NoError(t, err)
	_, err = m.CreatePersistent("keep", "", "")
	require.NoError(t, err)

	// Make the ephemeral session strictly older than the zero cutoff.
	clock.advance(time.Nanosecond)

	evicted := m.Cleanup(0)
	assert.Equal(t, 1, evicted)
	assert.Len(t, m.ListSessions(), 1)
}

func TestListSessionsAndByProvider(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Create("openai", "gpt-4o")
	require.NoError(t, err)
	_, err = m.Create("ollama", "llama3")
	require.NoError(t, err)
	_, err = m.Create("openai", "gpt-3.5-turbo")
	require.NoError(t, err)

	all := m.ListSessions()
	assert.Len(t, all, 3)

	byProvider := m.SessionsByProvider("openai")
	assert.Len(t, byProvider, 2)
	for _, meta := range byProvider {
		assert.Equal(t, "openai", meta.Provider)
	}
}

func TestAuditModulesWritesFacts(t *testing.T) {
	m, store, _ := newTestManager(t)

	_, err := m.CreatePersistent("audited", "", "")
	require.NoError(t, err)

	modules := m.AuditModules()
	assert.Equal(t, CoreModules, modules)

	for _, module := range CoreModules {
		node, err := store.GetNode(graph.NodeTypeConcept, "module:"+module)
		require.NoError(t, err)
		assert.NotNil(t, node, module)
	}
}

func TestConfigSourceReceivesProviderAndModel(t *testing.T) {
	store := graph.NewMemoryStore()
	var seen providers.ClientConfig
	m := NewManager(store, &echoFactory{}, WithConfigSource(func(provider, model string) providers.ClientConfig {
		seen = providers.ClientConfig{Provider: provider, Model: model, APIKey: "secret"}
		return seen
	}))

	_, err := m.Create("gemini", "gemini-1.5-flash")
	require.NoError(t, err)
	assert.Equal(t, "gemini", seen.Provider)
	assert.Equal(t, "gemini-1.5-flash", seen.Model)
}
