package session

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/cogchat/pkg/chat"
	"github.com/go-go-golems/cogchat/pkg/graph"
	"github.com/go-go-golems/cogchat/pkg/providers"
	"github.com/go-go-golems/cogchat/pkg/providers/factory"
)

// activeWindow is the liveness heuristic: a session touched within the
// window is flushed from its live conversation, an older one goes through
// the metadata-only persistence path. It is not a lock.
const activeWindow = time.Hour

const (
	defaultProvider = "openai"
	defaultModel    = "gpt-3.5-turbo"
)

// Graph fact vocabulary. Sessions are anchored as concept nodes; metadata
// and the name mapping are evaluation facts over them.
const (
	predNamedSession = "named-session"
	predHasProvider  = "has-provider"
	predHasModel     = "has-model"
	predCreatedAt    = "created-at"
	predLastUpdated  = "last-updated"
	predPersistent   = "persistent"
	predSynergy      = "synergy"
	predModuleAudit  = "module-audit"
)

// CoreModules are the components audited and linked to every session anchor.
var CoreModules = []string{"providers", "router", "chat", "session", "bridge"}

var ErrSessionNotFound = errors.New("session not found")

// Metadata describes one session. It is one-to-one with a live Completion
// while the session is loaded; for persistent sessions it outlives the
// in-memory conversation in the graph store.
type Metadata struct {
	SessionID    string
	Provider     string
	Model        string
	CreatedAt    time.Time
	LastAccessed time.Time
	MessageCount int
	IsPersistent bool
	// Anchor is the session's node in the graph store, nil when the store
	// rejected the write.
	Anchor *graph.Node
}

// ConfigSource resolves the full client configuration (credentials,
// endpoint overrides) for a provider/model pair. Credentials are injected
// from outside; the manager never holds them itself.
type ConfigSource func(provider, model string) providers.ClientConfig

// Manager gives conversations stable, human-chosen names and keeps in-memory
// and graph-store state eventually consistent. It holds no global state;
// callers own their instance and its maps are safe for concurrent use.
type Manager struct {
	store   graph.Store
	factory factory.AdapterFactory
	config  ConfigSource
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*chat.Completion
	metadata map[string]*Metadata
}

type ManagerOption func(*Manager)

// WithConfigSource injects credential/endpoint resolution for new adapters.
func WithConfigSource(src ConfigSource) ManagerOption {
	return func(m *Manager) { m.config = src }
}

// WithClock overrides the time source, for staleness tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(store graph.Store, f factory.AdapterFactory, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:   store,
		factory: f,
		config: func(provider, model string) providers.ClientConfig {
			return providers.ClientConfig{Provider: provider, Model: model}
		},
		now:      time.Now,
		sessions: map[string]*chat.Completion{},
		metadata: map[string]*Metadata{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func sessionNodeName(id string) string { return "session:" + id }
func nameNodeName(name string) string  { return "session-name:" + name }

// Create starts a new unnamed, non-persistent session. It lives only in
// memory and is subject to Cleanup eviction.
func (m *Manager) Create(provider, model string) (string, error) {
	return m.create("", provider, model, false)
}

// CreatePersistent creates a new named session, writes the name→session_id
// mapping and the metadata facts into the graph store, and links the session
// anchor to each core module.
func (m *Manager) CreatePersistent(name, provider, model string) (string, error) {
	return m.create(name, provider, model, true)
}

func (m *Manager) create(name, provider, model string, persistent bool) (string, error) {
	if provider == "" {
		provider = defaultProvider
	}
	if model == "" {
		model = defaultModel
	}

	id := "session-" + shortuuid.New()

	adapter, err := m.factory.CreateAdapter(m.config(provider, model))
	if err != nil {
		return "", errors.Wrapf(err, "failed to create session %s", name)
	}

	completion := chat.New(adapter, chat.WithStore(m.store), chat.WithID(id))

	now := m.now()
	meta := &Metadata{
		SessionID:    id,
		Provider:     provider,
		Model:        model,
		CreatedAt:    now,
		LastAccessed: now,
		IsPersistent: persistent,
	}
	meta.Anchor = m.writeSessionFacts(name, meta)

	m.mu.Lock()
	m.sessions[id] = completion
	m.metadata[id] = meta
	m.mu.Unlock()

	log.Debug().Str("session_id", id).Str("name", name).Bool("persistent", persistent).
		Msg("created session")
	return id, nil
}

// writeSessionFacts mirrors session metadata into the graph store. Store
// failures are logged and swallowed: the store is a best-effort mirror, not
// the source of truth for a live session.
func (m *Manager) writeSessionFacts(name string, meta *Metadata) *graph.Node {
	anchor, err := m.store.AddNode(graph.NodeTypeConcept, sessionNodeName(meta.SessionID))
	if err != nil {
		log.Warn().Err(err).Str("session_id", meta.SessionID).Msg("failed to write session anchor")
		return nil
	}

	if name != "" {
		nameNode, err := m.store.AddNode(graph.NodeTypeConcept, nameNodeName(name))
		if err == nil {
			_, err = m.addEvaluation(predNamedSession, nameNode, anchor)
		}
		if err != nil {
			log.Warn().Err(err).Str("session_id", meta.SessionID).Msg("failed to write session name mapping")
		}
	}

	m.writeAttribute(anchor, predHasProvider, meta.Provider)
	m.writeAttribute(anchor, predHasModel, meta.Model)
	m.writeAttribute(anchor, predCreatedAt, strconv.FormatInt(meta.CreatedAt.Unix(), 10))
	if meta.IsPersistent {
		m.writeAttribute(anchor, predPersistent, "true")
	}

	for _, module := range CoreModules {
		m.linkModule(anchor, module)
	}
	return anchor
}

func (m *Manager) addEvaluation(predicate string, args ...*graph.Node) (*graph.Link, error) {
	pred, err := m.store.AddNode(graph.NodeTypePredicate, predicate)
	if err != nil {
		return nil, err
	}
	targets := append([]*graph.Node{pred}, args...)
	return m.store.AddLink(graph.LinkTypeEvaluation, targets...)
}

func (m *Manager) writeAttribute(anchor *graph.Node, predicate, value string) {
	valueNode, err := m.store.AddNode(graph.NodeTypeConcept, value)
	if err == nil {
		_, err = m.addEvaluation(predicate, anchor, valueNode)
	}
	if err != nil {
		log.Warn().Err(err).Str("predicate", predicate).Msg("failed to write session attribute")
	}
}

func (m *Manager) linkModule(anchor *graph.Node, module string) {
	moduleNode, err := m.store.AddNode(graph.NodeTypeConcept, "module:"+module)
	if err == nil {
		_, err = m.addEvaluation(predSynergy, anchor, moduleNode)
	}
	if err != nil {
		log.Warn().Err(err).Str("module", module).Msg("failed to link session to module")
	}
}

// Resume looks up a named session in the graph store. If found, the session
// is rehydrated under its stored identity: provider and model default to the
// stored attribute facts (falling back to the given arguments, then to
// best-effort defaults when facts are missing) and last_accessed is
// refreshed. If the name is unknown, Resume behaves exactly as
// CreatePersistent.
func (m *Manager) Resume(name, provider, model string) (string, error) {
	id, err := m.lookupSessionID(name)
	if err != nil {
		log.Warn().Err(err).Str("name", name).Msg("failed to look up session by name")
	}
	if id == "" {
		return m.CreatePersistent(name, provider, model)
	}

	// Already loaded in memory: just refresh.
	m.mu.Lock()
	if meta, ok := m.metadata[id]; ok {
		meta.LastAccessed = m.now()
		m.mu.Unlock()
		return id, nil
	}
	m.mu.Unlock()

	anchor, _ := m.store.GetNode(graph.NodeTypeConcept, sessionNodeName(id))
	storedProvider := m.readAttribute(anchor, predHasProvider)
	storedModel := m.readAttribute(anchor, predHasModel)
	if storedProvider != "" {
		provider = storedProvider
	}
	if provider == "" {
		provider = defaultProvider
	}
	if storedModel != "" {
		model = storedModel
	}
	if model == "" {
		model = defaultModel
	}

	adapter, err := m.factory.CreateAdapter(m.config(provider, model))
	if err != nil {
		return "", errors.Wrapf(err, "failed to resume session %s", name)
	}

	completion := chat.New(adapter, chat.WithStore(m.store), chat.WithID(id))
	messages, err := chat.LoadMessages(m.store, id)
	if err != nil {
		log.Warn().Err(err).Str("session_id", id).Msg("failed to load persisted conversation")
	}
	for _, msg := range messages {
		completion.AddMessage(msg.Role, msg.Content)
	}

	now := m.now()
	meta := &Metadata{
		SessionID:    id,
		Provider:     provider,
		Model:        model,
		CreatedAt:    m.readCreatedAt(anchor, now),
		LastAccessed: now,
		MessageCount: len(messages),
		IsPersistent: true,
		Anchor:       anchor,
	}

	m.mu.Lock()
	m.sessions[id] = completion
	m.metadata[id] = meta
	m.mu.Unlock()

	log.Debug().Str("session_id", id).Str("name", name).Int("message_count", len(messages)).
		Msg("resumed session")
	return id, nil
}

// lookupSessionID resolves the name→session_id mapping fact. Empty result
// means the name is unknown.
func (m *Manager) lookupSessionID(name string) (string, error) {
	nameNode, err := m.store.GetNode(graph.NodeTypeConcept, nameNodeName(name))
	if err != nil || nameNode == nil {
		return "", err
	}

	links, err := m.store.IncomingLinks(nameNode)
	if err != nil {
		return "", err
	}
	for _, l := range links {
		if l.Type != graph.LinkTypeEvaluation || len(l.Targets) < 3 {
			continue
		}
		if l.Targets[0].Type != graph.NodeTypePredicate || l.Targets[0].Name != predNamedSession {
			continue
		}
		sessionName := l.Targets[2].Name
		if strings.HasPrefix(sessionName, "session:") {
			return strings.TrimPrefix(sessionName, "session:"), nil
		}
	}
	return "", nil
}

func (m *Manager) readAttribute(anchor *graph.Node, predicate string) string {
	if anchor == nil {
		return ""
	}
	links, err := m.store.IncomingLinks(anchor)
	if err != nil {
		return ""
	}
	for _, l := range links {
		if l.Type != graph.LinkTypeEvaluation || len(l.Targets) < 3 {
			continue
		}
		if l.Targets[0].Type == graph.NodeTypePredicate && l.Targets[0].Name == predicate {
			return l.Targets[2].Name
		}
	}
	return ""
}

func (m *Manager) readCreatedAt(anchor *graph.Node, fallback time.Time) time.Time {
	raw := m.readAttribute(anchor, predCreatedAt)
	if raw == "" {
		return fallback
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return time.Unix(unix, 0)
}

// Mediate keeps in-memory and persisted state eventually consistent. An
// active session has its live conversation flushed into the graph store and
// its access time refreshed; an inactive one goes through the persistence
// path from metadata alone, covering the case where the in-memory
// conversation is already gone.
func (m *Manager) Mediate(sessionID string) error {
	m.mu.Lock()
	meta, ok := m.metadata[sessionID]
	if !ok {
		m.mu.Unlock()
		return errors.Wrap(ErrSessionNotFound, sessionID)
	}
	completion := m.sessions[sessionID]
	active := m.now().Sub(meta.LastAccessed) < activeWindow
	m.mu.Unlock()

	if active && completion != nil {
		if err := completion.SaveTo(m.store); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to flush conversation")
		}
		m.mu.Lock()
		meta.MessageCount = completion.Len()
		meta.LastAccessed = m.now()
		m.mu.Unlock()
	} else if meta.IsPersistent && meta.Anchor != nil {
		m.writeAttribute(meta.Anchor, predPersistent, "true")
	}

	if meta.Anchor != nil {
		m.writeAttribute(meta.Anchor, predLastUpdated, strconv.FormatInt(m.now().Unix(), 10))
	}
	return nil
}

// Completion returns the live conversation for a loaded session.
func (m *Manager) Completion(sessionID string) (*chat.Completion, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.sessions[sessionID]
	return c, ok
}

// Metadata returns a snapshot of the session's metadata.
func (m *Manager) Metadata(sessionID string) (Metadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.metadata[sessionID]
	if !ok {
		return Metadata{}, false
	}
	return *meta, true
}

// Touch refreshes a session's access time.
func (m *Manager) Touch(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if meta, ok := m.metadata[sessionID]; ok {
		meta.LastAccessed = m.now()
	}
}

// IsActive reports whether the session was accessed within the last hour.
func (m *Manager) IsActive(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.metadata[sessionID]
	return ok && m.now().Sub(meta.LastAccessed) < activeWindow
}

// ListSessions returns metadata snapshots for every loaded session, sorted
// by session id.
func (m *Manager) ListSessions() []Metadata {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Metadata, 0, len(m.metadata))
	for _, meta := range m.metadata {
		out = append(out, *meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// SessionsByProvider returns metadata snapshots for sessions bound to the
// given provider.
func (m *Manager) SessionsByProvider(provider string) []Metadata {
	var out []Metadata
	for _, meta := range m.ListSessions() {
		if meta.Provider == provider {
			out = append(out, meta)
		}
	}
	return out
}

// Cleanup evicts non-persistent sessions whose last access is older than the
// cutoff from the in-memory maps. Persistent sessions are never evicted by
// this path; they stay addressable through the graph store.
func (m *Manager) Cleanup(maxAgeHours int) int {
	cutoff := m.now().Add(-time.Duration(maxAgeHours) * time.Hour)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, meta := range m.metadata {
		if meta.IsPersistent || meta.LastAccessed.After(cutoff) {
			continue
		}
		delete(m.sessions, id)
		delete(m.metadata, id)
		evicted++
	}
	if evicted > 0 {
		log.Debug().Int("evicted", evicted).Msg("cleaned up inactive sessions")
	}
	return evicted
}

// AuditModules writes an audit fact for each core module and a synergy link
// from every loaded session anchor to each module node. It returns the
// audited module names.
func (m *Manager) AuditModules() []string {
	audited := make([]string, 0, len(CoreModules))
	for _, module := range CoreModules {
		moduleNode, err := m.store.AddNode(graph.NodeTypeConcept, "module:"+module)
		if err != nil {
			log.Warn().Err(err).Str("module", module).Msg("failed to write module node")
			continue
		}
		m.writeAttribute(moduleNode, predModuleAudit, "ok")

		for _, meta := range m.ListSessions() {
			if meta.Anchor != nil {
				m.linkModule(meta.Anchor, module)
			}
		}
		audited = append(audited, module)
	}
	return audited
}

// String implements a compact human-readable rendering for CLI listings.
func (meta Metadata) String() string {
	kind := "ephemeral"
	if meta.IsPersistent {
		kind = "persistent"
	}
	return fmt.Sprintf("%s %s/%s %s messages=%d", meta.SessionID, meta.Provider, meta.Model, kind, meta.MessageCount)
}
