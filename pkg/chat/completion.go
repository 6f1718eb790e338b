package chat

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/cogchat/pkg/conversation"
	"github.com/go-go-golems/cogchat/pkg/events"
	"github.com/go-go-golems/cogchat/pkg/graph"
	"github.com/go-go-golems/cogchat/pkg/providers"
)

// ErrEmptyConversation is returned by Complete and CompleteStream when no
// message has been added yet.
var ErrEmptyConversation = errors.New("no messages in conversation")

// Completion is an ordered, append-only conversation bound to one resolved
// provider adapter. Turns are mirrored into the attached graph store as
// member facts on every append; the store is a best-effort side channel, so
// mirror failures are logged and never fail the conversation operation.
type Completion struct {
	id        string
	adapter   providers.Adapter
	store     graph.Store
	publisher *events.PublisherManager

	mu       sync.Mutex
	messages []conversation.Message
}

type Option func(*Completion)

// WithStore attaches a graph store that conversation turns are mirrored into.
func WithStore(store graph.Store) Option {
	return func(c *Completion) { c.store = store }
}

// WithPublisher attaches a publisher manager that streaming lifecycle events
// are fanned out through.
func WithPublisher(pm *events.PublisherManager) Option {
	return func(c *Completion) { c.publisher = pm }
}

// WithID overrides the generated conversation identifier. Used when loading
// a persisted conversation back under its stored identity.
func WithID(id string) Option {
	return func(c *Completion) { c.id = id }
}

func New(adapter providers.Adapter, opts ...Option) *Completion {
	c := &Completion{
		id:      uuid.NewString(),
		adapter: adapter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Completion) ID() string { return c.id }

// SetPublisher attaches or replaces the event publisher after construction.
func (c *Completion) SetPublisher(pm *events.PublisherManager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publisher = pm
}

// AddMessage appends a message to the conversation and mirrors it into the
// attached graph store.
func (c *Completion) AddMessage(role conversation.Role, content string) {
	c.mu.Lock()
	idx := len(c.messages)
	c.messages = append(c.messages, conversation.NewMessage(role, content))
	c.mu.Unlock()

	c.mirror(idx, role, content)
}

// Messages returns a copy of the conversation so far.
func (c *Completion) Messages() []conversation.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]conversation.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Completion) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Complete sends the conversation to the bound adapter and appends the reply
// as an assistant message before returning it, so the conversation is always
// self-consistent after a completion.
func (c *Completion) Complete(ctx context.Context) (string, error) {
	msgs := c.Messages()
	if len(msgs) == 0 {
		return "", ErrEmptyConversation
	}

	reply, err := c.adapter.Complete(ctx, msgs)
	if err != nil {
		log.Debug().Err(err).Str("conversation_id", c.id).Msg("completion failed")
		return "", err
	}

	c.AddMessage(conversation.RoleAssistant, reply)
	return reply, nil
}

// CompleteStream streams the reply through onChunk, accumulating all chunks.
// Only when the stream finishes successfully and the accumulated text is
// non-empty is it appended as a single assistant message; an aborted stream
// never corrupts history with a truncated message.
func (c *Completion) CompleteStream(ctx context.Context, onChunk providers.ChunkHandler) error {
	msgs := c.Messages()
	if len(msgs) == 0 {
		return ErrEmptyConversation
	}

	c.publish(&events.Event{Type: events.EventTypeStart, ConversationID: c.id})

	var accumulated strings.Builder
	wrapped := func(chunk string) error {
		accumulated.WriteString(chunk)
		c.publish(&events.Event{
			Type:           events.EventTypePartial,
			ConversationID: c.id,
			Delta:          chunk,
			Completion:     accumulated.String(),
		})
		if onChunk == nil {
			return nil
		}
		return onChunk(chunk)
	}

	if err := c.adapter.CompleteStream(ctx, msgs, wrapped); err != nil {
		c.publish(&events.Event{
			Type:           events.EventTypeError,
			ConversationID: c.id,
			Completion:     accumulated.String(),
			Error:          err.Error(),
		})
		return err
	}

	full := accumulated.String()
	if full != "" {
		c.AddMessage(conversation.RoleAssistant, full)
	}
	c.publish(&events.Event{
		Type:           events.EventTypeFinal,
		ConversationID: c.id,
		Completion:     full,
	})
	return nil
}

// Clear resets the conversation to empty and removes the member facts
// previously mirrored for this conversation's identifier.
func (c *Completion) Clear() {
	c.mu.Lock()
	c.messages = nil
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	anchor, err := c.store.GetNode(graph.NodeTypeConcept, anchorName(c.id))
	if err != nil || anchor == nil {
		return
	}
	links, err := c.store.IncomingLinks(anchor)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", c.id).Msg("failed to list conversation facts")
		return
	}
	for _, l := range links {
		if l.Type != graph.LinkTypeMember {
			continue
		}
		if err := c.store.RemoveLink(l); err != nil {
			log.Warn().Err(err).Str("conversation_id", c.id).Msg("failed to remove conversation fact")
		}
	}
}

// SaveTo mirrors the whole conversation into the given store under this
// conversation's identifier. Used by the session manager when flushing.
func (c *Completion) SaveTo(store graph.Store) error {
	for i, m := range c.Messages() {
		if err := mirrorMessage(store, c.id, i, m.Role, m.Content); err != nil {
			return err
		}
	}
	return nil
}

func (c *Completion) publish(e *events.Event) {
	c.mu.Lock()
	pm := c.publisher
	c.mu.Unlock()
	if pm != nil {
		pm.PublishBlind(e)
	}
}

func (c *Completion) mirror(idx int, role conversation.Role, content string) {
	if c.store == nil {
		return
	}
	if err := mirrorMessage(c.store, c.id, idx, role, content); err != nil {
		log.Warn().Err(err).Str("conversation_id", c.id).Msg("failed to mirror message")
	}
}

func anchorName(id string) string {
	return "conversation:" + id
}

func messageName(idx int, role conversation.Role, content string) string {
	return fmt.Sprintf("message:%d:%s:%s", idx, role, content)
}

func mirrorMessage(store graph.Store, id string, idx int, role conversation.Role, content string) error {
	msgNode, err := store.AddNode(graph.NodeTypeConcept, messageName(idx, role, content))
	if err != nil {
		return err
	}
	anchor, err := store.AddNode(graph.NodeTypeConcept, anchorName(id))
	if err != nil {
		return err
	}
	_, err = store.AddLink(graph.LinkTypeMember, msgNode, anchor)
	return err
}

// LoadMessages reads back the mirrored conversation for the given identifier,
// in original order. A missing conversation yields an empty slice.
func LoadMessages(store graph.Store, id string) ([]conversation.Message, error) {
	anchor, err := store.GetNode(graph.NodeTypeConcept, anchorName(id))
	if err != nil {
		return nil, err
	}
	if anchor == nil {
		return nil, nil
	}

	links, err := store.IncomingLinks(anchor)
	if err != nil {
		return nil, err
	}

	type indexed struct {
		idx int
		msg conversation.Message
	}
	var found []indexed
	for _, l := range links {
		if l.Type != graph.LinkTypeMember || len(l.Targets) < 2 {
			continue
		}
		idx, msg, ok := parseMessageName(l.Targets[0].Name)
		if !ok {
			continue
		}
		found = append(found, indexed{idx: idx, msg: msg})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].idx < found[j].idx })

	out := make([]conversation.Message, 0, len(found))
	for _, f := range found {
		out = append(out, f.msg)
	}
	return out, nil
}

func parseMessageName(name string) (int, conversation.Message, bool) {
	parts := strings.SplitN(name, ":", 4)
	if len(parts) != 4 || parts[0] != "message" {
		return 0, conversation.Message{}, false
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, conversation.Message{}, false
	}
	return idx, conversation.NewMessage(conversation.Role(parts[2]), parts[3]), true
}
