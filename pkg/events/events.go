package events

import (
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	// EventTypeStart is published once before the first chunk of a stream.
	EventTypeStart EventType = "start"
	// EventTypePartial carries one streamed chunk plus the accumulated text.
	EventTypePartial EventType = "partial"
	// EventTypeFinal carries the complete reply text.
	EventTypeFinal EventType = "final"
	EventTypeError EventType = "error"
)

// Event is the payload published for every streaming lifecycle step of a
// conversation completion.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
	// Delta is the newest chunk (partial events only).
	Delta string `json:"delta,omitempty"`
	// Completion is the text accumulated so far (partial) or the full reply
	// (final).
	Completion string `json:"completion,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ParseEvent decodes a published watermill message back into an Event.
func ParseEvent(msg *message.Message) (*Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// PublisherManager fans events out to registered watermill publishers, one
// topic per subscription. Publishing is best-effort: failures are logged and
// never propagate into the completion path.
type PublisherManager struct {
	mu            sync.RWMutex
	subscriptions map[string][]message.Publisher
}

func NewPublisherManager() *PublisherManager {
	return &PublisherManager{
		subscriptions: map[string][]message.Publisher{},
	}
}

func (m *PublisherManager) AddSubscription(topic string, pub message.Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[topic] = append(m.subscriptions[topic], pub)
}

func (m *PublisherManager) Publish(e *Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	msg := message.NewMessage(watermill.NewUUID(), b)
	for topic, pubs := range m.subscriptions {
		for _, pub := range pubs {
			if err := pub.Publish(topic, msg); err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("failed to publish event")
			}
		}
	}
	return nil
}

func (m *PublisherManager) PublishBlind(e *Event) {
	if err := m.Publish(e); err != nil {
		log.Warn().Err(err).Msg("failed to publish event")
	}
}
