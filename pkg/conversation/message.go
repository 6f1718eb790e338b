package conversation

import (
	"fmt"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation. Messages are immutable value
// types; a conversation is an ordered, append-only slice of them.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

func (m Message) String() string {
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(m.Content, "\n"))
}

// ContentLength returns the summed character length of all message contents.
// The router uses this as a cheap stand-in for token counting when checking
// a provider's context budget.
func ContentLength(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
	}
	return total
}

// SplitSystem separates system-role content from the remaining messages.
// Backends that take the system prompt as a dedicated request field (claude,
// gemini) use this instead of sending a system-role message inline.
func SplitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n"), rest
}
