package router

import (
	"math"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/cogchat/pkg/conversation"
)

// TaskType selects which capability a provider must offer.
type TaskType string

const (
	TaskChat      TaskType = "chat"
	TaskEmbedding TaskType = "embedding"
)

// ErrNoSuitableProvider is returned by Select when no registered provider
// satisfies the task type and context constraints.
var ErrNoSuitableProvider = errors.New("no suitable provider")

// Capabilities describes one provider for routing purposes. The provider name
// is the registry key; registrations with the same name replace each other.
type Capabilities struct {
	SupportsChat       bool     `yaml:"supports_chat"`
	SupportsStreaming  bool     `yaml:"supports_streaming"`
	SupportsEmbeddings bool     `yaml:"supports_embeddings"`
	SupportsFunctions  bool     `yaml:"supports_functions"`
	SupportedModels    []string `yaml:"supported_models,omitempty"`
	// CostPerToken is a representative per-token price in USD; zero means
	// free.
	CostPerToken float64 `yaml:"cost_per_token"`
	// MaxContextLength is the provider's context budget, compared against the
	// summed character length of the conversation.
	MaxContextLength int `yaml:"max_context_length"`
}

func (c Capabilities) supports(task TaskType) bool {
	switch task {
	case TaskChat:
		return c.SupportsChat
	case TaskEmbedding:
		return c.SupportsEmbeddings
	default:
		return false
	}
}

// Router is a registry of provider capabilities with a scoring-based
// selection algorithm. It holds no global state; callers own their instance.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Capabilities
}

func NewRouter() *Router {
	return &Router{providers: map[string]Capabilities{}}
}

// Register upserts the capabilities for a provider name.
func (r *Router) Register(name string, caps Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = caps
}

// Capabilities returns the registered capabilities for a provider name.
func (r *Router) Capabilities(name string) (Capabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps, ok := r.providers[name]
	return caps, ok
}

// Select returns the best provider for the given conversation and task.
//
// A preferred provider that is registered and supports the task wins
// unconditionally; pinning dominates scoring. Otherwise every registered
// provider supporting the task whose context budget covers the summed content
// length is scored, and the highest score wins. Providers whose context
// budget is insufficient are excluded entirely. Ties break lexicographically
// by provider name so selection is deterministic.
func (r *Router) Select(messages []conversation.Message, task TaskType, preferred string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if preferred != "" {
		if caps, ok := r.providers[preferred]; ok && caps.supports(task) {
			return preferred, nil
		}
	}

	length := conversation.ContentLength(messages)

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	best := ""
	bestScore := math.Inf(-1)
	for _, name := range names {
		caps := r.providers[name]
		if !caps.supports(task) || caps.MaxContextLength < length {
			continue
		}
		score := score(caps)
		log.Trace().Str("provider", name).Float64("score", score).Msg("scored provider")
		if score > bestScore {
			best = name
			bestScore = score
		}
	}

	if best == "" {
		return "", errors.Wrapf(ErrNoSuitableProvider, "task %s, context length %d", task, length)
	}
	return best, nil
}

// score rates a provider whose context budget already fits the conversation.
// Free providers get a flat bonus; paid ones an inverse-cost bonus capped
// below the free bonus so a free provider always outranks a paid one on this
// term.
func score(caps Capabilities) float64 {
	s := 10.0
	if caps.CostPerToken == 0 {
		s += 5
	} else {
		s += math.Min(4, 0.0001/caps.CostPerToken)
	}
	if caps.SupportsFunctions {
		s += 2
	}
	if caps.SupportsStreaming {
		s += 1
	}
	return s
}

// List returns every registered provider supporting the given task, sorted by
// name. The empty task lists all providers.
func (r *Router) List(task TaskType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for name, caps := range r.providers {
		if task == "" || caps.supports(task) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
