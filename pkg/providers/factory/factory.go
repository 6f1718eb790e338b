package factory

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/go-go-golems/cogchat/pkg/providers"
	"github.com/go-go-golems/cogchat/pkg/providers/claude"
	"github.com/go-go-golems/cogchat/pkg/providers/gemini"
	"github.com/go-go-golems/cogchat/pkg/providers/local"
	"github.com/go-go-golems/cogchat/pkg/providers/ollama"
	"github.com/go-go-golems/cogchat/pkg/providers/openai"
)

// AdapterFactory creates provider adapters from client configuration. It
// allows callers to resolve a provider by name without knowing the concrete
// implementations.
type AdapterFactory interface {
	// CreateAdapter creates an Adapter instance dispatching solely on
	// cfg.Provider. Unknown provider strings fail with ErrUnknownProvider.
	CreateAdapter(cfg providers.ClientConfig) (providers.Adapter, error)

	// SupportedProviders returns the provider names this factory supports.
	SupportedProviders() []string

	// DefaultProvider returns the provider used when cfg.Provider is empty.
	DefaultProvider() string
}

// StandardFactory is the default AdapterFactory covering all built-in
// backends.
type StandardFactory struct{}

var _ AdapterFactory = (*StandardFactory)(nil)

func NewStandardFactory() *StandardFactory {
	return &StandardFactory{}
}

func (f *StandardFactory) CreateAdapter(cfg providers.ClientConfig) (providers.Adapter, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = f.DefaultProvider()
	}

	switch provider {
	case "openai":
		return openai.New(cfg), nil
	case "groq":
		return openai.NewGroq(cfg), nil
	case "claude", "anthropic":
		return claude.New(cfg), nil
	case "gemini", "google":
		return gemini.New(cfg), nil
	case "ollama":
		return ollama.New(cfg)
	case "local":
		return local.New(cfg), nil
	default:
		supported := strings.Join(f.SupportedProviders(), ", ")
		return nil, errors.Wrapf(providers.ErrUnknownProvider, "%s (supported: %s)", provider, supported)
	}
}

func (f *StandardFactory) SupportedProviders() []string {
	return []string{
		"openai",
		"groq",
		"claude",
		"anthropic", // alias for claude
		"gemini",
		"google", // alias for gemini
		"ollama",
		"local",
	}
}

func (f *StandardFactory) DefaultProvider() string {
	return "openai"
}
