package router

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultCapabilities seeds the router with representative numbers for the
// well-known providers. This is configuration, not logic; deployments can
// replace it with a YAML file via LoadCapabilities.
func DefaultCapabilities() map[string]Capabilities {
	return map[string]Capabilities{
		"openai": {
			SupportsChat:       true,
			SupportsStreaming:  true,
			SupportsEmbeddings: true,
			SupportsFunctions:  true,
			SupportedModels:    []string{"gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"},
			CostPerToken:       0.00003,
			MaxContextLength:   128000,
		},
		"claude": {
			SupportsChat:      true,
			SupportsStreaming: true,
			SupportedModels:   []string{"claude-3-opus", "claude-3-sonnet", "claude-3-haiku"},
			CostPerToken:      0.000015,
			MaxContextLength:  200000,
		},
		"gemini": {
			SupportsChat:       true,
			SupportsStreaming:  true,
			SupportsEmbeddings: true,
			SupportsFunctions:  true,
			SupportedModels:    []string{"gemini-1.5-pro", "gemini-1.5-flash"},
			CostPerToken:       0.0000125,
			MaxContextLength:   1000000,
		},
		"ollama": {
			SupportsChat:       true,
			SupportsStreaming:  true,
			SupportsEmbeddings: true,
			SupportedModels:    []string{"llama3", "mistral", "all-minilm"},
			CostPerToken:       0,
			MaxContextLength:   8192,
		},
		"groq": {
			SupportsChat:      true,
			SupportsStreaming: true,
			SupportedModels:   []string{"llama3-70b-8192", "mixtral-8x7b-32768"},
			CostPerToken:      0.0000005,
			MaxContextLength:  32768,
		},
		"local": {
			SupportsChat:     true,
			SupportedModels:  []string{"local-weights"},
			CostPerToken:     0,
			MaxContextLength: 4096,
		},
	}
}

// NewDefaultRouter returns a router seeded with DefaultCapabilities.
func NewDefaultRouter() *Router {
	r := NewRouter()
	for name, caps := range DefaultCapabilities() {
		r.Register(name, caps)
	}
	return r
}

// LoadCapabilities parses a provider-name to capabilities mapping from YAML.
func LoadCapabilities(r io.Reader) (map[string]Capabilities, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read capabilities")
	}
	var out map[string]Capabilities
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, errors.Wrap(err, "failed to parse capabilities")
	}
	return out, nil
}

// LoadCapabilitiesFile reads a capabilities YAML file and registers its
// entries into the router, replacing existing registrations with the same
// name.
func (r *Router) LoadCapabilitiesFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	caps, err := LoadCapabilities(f)
	if err != nil {
		return err
	}
	for name, c := range caps {
		r.Register(name, c)
	}
	return nil
}
