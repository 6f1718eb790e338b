package providers

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownProvider is returned by the adapter factory for provider
	// strings it has no constructor for.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrUnsupportedCapability is returned when an operation is not offered
	// by the backend, e.g. embeddings on a chat-only provider. Callers should
	// route elsewhere rather than retry.
	ErrUnsupportedCapability = errors.New("capability not supported by provider")
)

// TransportError wraps a network or connection failure. The request may never
// have reached the backend; callers may retry, adapters never do.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError carries a structured error body returned by the backend. The
// message is surfaced verbatim and the call is not retried.
type ProviderError struct {
	Provider string
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: provider error: %s", e.Provider, e.Message)
}

// MalformedResponseError indicates a success status whose payload did not
// match the expected shape. Treated as a bug signal, not retried.
type MalformedResponseError struct {
	Provider string
	Reason   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Provider, e.Reason)
}
