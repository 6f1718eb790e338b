package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/cogchat/pkg/providers"
)

func TestCreateAdapterForEverySupportedProvider(t *testing.T) {
	f := NewStandardFactory()
	for _, name := range f.SupportedProviders() {
		adapter, err := f.CreateAdapter(providers.ClientConfig{Provider: name, APIKey: "test"})
		require.NoError(t, err, name)
		assert.NotNil(t, adapter, name)
	}
}

func TestCreateAdapterIsCaseInsensitive(t *testing.T) {
	f := NewStandardFactory()

	adapter, err := f.CreateAdapter(providers.ClientConfig{Provider: "Claude"})
	require.NoError(t, err)
	assert.NotNil(t, adapter)
}

func TestCreateAdapterUnknownProvider(t *testing.T) {
	f := NewStandardFactory()

	_, err := f.CreateAdapter(providers.ClientConfig{Provider: "skynet"})
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrUnknownProvider)
	assert.Contains(t, err.Error(), "skynet")
}

func TestCreateAdapterEmptyProviderUsesDefault(t *testing.T) {
	f := NewStandardFactory()

	adapter, err := f.CreateAdapter(providers.ClientConfig{})
	require.NoError(t, err)
	assert.NotNil(t, adapter)
}
