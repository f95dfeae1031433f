package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider("")
	require.NoError(t, err)
	assert.Equal(t, ProviderStatic, p)

	p, err = ParseProvider(" Gemini ")
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, p)

	_, err = ParseProvider("ollama")
	assert.Error(t, err)
}

func TestNewEmbedder(t *testing.T) {
	// Static needs no remote client.
	e, err := NewEmbedder(ProviderStatic, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "static", e.ModelName())

	// Gemini without a client is an error, not a fallback.
	_, err = NewEmbedder(ProviderGemini, nil, 0)
	assert.Error(t, err)

	// Gemini with a client is cached.
	e, err = NewEmbedder(ProviderGemini, newMockEmbedder(4), 5)
	require.NoError(t, err)
	_, ok := e.(*CachedEmbedder)
	assert.True(t, ok)
}
