package embed

import (
	"fmt"
	"strings"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderGemini uses the Gemini embedding model through the shared client.
	ProviderGemini ProviderType = "gemini"

	// ProviderStatic uses hash-based embeddings. Offline, deterministic.
	ProviderStatic ProviderType = "static"
)

// ParseProvider validates a provider name. Empty selects ProviderStatic.
func ParseProvider(s string) (ProviderType, error) {
	switch ProviderType(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderStatic, "":
		return ProviderStatic, nil
	case ProviderGemini:
		return ProviderGemini, nil
	default:
		return "", fmt.Errorf("unknown embedding provider: %s (valid options: gemini, static)", s)
	}
}

// NewEmbedder builds the embedder for provider. The gemini provider needs
// remote, the embedder side of the injected Gemini client; its results
// are cached. There is no silent fallback between providers, since mixing
// them in one vector index would corrupt it.
func NewEmbedder(provider ProviderType, remote Embedder, cacheSize int) (Embedder, error) {
	switch provider {
	case ProviderStatic, "":
		return NewStaticEmbedder(), nil
	case ProviderGemini:
		if remote == nil {
			return nil, fmt.Errorf("gemini embeddings require a configured Gemini client (set GEMINI_API_KEY or use embeddings.provider: static)")
		}
		return NewCachedEmbedder(remote, cacheSize), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", provider)
	}
}
