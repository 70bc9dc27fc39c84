package translator_provider

import (
	"context"
	"time"

	"translate-bridge/pkg/types"
)

// TranslatorProvider defines the interface that all translation providers must implement
type TranslatorProvider interface {
	// ID names the provider for limiter, settings and result bookkeeping
	ID() types.ProviderID

	// StreamTranslation sends req using the provider's entry in settings and
	// calls onEvent for every delta in arrival order. It returns the full text
	// on normal completion. Failures are TimeoutError or ProviderError values.
	StreamTranslation(ctx context.Context, req types.TranslationRequest, settings types.Settings, onEvent func(types.StreamEvent) error) (string, error)

	// Probe performs one short non-streaming round trip to validate credentials
	Probe(ctx context.Context, ps types.ProviderSettings, timeout time.Duration) (string, error)
}
