package types

import "time"

// ProviderID identifies one of the remote translation backends
type ProviderID string

const (
	ProviderSiliconFlow ProviderID = "siliconflow"
	ProviderDify        ProviderID = "dify"
)

// KnownProviders lists every provider the pipeline can talk to, in preference order
var KnownProviders = []ProviderID{ProviderSiliconFlow, ProviderDify}

// Valid reports whether id names a known provider
func (id ProviderID) Valid() bool {
	for _, p := range KnownProviders {
		if p == id {
			return true
		}
	}
	return false
}

// Other returns the provider used as fallback for id
func (id ProviderID) Other() ProviderID {
	if id == ProviderDify {
		return ProviderSiliconFlow
	}
	return ProviderDify
}

// ProviderSettings holds the credential and endpoint of a single provider
type ProviderSettings struct {
	Credential string `json:"-"`
	Endpoint   string `json:"endpoint"`
	Model      string `json:"model,omitempty"`
}

// Settings is the immutable snapshot a translation runs with.
// It is passed by value and never modified by the pipeline.
type Settings struct {
	PrimaryProvider ProviderID                      `json:"primary_provider"`
	Providers       map[ProviderID]ProviderSettings `json:"providers"`
	RequestTimeout  time.Duration                   `json:"request_timeout"`
	CacheEnabled    bool                            `json:"cache_enabled"`
}

// Provider returns the settings for id, or the zero value if none are configured
func (s Settings) Provider(id ProviderID) ProviderSettings {
	if s.Providers == nil {
		return ProviderSettings{}
	}
	return s.Providers[id]
}

// FallbackProvider returns the provider tried after the primary one fails
func (s Settings) FallbackProvider() ProviderID {
	return s.PrimaryProvider.Other()
}

// WithPrimary returns a copy of s using id as primary provider
func (s Settings) WithPrimary(id ProviderID) Settings {
	s.PrimaryProvider = id
	return s
}
