package types

// TranslateRequest is the JSON body accepted by the HTTP API
type TranslateRequest struct {
	Text           string     `json:"text" binding:"required"`
	TargetLanguage string     `json:"target_language"`
	Provider       ProviderID `json:"provider"`
	RequestID      string     `json:"request_id"`
}

// TestProviderRequest is the JSON body of a provider connectivity check
type TestProviderRequest struct {
	Provider ProviderID `json:"provider" binding:"required"`
	APIKey   string     `json:"api_key"`
	BaseURL  string     `json:"base_url"`
	Model    string     `json:"model"`
}

// TranslationRequest is a single unit of work for the pipeline
type TranslationRequest struct {
	Text           string
	TargetLanguage string
	RequestID      string
}

// AttemptRole tells whether a result came from the primary or the fallback provider
type AttemptRole string

const (
	RolePrimary  AttemptRole = "primary"
	RoleFallback AttemptRole = "fallback"
)

// TranslationResult is produced only when a translation succeeds
type TranslationResult struct {
	OriginalText   string      `json:"original_text"`
	TranslatedText string      `json:"translated_text"`
	TargetLanguage string      `json:"target_language"`
	Provider       ProviderID  `json:"provider"`
	ProviderUsed   AttemptRole `json:"provider_used"`
	FromCache      bool        `json:"from_cache"`
}

// ProbeResult reports the outcome of a provider connectivity check
type ProbeResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}
