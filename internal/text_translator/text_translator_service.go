package text_translator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"translate-bridge/internal/cache"
	"translate-bridge/internal/prompt"
	"translate-bridge/internal/ratelimit"
	"translate-bridge/internal/translator_provider"
	"translate-bridge/pkg/types"

	"go.uber.org/zap"
)

const defaultTestTimeout = 20 * time.Second

// TextTranslatorService drives one translation through the cache, the
// primary provider and the fallback provider
type TextTranslatorService struct {
	logger      *zap.Logger
	providers   map[types.ProviderID]translator_provider.TranslatorProvider
	limiters    *ratelimit.Set
	cache       *cache.ResponseCache
	cacheTTL    time.Duration
	testTimeout time.Duration
}

// Option configures a TextTranslatorService
type Option func(*TextTranslatorService)

// WithCacheTTL sets the TTL of entries written after a successful translation
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *TextTranslatorService) {
		s.cacheTTL = ttl
	}
}

// WithTestTimeout bounds provider connectivity checks
func WithTestTimeout(timeout time.Duration) Option {
	return func(s *TextTranslatorService) {
		s.testTimeout = timeout
	}
}

// NewTextTranslatorService creates a new instance of TextTranslatorService.
// A nil cache disables caching regardless of settings.
func NewTextTranslatorService(
	logger *zap.Logger,
	providers []translator_provider.TranslatorProvider,
	limiters *ratelimit.Set,
	responseCache *cache.ResponseCache,
	opts ...Option,
) *TextTranslatorService {
	s := &TextTranslatorService{
		logger:      logger,
		providers:   make(map[types.ProviderID]translator_provider.TranslatorProvider, len(providers)),
		limiters:    limiters,
		cache:       responseCache,
		testTimeout: defaultTestTimeout,
	}
	for _, p := range providers {
		s.providers[p.ID()] = p
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Translate runs req against the configured providers.
// onProgress receives (accumulated, false) for every delta and exactly one
// (full, true) on success. It is never called when Translate fails.
func (s *TextTranslatorService) Translate(ctx context.Context, req types.TranslationRequest, settings types.Settings, onProgress types.ProgressFunc) (*types.TranslationResult, error) {
	if onProgress == nil {
		onProgress = func(string, bool) {}
	}

	if strings.TrimSpace(req.Text) == "" {
		return nil, types.ErrEmptyText
	}
	lang, err := prompt.CanonicalLanguage(req.TargetLanguage)
	if err != nil {
		return nil, err
	}
	req.TargetLanguage = lang

	primary := settings.PrimaryProvider
	if !primary.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownProvider, primary)
	}
	if settings.Provider(primary).Credential == "" {
		return nil, fmt.Errorf("%s: %w", primary, types.ErrMissingCredential)
	}

	log := s.logger.With(zap.String("request_id", req.RequestID))
	transition := func(st State, provider types.ProviderID) {
		log.Debug("translation state", zap.Stringer("state", st), zap.String("provider", string(provider)))
	}
	transition(StateIdle, "")

	useCache := settings.CacheEnabled && s.cache != nil
	key := cache.Key(lang, req.Text)
	if useCache {
		transition(StateCacheLookup, "")
		if hit, ok := s.cache.Get(key); ok {
			hit.FromCache = true
			onProgress(hit.TranslatedText, true)
			transition(StateDone, hit.Provider)
			return &hit, nil
		}
	}

	transition(StateRateCheckPrimary, primary)
	text, primaryErr := s.attempt(ctx, primary, req, settings, onProgress, func() {
		transition(StateStreamingPrimary, primary)
	})
	if primaryErr == nil {
		return s.complete(ctx, log, req, key, useCache, primary, types.RolePrimary, text, onProgress), nil
	}
	log.Warn("primary provider failed, trying fallback",
		zap.String("provider", string(primary)),
		zap.Error(primaryErr),
	)

	fallback := settings.FallbackProvider()
	transition(StateRateCheckFallback, fallback)
	text, fallbackErr := s.attempt(ctx, fallback, req, settings, onProgress, func() {
		transition(StateStreamingFallback, fallback)
	})
	if fallbackErr == nil {
		return s.complete(ctx, log, req, key, useCache, fallback, types.RoleFallback, text, onProgress), nil
	}

	transition(StateFailed, fallback)
	failed := &types.AllProvidersFailedError{
		Primary:  types.AttemptFailure{Provider: primary, Role: types.RolePrimary, Err: primaryErr},
		Fallback: types.AttemptFailure{Provider: fallback, Role: types.RoleFallback, Err: fallbackErr},
	}
	log.Error("translation failed", zap.Error(failed))
	return nil, failed
}

// attempt runs one provider with its own accumulator.
// streaming is called once the provider has been admitted by its limiter.
func (s *TextTranslatorService) attempt(ctx context.Context, id types.ProviderID, req types.TranslationRequest, settings types.Settings, onProgress types.ProgressFunc, streaming func()) (string, error) {
	p, ok := s.providers[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", types.ErrUnknownProvider, id)
	}
	if settings.Provider(id).Credential == "" {
		return "", fmt.Errorf("%s: %w", id, types.ErrMissingCredential)
	}
	if s.limiters != nil && !s.limiters.TryAcquire(id) {
		return "", &types.RateLimitError{Provider: id}
	}
	streaming()

	var acc strings.Builder
	text, err := p.StreamTranslation(ctx, req, settings, func(ev types.StreamEvent) error {
		acc.WriteString(ev.Text)
		onProgress(acc.String(), false)
		return nil
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &types.ProviderError{Provider: id, Err: errors.New("empty translation")}
	}
	return text, nil
}

func (s *TextTranslatorService) complete(ctx context.Context, log *zap.Logger, req types.TranslationRequest, key string, useCache bool, id types.ProviderID, role types.AttemptRole, text string, onProgress types.ProgressFunc) *types.TranslationResult {
	result := types.TranslationResult{
		OriginalText:   req.Text,
		TranslatedText: text,
		TargetLanguage: req.TargetLanguage,
		Provider:       id,
		ProviderUsed:   role,
	}
	if useCache {
		s.cache.Put(ctx, key, result, s.cacheTTL)
	}
	onProgress(text, true)

	log.Debug("translation state", zap.Stringer("state", StateDone), zap.String("provider", string(id)))
	log.Info("translation completed",
		zap.String("provider", string(id)),
		zap.String("provider_used", string(role)),
		zap.Int("text_length", len(text)),
	)
	return &result
}

// TestProvider performs a single non-streaming round trip against id.
// It bypasses the cache and the rate limiters.
func (s *TextTranslatorService) TestProvider(ctx context.Context, id types.ProviderID, credential, endpointOverride, modelOverride string) types.ProbeResult {
	p, ok := s.providers[id]
	if !ok {
		return types.ProbeResult{
			Success: false,
			Message: "Unknown provider",
			Error:   fmt.Sprintf("%v: %q", types.ErrUnknownProvider, id),
		}
	}
	if strings.TrimSpace(credential) == "" {
		return types.ProbeResult{
			Success: false,
			Message: "API key is required",
			Error:   types.ErrMissingCredential.Error(),
		}
	}

	s.logger.Info("testing provider connection", zap.String("provider", string(id)))
	out, err := p.Probe(ctx, types.ProviderSettings{
		Credential: credential,
		Endpoint:   endpointOverride,
		Model:      modelOverride,
	}, s.testTimeout)
	if err != nil {
		s.logger.Warn("provider test failed", zap.String("provider", string(id)), zap.Error(err))
		return types.ProbeResult{
			Success: false,
			Message: FriendlyMessage(err),
			Error:   err.Error(),
		}
	}
	return types.ProbeResult{
		Success: true,
		Message: "Connection successful",
		Result:  out,
	}
}

// FriendlyMessage turns a provider failure into text suitable for end users
func FriendlyMessage(err error) string {
	if errors.Is(err, types.ErrTimeout) {
		return "Request timed out, check your network connection"
	}
	if errors.Is(err, types.ErrRateLimited) {
		return "Rate limit reached, try again later"
	}
	if errors.Is(err, types.ErrMissingCredential) {
		return "API key is required"
	}
	var pe *types.ProviderError
	if !errors.As(err, &pe) {
		return "Connection test failed"
	}
	switch {
	case pe.StatusCode == http.StatusUnauthorized:
		return "Invalid API key"
	case pe.StatusCode == http.StatusForbidden:
		return "Access denied, check the API key permissions"
	case pe.StatusCode == http.StatusTooManyRequests:
		return "Too many requests, try again later"
	case pe.StatusCode >= http.StatusInternalServerError:
		return "Provider service is temporarily unavailable"
	case pe.StatusCode != 0:
		return fmt.Sprintf("Request failed with status %d", pe.StatusCode)
	case pe.Err != nil:
		return "Network error, check the endpoint and your connection"
	default:
		return "Connection test failed"
	}
}
