package services

import (
	"context"
	"fmt"

	"translate-bridge/internal/cache"
	"translate-bridge/internal/cachestore"
	"translate-bridge/internal/ratelimit"
	"translate-bridge/internal/text_translator"
	"translate-bridge/internal/translator_provider"
	"translate-bridge/pkg/database"
	"translate-bridge/pkg/types"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Services holds all application services
type Services struct {
	Config                *types.Config
	TextTranslatorService *text_translator.TextTranslatorService
	Cache                 *cache.ResponseCache
	Limiters              *ratelimit.Set

	logger  *zap.Logger
	db      *database.DB
	janitor *cron.Cron
}

// NewServices wires the translation pipeline from cfg.
// Cache persistence is enabled when a database driver is configured.
func NewServices(ctx context.Context, cfg *types.Config, logger *zap.Logger) (*Services, error) {
	s := &Services{
		Config:   cfg,
		Limiters: ratelimit.NewSetFromConfig(cfg),
		logger:   logger,
	}

	providers, err := translator_provider.NewFactory(logger, nil).CreateAll()
	if err != nil {
		return nil, err
	}

	cacheOpts := []cache.Option{cache.WithLogger(logger.Named("cache"))}
	if cfg.Database.Driver != "" {
		db, err := database.NewDB(database.Config{
			Driver:   cfg.Database.Driver,
			Path:     cfg.Database.Path,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db

		store := cachestore.New(db)
		if err := store.Init(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		cacheOpts = append(cacheOpts, cache.WithStore(store))
	}
	s.Cache = cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL, cacheOpts...)

	if s.db != nil && cfg.Cache.Enabled {
		n, err := s.Cache.Warm(ctx)
		if err != nil {
			logger.Warn("failed to warm cache from store", zap.Error(err))
		} else {
			logger.Info("cache warmed from store", zap.Int("entries", n))
		}
	}

	if cfg.Cache.Enabled && cfg.Cache.CleanupSchedule != "" {
		s.janitor, err = cache.StartJanitor(s.Cache, cfg.Cache.CleanupSchedule, logger.Named("cache"))
		if err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	s.TextTranslatorService = text_translator.NewTextTranslatorService(
		logger.Named("translator"),
		providers,
		s.Limiters,
		s.Cache,
		text_translator.WithCacheTTL(cfg.Cache.TTL),
		text_translator.WithTestTimeout(cfg.Translation.TestTimeout),
	)

	return s, nil
}

// Settings returns the settings snapshot for a new request
func (s *Services) Settings() types.Settings {
	return s.Config.Settings()
}

// Close stops background jobs and releases the database
func (s *Services) Close() error {
	if s.janitor != nil {
		<-s.janitor.Stop().Done()
		s.janitor = nil
	}
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}
