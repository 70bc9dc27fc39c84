// Package cachestore persists response cache entries with bun so a restarted
// server can warm its cache.
package cachestore

import (
	"context"
	"fmt"
	"time"

	"translate-bridge/internal/cache"
	"translate-bridge/pkg/types"

	"github.com/uptrace/bun"
)

type cacheRow struct {
	bun.BaseModel `bun:"table:translation_cache,alias:tc"`

	CacheKey       string `bun:"cache_key,pk"`
	OriginalText   string `bun:"original_text,notnull"`
	TranslatedText string `bun:"translated_text,notnull"`
	TargetLanguage string `bun:"target_language,notnull"`
	Provider       string `bun:"provider,notnull"`
	ProviderUsed   string `bun:"provider_used,notnull"`
	CreatedAtMs    int64  `bun:"created_at_ms,notnull"`
	ExpiresAtMs    int64  `bun:"expires_at_ms,notnull"`
}

func toRow(e cache.Entry) *cacheRow {
	return &cacheRow{
		CacheKey:       e.Key,
		OriginalText:   e.Data.OriginalText,
		TranslatedText: e.Data.TranslatedText,
		TargetLanguage: e.Data.TargetLanguage,
		Provider:       string(e.Data.Provider),
		ProviderUsed:   string(e.Data.ProviderUsed),
		CreatedAtMs:    e.CreatedAt.UnixMilli(),
		ExpiresAtMs:    e.CreatedAt.Add(e.TTL).UnixMilli(),
	}
}

func (r *cacheRow) entry() cache.Entry {
	created := time.UnixMilli(r.CreatedAtMs)
	return cache.Entry{
		Key: r.CacheKey,
		Data: types.TranslationResult{
			OriginalText:   r.OriginalText,
			TranslatedText: r.TranslatedText,
			TargetLanguage: r.TargetLanguage,
			Provider:       types.ProviderID(r.Provider),
			ProviderUsed:   types.AttemptRole(r.ProviderUsed),
		},
		CreatedAt: created,
		TTL:       time.Duration(r.ExpiresAtMs-r.CreatedAtMs) * time.Millisecond,
	}
}

// Store implements cache.Store on any bun database
type Store struct {
	db bun.IDB
}

func New(db bun.IDB) *Store {
	return &Store{db: db}
}

// Init creates the cache table when missing
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*cacheRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create cache table: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, e cache.Entry) error {
	_, err := s.db.NewInsert().
		Model(toRow(e)).
		On("CONFLICT (cache_key) DO UPDATE").
		Set("original_text = EXCLUDED.original_text").
		Set("translated_text = EXCLUDED.translated_text").
		Set("target_language = EXCLUDED.target_language").
		Set("provider = EXCLUDED.provider").
		Set("provider_used = EXCLUDED.provider_used").
		Set("created_at_ms = EXCLUDED.created_at_ms").
		Set("expires_at_ms = EXCLUDED.expires_at_ms").
		Exec(ctx)
	return err
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.db.NewDelete().
		Model((*cacheRow)(nil)).
		Where("cache_key IN (?)", bun.In(keys)).
		Exec(ctx)
	return err
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.NewDelete().
		Model((*cacheRow)(nil)).
		Where("expires_at_ms <= ?", now.UnixMilli()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*cacheRow)(nil)).
		Where("1 = 1").
		Exec(ctx)
	return err
}

func (s *Store) LoadValid(ctx context.Context, now time.Time) ([]cache.Entry, error) {
	var rows []cacheRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("expires_at_ms > ?", now.UnixMilli()).
		Order("created_at_ms ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]cache.Entry, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].entry())
	}
	return out, nil
}

var _ cache.Store = (*Store)(nil)
