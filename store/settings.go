package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PutSetting caches a remotely-sourced fact for offline fallback,
// stamping it with the current time.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("setting key required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	setting := &Setting{
		Key:      key,
		Value:    value,
		CachedAt: s.now().Unix(),
	}
	_, err := s.db.NewInsert().
		Model(setting).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("cached_at = EXCLUDED.cached_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	return nil
}

// GetSetting returns the cached value and the unix time it was cached,
// or ok=false when the key has never been cached. Staleness judgement is
// left to the caller; an offline device prefers a stale value over none.
func (s *Store) GetSetting(ctx context.Context, key string) (value string, cachedAt int64, ok bool, err error) {
	setting := new(Setting)
	scanErr := s.db.NewSelect().Model(setting).Where("key = ?", key).Scan(ctx)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return "", 0, false, nil
		}
		return "", 0, false, fmt.Errorf("get setting: %w", scanErr)
	}
	return setting.Value, setting.CachedAt, true, nil
}
