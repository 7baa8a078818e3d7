package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertGlobalEntry inserts or updates a catalog entry, idempotent by
// natural key.
func (s *Store) UpsertGlobalEntry(ctx context.Context, e CatalogEntry) error {
	if e.NaturalKey == "" {
		return errors.New("natural key required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Unix()
	e.UpdatedAt = now
	if e.CreatedAt == 0 {
		e.CreatedAt = now
	}

	_, err := s.db.NewInsert().
		Model(&e).
		On("CONFLICT (natural_key) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("category = EXCLUDED.category").
		Set("unit_price = EXCLUDED.unit_price").
		Set("vat_rate = EXCLUDED.vat_rate").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert catalog entry: %w", err)
	}
	return nil
}

// GetGlobalEntry returns the catalog entry for the natural key, or
// (nil, nil) when none exists.
func (s *Store) GetGlobalEntry(ctx context.Context, naturalKey string) (*CatalogEntry, error) {
	e := new(CatalogEntry)
	err := s.db.NewSelect().Model(e).Where("natural_key = ?", naturalKey).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get catalog entry: %w", err)
	}
	return e, nil
}

// UpsertLocalOverride inserts or updates a business-scoped override,
// idempotent by (business, natural key).
func (s *Store) UpsertLocalOverride(ctx context.Context, o LocalOverride) error {
	if o.BusinessID == "" || o.NaturalKey == "" {
		return errors.New("business id and natural key required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o.UpdatedAt = s.now().Unix()

	_, err := s.db.NewInsert().
		Model(&o).
		On("CONFLICT (business_id, natural_key) DO UPDATE").
		Set("branch_id = EXCLUDED.branch_id").
		Set("price = EXCLUDED.price").
		Set("cost = EXCLUDED.cost").
		Set("stock = EXCLUDED.stock").
		Set("min_stock = EXCLUDED.min_stock").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert override: %w", err)
	}
	return nil
}

// GetOverride returns the business's override for the natural key, or
// (nil, nil) when none exists. Absence is a normal outcome, not an error.
func (s *Store) GetOverride(ctx context.Context, businessID, naturalKey string) (*LocalOverride, error) {
	o := new(LocalOverride)
	err := s.db.NewSelect().
		Model(o).
		Where("business_id = ? AND natural_key = ?", businessID, naturalKey).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get override: %w", err)
	}
	return o, nil
}

// RecordScan registers one barcode scan. An unknown natural key gets a
// placeholder override (price 0, stock 1) and, when needed, a placeholder
// catalog entry, so scanning never blocks on missing catalog data. A
// known key increments stock by exactly one; the increment runs as a
// single UPDATE under the writer lock, so rapid repeated scans cannot
// lose updates.
//
// The returned flag reports whether a placeholder was created.
func (s *Store) RecordScan(ctx context.Context, businessID, naturalKey string) (*LocalOverride, bool, error) {
	if businessID == "" || naturalKey == "" {
		return nil, false, errors.New("business id and natural key required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Unix()

	res, err := s.db.NewUpdate().
		Model((*LocalOverride)(nil)).
		Set("stock = stock + 1").
		Set("updated_at = ?", now).
		Where("business_id = ? AND natural_key = ?", businessID, naturalKey).
		Exec(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("record scan: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return s.overrideLocked(ctx, businessID, naturalKey)
	}

	entry := CatalogEntry{
		NaturalKey: naturalKey,
		Name:       "Product " + naturalKey,
		Category:   DefaultCategory,
		VATRate:    DefaultVATRate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.db.NewInsert().
		Model(&entry).
		On("CONFLICT (natural_key) DO NOTHING").
		Exec(ctx); err != nil {
		return nil, false, fmt.Errorf("record scan: %w", err)
	}

	placeholder := LocalOverride{
		BusinessID: businessID,
		NaturalKey: naturalKey,
		Price:      0,
		Stock:      1,
		MinStock:   DefaultMinStock,
		UpdatedAt:  now,
	}
	if _, err := s.db.NewInsert().
		Model(&placeholder).
		On("CONFLICT (business_id, natural_key) DO UPDATE").
		Set("stock = stock + 1").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return nil, false, fmt.Errorf("record scan: %w", err)
	}

	o, _, err := s.overrideLocked(ctx, businessID, naturalKey)
	return o, true, err
}

func (s *Store) overrideLocked(ctx context.Context, businessID, naturalKey string) (*LocalOverride, bool, error) {
	o := new(LocalOverride)
	err := s.db.NewSelect().
		Model(o).
		Where("business_id = ? AND natural_key = ?", businessID, naturalKey).
		Scan(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("record scan: %w", err)
	}
	return o, false, nil
}

// LowStock lists the business's overrides whose stock is at or below
// their minimum.
func (s *Store) LowStock(ctx context.Context, businessID string) ([]LocalOverride, error) {
	var out []LocalOverride
	err := s.db.NewSelect().
		Model(&out).
		Where("business_id = ? AND stock <= min_stock", businessID).
		Order("natural_key ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}
	return out, nil
}
