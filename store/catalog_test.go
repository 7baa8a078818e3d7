package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBusiness = "biz-1"

func TestRecordScanUnknownBarcodeCreatesPlaceholder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	override, created, err := s.RecordScan(ctx, testBusiness, "123456789012")
	require.NoError(t, err)

	assert.True(t, created)
	assert.Zero(t, override.Price)
	assert.Equal(t, int64(1), override.Stock)
	assert.Equal(t, int64(DefaultMinStock), override.MinStock)

	entry, err := s.GetGlobalEntry(ctx, "123456789012")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "Product 123456789012", entry.Name)
	assert.Equal(t, DefaultCategory, entry.Category)
	assert.Equal(t, DefaultVATRate, entry.VATRate)
}

func TestRecordScanTwiceIncrementsStockOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, created, err := s.RecordScan(ctx, testBusiness, "123456789012")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), first.Stock)

	second, created, err := s.RecordScan(ctx, testBusiness, "123456789012")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(2), second.Stock)

	// Still exactly one global entry and one override for the barcode.
	var entries int
	entries, err = s.db.NewSelect().Model((*CatalogEntry)(nil)).
		Where("natural_key = ?", "123456789012").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, entries)

	var overrides int
	overrides, err = s.db.NewSelect().Model((*LocalOverride)(nil)).
		Where("business_id = ? AND natural_key = ?", testBusiness, "123456789012").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, overrides)
}

func TestRecordScanConcurrentNoLostUpdates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const scans = 50
	done := make(chan error, scans)
	for i := 0; i < scans; i++ {
		go func() {
			_, _, err := s.RecordScan(ctx, testBusiness, "sku-hot")
			done <- err
		}()
	}
	for i := 0; i < scans; i++ {
		require.NoError(t, <-done)
	}

	override, err := s.GetOverride(ctx, testBusiness, "sku-hot")
	require.NoError(t, err)
	require.NotNil(t, override)
	assert.Equal(t, int64(scans), override.Stock)
}

func TestRecordScanScopedPerBusiness(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _, err := s.RecordScan(ctx, "biz-a", "sku-1")
	require.NoError(t, err)
	_, _, err = s.RecordScan(ctx, "biz-b", "sku-1")
	require.NoError(t, err)

	a, err := s.GetOverride(ctx, "biz-a", "sku-1")
	require.NoError(t, err)
	b, err := s.GetOverride(ctx, "biz-b", "sku-1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.Stock)
	assert.Equal(t, int64(1), b.Stock)
}

func TestUpsertGlobalEntryIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertGlobalEntry(ctx, CatalogEntry{
		NaturalKey: "sku-1", Name: "Widget", Category: "Tools", UnitPrice: 9.99, VATRate: 0.15,
	}))
	require.NoError(t, s.UpsertGlobalEntry(ctx, CatalogEntry{
		NaturalKey: "sku-1", Name: "Widget v2", Category: "Tools", UnitPrice: 10.99, VATRate: 0.15,
	}))

	entry, err := s.GetGlobalEntry(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, "Widget v2", entry.Name)
	assert.Equal(t, 10.99, entry.UnitPrice)
}

func TestGetOverrideAbsentIsNotAnError(t *testing.T) {
	s := openTestStore(t)

	override, err := s.GetOverride(context.Background(), testBusiness, "ghost")
	require.NoError(t, err)
	assert.Nil(t, override)
}

func TestLowStock(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertLocalOverride(ctx, LocalOverride{
		BusinessID: testBusiness, NaturalKey: "sku-low", Price: 5, Stock: 2, MinStock: 10,
	}))
	require.NoError(t, s.UpsertLocalOverride(ctx, LocalOverride{
		BusinessID: testBusiness, NaturalKey: "sku-ok", Price: 5, Stock: 50, MinStock: 10,
	}))

	low, err := s.LowStock(ctx, testBusiness)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "sku-low", low[0].NaturalKey)
}
