package edgetill

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/edgetill/edgetill/store"
)

const settingCommissionRate = "commission_rate"

// mapStoreErr lifts store sentinel errors into the engine's vocabulary.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrItemNotFound):
		return ErrQueueItemNotFound
	case errors.Is(err, store.ErrItemTerminal):
		return ErrQueueItemTerminal
	case errors.Is(err, store.ErrItemSyncing):
		return ErrQueueItemSyncing
	default:
		return err
	}
}

/*
====================================
SYNC QUEUE
====================================
*/

// Enqueue appends a mutation to the durable sync queue. When MaxRetries
// is zero the configured default applies. The reconciler is nudged so an
// online device publishes promptly instead of waiting for the next tick.
func (e *Engine) Enqueue(ctx context.Context, m Mutation) (*QueueItem, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	if m.MaxRetries == 0 {
		m.MaxRetries = e.config.Sync.MaxRetries
	}

	item, err := e.store.Enqueue(ctx, m)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricQueueEnqueued)
	e.emitAudit(ctx, auditEventQueueEnqueued, true, "", m.EntityType+"/"+m.NaturalKey, nil, func() map[string]string {
		return map[string]string{"operation": m.Operation, "item_id": item.ID}
	})

	e.recon.kick()

	return item, nil
}

// QueueItemByID returns one queue item.
func (e *Engine) QueueItemByID(ctx context.Context, id string) (*QueueItem, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	item, err := e.store.GetItem(ctx, id)
	return item, mapStoreErr(err)
}

// ListByStatus returns all queue items in the given status, oldest first.
func (e *Engine) ListByStatus(ctx context.Context, status QueueStatus) ([]QueueItem, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	return e.store.ListByStatus(ctx, status)
}

// Retry moves a failed item back to pending for another publish attempt.
// The retry counter is not reset; operator retries do not launder an
// item's failure history.
func (e *Engine) Retry(ctx context.Context, id string) (*QueueItem, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	item, err := e.store.Requeue(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	e.emitAudit(ctx, auditEventQueueRetried, true, "", item.EntityKey(), nil, func() map[string]string {
		return map[string]string{"item_id": item.ID, "retry_count": strconv.Itoa(item.RetryCount)}
	})
	e.recon.kick()

	return item, nil
}

// RetryAll moves every failed item back to pending and reports how many
// moved. Retry counters are preserved.
func (e *Engine) RetryAll(ctx context.Context) (int64, error) {
	if e.closed.Load() {
		return 0, ErrEngineClosed
	}

	n, err := e.store.RetryAll(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.emitAudit(ctx, auditEventQueueRetried, true, "", "", nil, func() map[string]string {
			return map[string]string{"items": strconv.FormatInt(n, 10)}
		})
		e.recon.kick()
	}
	return n, nil
}

// ClearCompleted purges completed items. Idempotent.
func (e *Engine) ClearCompleted(ctx context.Context) (int64, error) {
	if e.closed.Load() {
		return 0, ErrEngineClosed
	}

	n, err := e.store.ClearCompleted(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.emitAudit(ctx, auditEventQueueCleared, true, "", "", nil, func() map[string]string {
			return map[string]string{"items": strconv.FormatInt(n, 10)}
		})
	}
	return n, nil
}

// Remove deletes a single pending or failed item. Completed items are
// immutable history ([ErrQueueItemTerminal]); items mid-publish cannot be
// pulled out from under the reconciler ([ErrQueueItemSyncing]).
func (e *Engine) Remove(ctx context.Context, id string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	if err := e.store.Remove(ctx, id); err != nil {
		return mapStoreErr(err)
	}

	e.emitAudit(ctx, auditEventQueueRemoved, true, "", "", nil, func() map[string]string {
		return map[string]string{"item_id": id}
	})
	return nil
}

// QueueDepths is a point-in-time tally of queue items per sync state.
type QueueDepths struct {
	Pending   uint64
	Syncing   uint64
	Failed    uint64
	Completed uint64
}

// QueueDepths reports how many items currently sit in each queue state.
func (e *Engine) QueueDepths(ctx context.Context) (QueueDepths, error) {
	if e.closed.Load() {
		return QueueDepths{}, ErrEngineClosed
	}

	counts, err := e.store.CountByStatus(ctx)
	if err != nil {
		return QueueDepths{}, err
	}
	return QueueDepths{
		Pending:   uint64(counts[StatusPending]),
		Syncing:   uint64(counts[StatusSyncing]),
		Failed:    uint64(counts[StatusFailed]),
		Completed: uint64(counts[StatusCompleted]),
	}, nil
}

// SyncNow runs one reconciliation pass immediately, bypassing the timer.
// Offline it returns [ErrNetworkUnavailable] without touching the queue.
func (e *Engine) SyncNow(ctx context.Context) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if !e.Online() {
		return fmt.Errorf("%w: sync requires connectivity", ErrNetworkUnavailable)
	}
	return e.recon.drainOnce(ctx)
}

/*
====================================
CATALOG / INVENTORY
====================================
*/

// RecordScan registers one barcode scan against the configured business.
// Unknown barcodes get a zero-price placeholder with stock 1; known ones
// gain exactly one unit of stock. Scanning works identically offline.
func (e *Engine) RecordScan(ctx context.Context, naturalKey string) (*store.LocalOverride, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	override, created, err := e.store.RecordScan(ctx, e.config.Business.BusinessID, naturalKey)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricScanRecorded)
	if created {
		e.metricInc(MetricScanPlaceholder)
	}
	e.emitAudit(ctx, auditEventScanRecorded, true, "", naturalKey, nil, func() map[string]string {
		return map[string]string{
			"stock":       strconv.FormatInt(override.Stock, 10),
			"placeholder": strconv.FormatBool(created),
		}
	})

	return override, nil
}

// UpsertGlobalEntry inserts or updates a shared catalog entry.
func (e *Engine) UpsertGlobalEntry(ctx context.Context, entry store.CatalogEntry) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	return e.store.UpsertGlobalEntry(ctx, entry)
}

// GlobalEntry returns the shared catalog entry for the natural key, or
// (nil, nil) when none exists.
func (e *Engine) GlobalEntry(ctx context.Context, naturalKey string) (*store.CatalogEntry, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	return e.store.GetGlobalEntry(ctx, naturalKey)
}

// UpsertLocalOverride inserts or updates this business's override for a
// catalog entry. The business scope comes from configuration; callers
// cannot write into another business's overrides.
func (e *Engine) UpsertLocalOverride(ctx context.Context, o store.LocalOverride) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	o.BusinessID = e.config.Business.BusinessID
	if o.BranchID == "" {
		o.BranchID = e.config.Business.BranchID
	}
	return e.store.UpsertLocalOverride(ctx, o)
}

// Override returns this business's override for the natural key, or
// (nil, nil) when none exists.
func (e *Engine) Override(ctx context.Context, naturalKey string) (*store.LocalOverride, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	return e.store.GetOverride(ctx, e.config.Business.BusinessID, naturalKey)
}

// LowStock lists this business's overrides at or below their minimum
// stock level.
func (e *Engine) LowStock(ctx context.Context) ([]store.LocalOverride, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	return e.store.LowStock(ctx, e.config.Business.BusinessID)
}

/*
====================================
SETTINGS CACHE
====================================
*/

// StoreCommission caches the remotely-sourced commission rate for
// offline fallback.
func (e *Engine) StoreCommission(ctx context.Context, rate float64) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	err := e.store.PutSetting(ctx, settingCommissionRate, strconv.FormatFloat(rate, 'f', -1, 64))
	if err != nil {
		return err
	}
	e.emitAudit(ctx, auditEventSettingCacheUpdate, true, "", settingCommissionRate, nil, nil)
	return nil
}

// CachedCommission returns the last cached commission rate and when it
// was cached. ok is false when no rate has ever been cached; staleness
// judgement is left to the caller.
func (e *Engine) CachedCommission(ctx context.Context) (rate float64, cachedAt time.Time, ok bool, err error) {
	if e.closed.Load() {
		return 0, time.Time{}, false, ErrEngineClosed
	}

	value, at, found, err := e.store.GetSetting(ctx, settingCommissionRate)
	if err != nil || !found {
		return 0, time.Time{}, false, err
	}
	rate, parseErr := strconv.ParseFloat(value, 64)
	if parseErr != nil {
		return 0, time.Time{}, false, fmt.Errorf("%w: cached commission %q", ErrStorageCorrupt, value)
	}
	return rate, time.Unix(at, 0), true, nil
}
