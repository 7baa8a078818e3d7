package edgetill

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"strconv"
	"sync"
	"time"

	"github.com/edgetill/edgetill/store"
)

// reconciler drains the sync queue whenever the device is online. It
// wakes on a timer, on connectivity changes, and whenever new work is
// enqueued.
type reconciler struct {
	engine *Engine
	notify chan struct{}

	// mu serializes drain passes; a SyncNow call and the background
	// loop never interleave publishes.
	mu sync.Mutex
}

func newReconciler(e *Engine) *reconciler {
	return &reconciler{
		engine: e,
		notify: make(chan struct{}, 1),
	}
}

// kick requests a drain pass soon. Coalesces: kicking an already-kicked
// reconciler is a no-op.
func (r *reconciler) kick() {
	if r == nil {
		return
	}
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// NotifyConnectivityChange tells the engine connectivity may have
// changed. Call it from the host's network watcher; a device coming back
// online then drains its queue without waiting for the next tick.
func (e *Engine) NotifyConnectivityChange() {
	if e == nil || e.closed.Load() {
		return
	}
	e.recon.kick()
}

func (r *reconciler) loop(ctx context.Context) {
	ticker := time.NewTicker(r.engine.config.Sync.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.notify:
		}

		if !r.engine.Online() {
			continue
		}

		if err := r.drainOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.engine.log.Warn().Err(err).Msg("reconciliation pass failed")
		}
	}
}

// drainOnce runs one full reconciliation pass: failed items whose backoff
// has elapsed return to pending, then each entity's head pending item is
// published. Entities whose head is failed contribute nothing; later
// items never skip ahead of an unresolved earlier one.
func (r *reconciler) drainOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.engine

	if err := r.requeueBackedOff(ctx); err != nil {
		return err
	}

	items, err := e.store.NextRunnable(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	for i := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Connectivity can drop mid-pass; the rest of the queue waits.
		if !e.Online() {
			break
		}
		r.publishOne(ctx, &items[i])
	}

	e.metricInc(MetricSyncPass)
	return nil
}

// requeueBackedOff moves failed items back to pending once their
// exponential backoff has elapsed. Items at their retry cap stay failed
// until an operator retries or removes them.
func (r *reconciler) requeueBackedOff(ctx context.Context) error {
	e := r.engine

	failed, err := e.store.ListByStatus(ctx, StatusFailed)
	if err != nil {
		return err
	}

	now := e.now()
	for i := range failed {
		item := &failed[i]
		if item.RetryCount >= item.MaxRetries {
			continue
		}
		elapsed := now.Sub(time.Unix(item.UpdatedAt, 0))
		if elapsed < r.backoffDelay(item.RetryCount) {
			continue
		}
		if _, err := e.store.Requeue(ctx, item.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *reconciler) publishOne(ctx context.Context, item *store.QueueItem) {
	e := r.engine

	syncing, err := e.store.MarkSyncing(ctx, item.ID)
	if err != nil {
		// Lost a race with an operator action on this item; skip it.
		e.log.Debug().Err(err).Str("item", item.ID).Msg("queue item no longer pending")
		return
	}

	rctx, cancel := e.remoteContext(ctx)
	contentRef, err := e.publisher.Publish(rctx, syncing.Payload)
	cancel()

	if err != nil {
		failed, markErr := e.store.MarkFailed(ctx, syncing.ID, err.Error())
		if markErr != nil {
			e.log.Error().Err(markErr).Str("item", syncing.ID).Msg("could not record publish failure")
			return
		}

		e.metricInc(MetricQueueFailed)
		e.emitAudit(ctx, auditEventQueueFailed, false, "", failed.EntityKey(), err, func() map[string]string {
			return map[string]string{
				"item_id":     failed.ID,
				"retry_count": strconv.Itoa(failed.RetryCount),
			}
		})

		if failed.RetryCount >= failed.MaxRetries {
			e.metricInc(MetricQueueExhausted)
			e.emitAudit(ctx, auditEventQueueExhausted, false, "", failed.EntityKey(), ErrSyncExhausted, func() map[string]string {
				return map[string]string{"item_id": failed.ID}
			})
			e.log.Warn().Str("item", failed.ID).Int("retries", failed.RetryCount).Msg("queue item exhausted its retries")
		}
		return
	}

	completed, err := e.store.MarkCompleted(ctx, syncing.ID, contentRef)
	if err != nil {
		// The publish went through; the ledger's idempotency makes the
		// inevitable retry harmless.
		e.log.Error().Err(err).Str("item", syncing.ID).Msg("could not record publish success")
		return
	}

	e.metricInc(MetricQueuePublished)
	e.emitAudit(ctx, auditEventQueuePublished, true, "", completed.EntityKey(), nil, func() map[string]string {
		return map[string]string{"item_id": completed.ID, "content_ref": contentRef}
	})
}

// backoffDelay doubles the base delay per prior failure, caps it, and
// spreads it with random jitter so a fleet of recovering devices does not
// hammer the ledger in lockstep.
func (r *reconciler) backoffDelay(retryCount int) time.Duration {
	cfg := r.engine.config.Sync

	delay := cfg.BackoffBase
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= cfg.BackoffMax {
			delay = cfg.BackoffMax
			break
		}
	}
	if delay > cfg.BackoffMax {
		delay = cfg.BackoffMax
	}

	delay += randomJitter(cfg.JitterRange)
	if delay < 0 {
		delay = 0
	}
	return delay
}

// randomJitter returns a uniform duration in [-max, +max].
func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 0
	}

	span := uint64(2*max + 1)
	offset := binary.BigEndian.Uint64(buf[:]) % span
	return time.Duration(offset) - max
}
