package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Mutation describes the operation a caller wants queued for
// reconciliation with the external ledger.
type Mutation struct {
	Operation  string
	EntityType string
	NaturalKey string
	Payload    []byte
	MaxRetries int
}

// Enqueue appends a pending queue item for the mutation and returns it.
// Item IDs are ULIDs, giving same-entity items a total order that
// matches creation time even within one clock tick.
func (s *Store) Enqueue(ctx context.Context, m Mutation) (*QueueItem, error) {
	if m.Operation == "" || m.EntityType == "" || m.NaturalKey == "" {
		return nil, errors.New("operation, entity type and natural key required")
	}
	if m.MaxRetries <= 0 {
		return nil, errors.New("max retries must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Unix()
	item := &QueueItem{
		ID:         ulid.Make().String(),
		Operation:  m.Operation,
		EntityType: m.EntityType,
		NaturalKey: m.NaturalKey,
		Payload:    m.Payload,
		Status:     StatusPending,
		MaxRetries: m.MaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := s.db.NewInsert().Model(item).Exec(ctx); err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}
	return item, nil
}

// GetItem returns the queue item by id.
func (s *Store) GetItem(ctx context.Context, id string) (*QueueItem, error) {
	item := new(QueueItem)
	err := s.db.NewSelect().Model(item).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

// ListByStatus returns all items in the given status, in creation order.
func (s *Store) ListByStatus(ctx context.Context, status Status) ([]QueueItem, error) {
	var items []QueueItem
	err := s.db.NewSelect().
		Model(&items).
		Where("status = ?", status).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	return items, nil
}

// CountByStatus tallies queue items per state. States with no items are
// absent from the result.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	var rows []struct {
		Status Status `bun:"status"`
		Total  int64  `bun:"total"`
	}
	err := s.db.NewSelect().
		Model((*QueueItem)(nil)).
		Column("status").
		ColumnExpr("count(*) AS total").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("count queue: %w", err)
	}

	out := make(map[Status]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

// transition applies from->to for one item under the writer lock,
// enforcing the state machine. Completed items never transition.
func (s *Store) transition(ctx context.Context, id string, from, to Status, mutate func(*QueueItem)) (*QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Terminal() {
		return nil, ErrItemTerminal
	}
	if item.Status != from {
		return nil, fmt.Errorf("%w: %s -> %s (item is %s)", ErrBadTransition, from, to, item.Status)
	}

	item.Status = to
	item.UpdatedAt = s.now().Unix()
	if mutate != nil {
		mutate(item)
	}

	if _, err := s.db.NewUpdate().Model(item).WherePK().Exec(ctx); err != nil {
		return nil, fmt.Errorf("queue transition: %w", err)
	}
	return item, nil
}

// MarkSyncing moves a pending item into syncing ahead of a publish
// attempt.
func (s *Store) MarkSyncing(ctx context.Context, id string) (*QueueItem, error) {
	return s.transition(ctx, id, StatusPending, StatusSyncing, nil)
}

// MarkCompleted moves a syncing item into its terminal state and records
// the content reference returned by the ledger.
func (s *Store) MarkCompleted(ctx context.Context, id, contentRef string) (*QueueItem, error) {
	return s.transition(ctx, id, StatusSyncing, StatusCompleted, func(item *QueueItem) {
		item.ContentRef = contentRef
		item.LastError = ""
	})
}

// MarkFailed moves a syncing item into failed, recording the cause and
// incrementing the retry counter. The counter never exceeds MaxRetries;
// once it reaches the cap the item stays failed until an operator acts.
func (s *Store) MarkFailed(ctx context.Context, id, cause string) (*QueueItem, error) {
	return s.transition(ctx, id, StatusSyncing, StatusFailed, func(item *QueueItem) {
		if item.RetryCount < item.MaxRetries {
			item.RetryCount++
		}
		item.LastError = cause
	})
}

// Requeue moves a failed item back to pending, leaving the retry counter
// untouched so the failure history stays visible.
func (s *Store) Requeue(ctx context.Context, id string) (*QueueItem, error) {
	return s.transition(ctx, id, StatusFailed, StatusPending, nil)
}

// RetryAll moves every failed item back to pending, leaving retry
// counters untouched. Completed and syncing items are not affected.
// Returns the number of items moved.
func (s *Store) RetryAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.NewUpdate().
		Model((*QueueItem)(nil)).
		Set("status = ?", StatusPending).
		Set("updated_at = ?", s.now().Unix()).
		Where("status = ?", StatusFailed).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("retry all: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ClearCompleted purges all completed items and reports how many were
// removed. It is idempotent: a second call is a no-op.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.NewDelete().
		Model((*QueueItem)(nil)).
		Where("status = ?", StatusCompleted).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Remove deletes a single pending or failed item. It refuses completed
// items (use ClearCompleted) and syncing items (a publish is in flight).
// Removal is irreversible; the engine requires explicit operator
// confirmation before calling this.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.GetItem(ctx, id)
	if err != nil {
		return err
	}
	switch item.Status {
	case StatusCompleted:
		return ErrItemTerminal
	case StatusSyncing:
		return ErrItemSyncing
	}

	if _, err := s.db.NewDelete().Model(item).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("remove queue item: %w", err)
	}
	return nil
}

// RecoverInterrupted reverts every syncing item to pending. Called once
// at startup: an item left syncing means the process died mid-publish,
// and the ledger's idempotent publish makes the retry safe.
func (s *Store) RecoverInterrupted(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.NewUpdate().
		Model((*QueueItem)(nil)).
		Set("status = ?", StatusPending).
		Set("updated_at = ?", s.now().Unix()).
		Where("status = ?", StatusSyncing).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("recover interrupted: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// NextRunnable returns, per entity, the head pending item eligible to
// publish. An entity whose earliest unresolved item is failed or syncing
// contributes nothing: later items stay blocked so per-entity order is
// never violated by skipping ahead. Results are in creation order.
func (s *Store) NextRunnable(ctx context.Context) ([]QueueItem, error) {
	var items []QueueItem
	err := s.db.NewSelect().
		Model(&items).
		Where("status != ?", StatusCompleted).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("next runnable: %w", err)
	}

	seen := make(map[string]bool)
	var runnable []QueueItem
	for _, item := range items {
		key := item.EntityKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		if item.Status == StatusPending {
			runnable = append(runnable, item)
		}
	}
	return runnable, nil
}
