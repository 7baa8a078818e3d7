package store

import "github.com/uptrace/bun"

// Status is the sync-queue state machine position of a queue item.
type Status string

const (
	// StatusPending means the item is waiting to be published.
	StatusPending Status = "pending"
	// StatusSyncing means a publish attempt is in flight.
	StatusSyncing Status = "syncing"
	// StatusFailed means the last publish attempt failed.
	StatusFailed Status = "failed"
	// StatusCompleted is terminal; completed items never transition again.
	StatusCompleted Status = "completed"
)

// ParseStatus maps a wire string to a Status, or false for anything
// outside the closed set.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusSyncing, StatusFailed, StatusCompleted:
		return Status(s), true
	default:
		return "", false
	}
}

// CatalogEntry is a global, shared product record keyed by its natural
// key (barcode). Price and stock live in business-scoped overrides.
type CatalogEntry struct {
	bun.BaseModel `bun:"table:catalog_entries"`

	ID         int64   `bun:"id,pk,autoincrement"`
	NaturalKey string  `bun:"natural_key,notnull,unique"`
	Name       string  `bun:"name,notnull"`
	Category   string  `bun:"category,notnull"`
	UnitPrice  float64 `bun:"unit_price,notnull,default:0"`
	VATRate    float64 `bun:"vat_rate,notnull,default:0"`
	CreatedAt  int64   `bun:"created_at,notnull"`
	UpdatedAt  int64   `bun:"updated_at,notnull"`
}

// LocalOverride is the business-scoped price/stock view of a catalog
// entry. At most one override exists per (business, natural key) pair.
type LocalOverride struct {
	bun.BaseModel `bun:"table:local_overrides"`

	ID         int64   `bun:"id,pk,autoincrement"`
	BusinessID string  `bun:"business_id,notnull,unique:biz_key"`
	NaturalKey string  `bun:"natural_key,notnull,unique:biz_key"`
	BranchID   string  `bun:"branch_id"`
	Price      float64 `bun:"price,notnull,default:0"`
	Cost       float64 `bun:"cost,notnull,default:0"`
	Stock      int64   `bun:"stock,notnull,default:0"`
	MinStock   int64   `bun:"min_stock,notnull,default:0"`
	UpdatedAt  int64   `bun:"updated_at,notnull"`
}

// QueueItem is one queued mutation awaiting reconciliation with the
// external ledger. IDs are ULIDs, so lexicographic order matches
// creation order.
type QueueItem struct {
	bun.BaseModel `bun:"table:queue_items"`

	ID         string `bun:"id,pk"`
	Operation  string `bun:"operation,notnull"`
	EntityType string `bun:"entity_type,notnull"`
	NaturalKey string `bun:"natural_key,notnull"`
	Payload    []byte `bun:"payload"`
	Status     Status `bun:"status,notnull"`
	RetryCount int    `bun:"retry_count,notnull,default:0"`
	MaxRetries int    `bun:"max_retries,notnull"`
	LastError  string `bun:"last_error"`
	ContentRef string `bun:"content_ref"`
	CreatedAt  int64  `bun:"created_at,notnull"`
	UpdatedAt  int64  `bun:"updated_at,notnull"`
}

// EntityKey identifies the entity a queue item targets. Ordering
// guarantees are scoped per entity key.
func (q *QueueItem) EntityKey() string {
	return q.EntityType + "/" + q.NaturalKey
}

// Terminal reports whether the item is in its terminal state.
func (q *QueueItem) Terminal() bool {
	return q.Status == StatusCompleted
}

// Setting is a cached key/value fact normally sourced remotely, kept for
// offline fallback (e.g. the last-known commission rate).
type Setting struct {
	bun.BaseModel `bun:"table:settings"`

	Key      string `bun:"key,pk"`
	Value    string `bun:"value,notnull"`
	CachedAt int64  `bun:"cached_at,notnull"`
}
