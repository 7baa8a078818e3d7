package edgetill

import (
	"context"
	"io"
	"time"

	"github.com/edgetill/edgetill/internal/audit"
	"github.com/edgetill/edgetill/permission"
	"github.com/edgetill/edgetill/session"
	"github.com/edgetill/edgetill/store"
)

// Role is the closed set of operator roles, ordered by trust.
type Role = session.Role

const (
	RoleRoot     = session.RoleRoot
	RoleAdmin    = session.RoleAdmin
	RolePartner  = session.RolePartner
	RoleOperator = session.RoleOperator
)

// Action is one of the four operations a permission rule can grant.
type Action = permission.Action

const (
	ActionCreate = permission.ActionCreate
	ActionRead   = permission.ActionRead
	ActionUpdate = permission.ActionUpdate
	ActionDelete = permission.ActionDelete
)

// Verdict is the outcome of a session validation pass.
type Verdict = session.Verdict

// QueueItem is one queued mutation awaiting reconciliation.
type QueueItem = store.QueueItem

// QueueStatus is the sync-queue state of a queue item.
type QueueStatus = store.Status

const (
	StatusPending   = store.StatusPending
	StatusSyncing   = store.StatusSyncing
	StatusFailed    = store.StatusFailed
	StatusCompleted = store.StatusCompleted
)

// Mutation describes a queued operation; see [Engine.Enqueue].
type Mutation = store.Mutation

// Credentials authenticate an operator against the identity provider.
// Secret is whatever the provider expects (PIN, password, signature).
type Credentials struct {
	Account string
	Secret  string
}

// Identity is returned by [IdentityProvider.Login]. ExpiresAt may be
// zero when the provider encodes expiry only inside the token; the
// engine then recovers it from the token's claims.
type Identity struct {
	AccountID       string
	ExternalAddress string
	Token           string
	ExpiresAt       time.Time
}

// IdentityProvider is the external login/refresh authority. All calls
// are bounded by [RemoteConfig.Timeout]; a timeout is indistinguishable
// from being offline.
type IdentityProvider interface {
	Login(ctx context.Context, creds Credentials) (Identity, error)
	Refresh(ctx context.Context, token string) (string, error)
}

// RoleAuthority is the external, best-effort role and permission
// authority. GetRole is consulted at login and refresh; CheckPermission
// is consulted on permission checks while online, where an authoritative
// deny always overrides a local allow.
type RoleAuthority interface {
	GetRole(ctx context.Context, accountID string) (Role, error)
	CheckPermission(ctx context.Context, accountID, resource string, action Action) (bool, error)
}

// LedgerPublisher publishes a queued payload to the external
// content-addressed ledger and returns its content reference. Publish
// must be idempotent under resubmission: the reconciler retries items
// found mid-flight after a crash.
type LedgerPublisher interface {
	Publish(ctx context.Context, payload []byte) (string, error)
}

// ConnectivityProbe reports current connectivity. It is queried
// synchronously and must be cheap; the engine never caches its answer.
type ConnectivityProbe interface {
	Online() bool
}

// StaticProbe is a fixed-answer [ConnectivityProbe], useful in tests and
// for forcing offline behavior.
type StaticProbe bool

// Online implements [ConnectivityProbe].
func (p StaticProbe) Online() bool { return bool(p) }

// ProbeFunc adapts a function to the [ConnectivityProbe] interface.
type ProbeFunc func() bool

// Online implements [ConnectivityProbe].
func (f ProbeFunc) Online() bool { return f() }

// ResourceContext carries per-resource facts a permission check may need.
// A nil ResourceContext means no ownership information is available; an
// ownership-constrained rule then denies.
type ResourceContext struct {
	OwnerID string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = audit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = audit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = audit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = audit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
