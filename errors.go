package edgetill

import "errors"

var (
	// ErrAuthExpired means the cached session is no longer usable and the
	// operator must log back in (or reverify live when the verdict says
	// RequiresOnline).
	ErrAuthExpired = errors.New("authentication expired")
	// ErrPermissionDenied means the role table, the ownership constraint,
	// or the remote authority refused the action.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStorageCorrupt means durable state could not be decrypted or
	// decoded. It is recovered by treating the state as absent, never by
	// crashing.
	ErrStorageCorrupt = errors.New("storage corrupt")
	// ErrNetworkUnavailable is the soft offline condition. It only
	// surfaces as an error when the caller demanded an online-only
	// operation.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrSyncExhausted means a queue item hit its retry cap and stays
	// failed until an operator intervenes.
	ErrSyncExhausted = errors.New("sync retries exhausted")
	// ErrOnlineRequired means the action is in the critical set and may
	// only be performed with live connectivity.
	ErrOnlineRequired = errors.New("action requires connectivity")
	// ErrNoSession means the vault holds no usable session record.
	ErrNoSession = errors.New("no session")
	// ErrLoginFailed means the identity provider rejected the credentials.
	ErrLoginFailed = errors.New("login failed")
	// ErrUnknownRole means the remote authority reported a role outside
	// the closed set. An integration fault, not a user condition.
	ErrUnknownRole = errors.New("unknown role")
	// ErrQueueItemNotFound means no queue item exists with the given id.
	ErrQueueItemNotFound = errors.New("queue item not found")
	// ErrQueueItemTerminal means the item is completed and immutable.
	ErrQueueItemTerminal = errors.New("queue item already completed")
	// ErrQueueItemSyncing means the item has a publish attempt in flight.
	ErrQueueItemSyncing = errors.New("queue item is syncing")
	// ErrEngineClosed means the engine has been shut down.
	ErrEngineClosed = errors.New("engine closed")
)
