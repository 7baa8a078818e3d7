package edgetill

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLogout             = "logout"
	auditEventSessionValid       = "session_valid"
	auditEventSessionInvalid     = "session_invalid"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshFailure     = "refresh_failure"
	auditEventPermissionAllowed  = "permission_allowed"
	auditEventPermissionDenied   = "permission_denied"
	auditEventAuthorityOverride  = "authority_override"
	auditEventOnlineBlock        = "online_block"
	auditEventScanRecorded       = "scan_recorded"
	auditEventQueueEnqueued      = "queue_enqueued"
	auditEventQueuePublished     = "queue_published"
	auditEventQueueFailed        = "queue_failed"
	auditEventQueueExhausted     = "queue_exhausted"
	auditEventQueueRetried       = "queue_retried"
	auditEventQueueRemoved       = "queue_removed"
	auditEventQueueCleared       = "queue_cleared"
	auditEventQueueRecovered     = "queue_recovered"
	auditEventSettingCacheUpdate = "setting_cache_update"
)

// AuditErrorCode is the stable error vocabulary used in audit events.
type AuditErrorCode string

const (
	auditErrAuthExpired      AuditErrorCode = "auth_expired"
	auditErrPermissionDenied AuditErrorCode = "permission_denied"
	auditErrStorageCorrupt   AuditErrorCode = "storage_corrupt"
	auditErrOffline          AuditErrorCode = "network_unavailable"
	auditErrSyncExhausted    AuditErrorCode = "sync_exhausted"
	auditErrOnlineRequired   AuditErrorCode = "online_required"
	auditErrNoSession        AuditErrorCode = "no_session"
	auditErrLoginFailed      AuditErrorCode = "login_failed"
	auditErrUnknownRole      AuditErrorCode = "unknown_role"
	auditErrItemNotFound     AuditErrorCode = "queue_item_not_found"
	auditErrItemTerminal     AuditErrorCode = "queue_item_terminal"
	auditErrInternal         AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	resource string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		AccountID:  accountID,
		BusinessID: e.config.Business.BusinessID,
		DeviceID:   e.deviceID,
		Resource:   resource,
		Success:    success,
		Online:     e.Online(),
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAuthExpired):
		return auditErrAuthExpired
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrStorageCorrupt):
		return auditErrStorageCorrupt
	case errors.Is(err, ErrNetworkUnavailable):
		return auditErrOffline
	case errors.Is(err, ErrSyncExhausted):
		return auditErrSyncExhausted
	case errors.Is(err, ErrOnlineRequired):
		return auditErrOnlineRequired
	case errors.Is(err, ErrNoSession):
		return auditErrNoSession
	case errors.Is(err, ErrLoginFailed):
		return auditErrLoginFailed
	case errors.Is(err, ErrUnknownRole):
		return auditErrUnknownRole
	case errors.Is(err, ErrQueueItemNotFound):
		return auditErrItemNotFound
	case errors.Is(err, ErrQueueItemTerminal),
		errors.Is(err, ErrQueueItemSyncing):
		return auditErrItemTerminal
	default:
		return auditErrInternal
	}
}
