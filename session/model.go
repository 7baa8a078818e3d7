package session

import (
	"errors"
	"time"
)

// Role is the closed set of operator roles, ordered by trust.
type Role string

const (
	// RoleRoot must always reverify against the live authority and never
	// operates on a cached grace period.
	RoleRoot     Role = "ROOT"
	RoleAdmin    Role = "ADMIN"
	RolePartner  Role = "PARTNER"
	RoleOperator Role = "OPERATOR"
)

// ParseRole maps a wire string to a Role, or false for anything outside
// the closed set.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleRoot, RoleAdmin, RolePartner, RoleOperator:
		return Role(s), true
	default:
		return "", false
	}
}

// Session is the single identity record persisted per device. Timestamps
// are unix seconds; LastRefresh is 0 when the session has never been
// refreshed since login.
type Session struct {
	SessionID       string
	AccountID       string
	ExternalAddress string

	Role Role

	Token string

	DeviceID         string
	DeviceAuthorized bool

	CreatedAt   int64
	CachedAt    int64
	ExpiresAt   int64
	LastRefresh int64
}

// ErrInvalidLifetime is returned by NewSession when ExpiresAt does not lie
// strictly after CachedAt.
var ErrInvalidLifetime = errors.New("session expiry must be after cache time")

// NewSession builds a session record, enforcing the expiry-after-cache
// invariant at creation.
func NewSession(sessionID, accountID, address string, role Role, token, deviceID string, cachedAt, expiresAt time.Time) (*Session, error) {
	if !expiresAt.After(cachedAt) {
		return nil, ErrInvalidLifetime
	}
	return &Session{
		SessionID:       sessionID,
		AccountID:       accountID,
		ExternalAddress: address,
		Role:            role,
		Token:           token,
		DeviceID:        deviceID,
		CreatedAt:       cachedAt.Unix(),
		CachedAt:        cachedAt.Unix(),
		ExpiresAt:       expiresAt.Unix(),
	}, nil
}
