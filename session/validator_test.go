package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(t *testing.T, role Role, cachedAt, expiresAt time.Time) *Session {
	t.Helper()
	s, err := NewSession("sid-1", "acct-1", "addr-1", role, "token-1", "dev-1", cachedAt, expiresAt)
	require.NoError(t, err)
	return s
}

func TestValidateNilSession(t *testing.T) {
	v := Validate(nil, time.Now(), true)

	assert.False(t, v.Valid)
	assert.Equal(t, ReasonNoSession, v.Reason)
}

func TestValidateRootOfflineAlwaysInvalid(t *testing.T) {
	now := time.Now()
	s := testSession(t, RoleRoot, now, now.Add(time.Hour))

	v := Validate(s, now, false)

	assert.False(t, v.Valid)
	assert.Equal(t, ReasonRootOffline, v.Reason)
	assert.True(t, v.RequiresOnline)
}

func TestValidateRootExpiredOnline(t *testing.T) {
	now := time.Now()
	s := testSession(t, RoleRoot, now.Add(-2*time.Hour), now.Add(-time.Hour))

	v := Validate(s, now, true)

	assert.False(t, v.Valid)
	assert.Equal(t, ReasonRootExpired, v.Reason)
	assert.True(t, v.RequiresOnline)
}

func TestValidateRootFreshOnline(t *testing.T) {
	now := time.Now()
	s := testSession(t, RoleRoot, now, now.Add(time.Hour))

	v := Validate(s, now, true)

	assert.True(t, v.Valid)
}

func TestValidateGraceWindows(t *testing.T) {
	tests := []struct {
		name      string
		role      Role
		staleness time.Duration
		online    bool
		wantValid bool
	}{
		{"admin inside 24h grace", RoleAdmin, 23 * time.Hour, false, true},
		{"admin past 24h grace", RoleAdmin, 25 * time.Hour, false, false},
		{"partner at 6.9 days", RolePartner, time.Duration(6.9 * 24 * float64(time.Hour)), false, true},
		{"partner at 7.1 days", RolePartner, time.Duration(7.1 * 24 * float64(time.Hour)), false, false},
		{"operator inside 7d grace", RoleOperator, 6 * 24 * time.Hour, false, true},
		{"operator past 7d grace", RoleOperator, 8 * 24 * time.Hour, false, false},
		{"admin past grace while online", RoleAdmin, 25 * time.Hour, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Now()
			cachedAt := now.Add(-tt.staleness)
			// Token expired one second after caching; staleness is
			// measured from cache time, not expiry.
			s := testSession(t, tt.role, cachedAt, cachedAt.Add(time.Second))

			v := Validate(s, now, tt.online)

			assert.Equal(t, tt.wantValid, v.Valid)
			if !tt.wantValid {
				assert.Equal(t, ReasonGraceElapsed, v.Reason)
				assert.True(t, v.RequiresOnline)
			}
		})
	}
}

func TestValidateUnexpiredTokenNeedsNoGrace(t *testing.T) {
	now := time.Now()
	s := testSession(t, RoleOperator, now.Add(-30*24*time.Hour), now.Add(time.Hour))

	v := Validate(s, now, false)

	assert.True(t, v.Valid, "an unexpired token is valid regardless of cache age")
}

func TestGracePeriodTable(t *testing.T) {
	assert.Equal(t, time.Duration(0), GracePeriod(RoleRoot))
	assert.Equal(t, 24*time.Hour, GracePeriod(RoleAdmin))
	assert.Equal(t, 7*24*time.Hour, GracePeriod(RolePartner))
	assert.Equal(t, 7*24*time.Hour, GracePeriod(RoleOperator))
	assert.Equal(t, time.Duration(0), GracePeriod(Role("UNKNOWN")))
}

func TestNewSessionRejectsInvertedLifetime(t *testing.T) {
	now := time.Now()
	_, err := NewSession("sid", "acct", "addr", RoleAdmin, "tok", "dev", now, now)
	assert.ErrorIs(t, err, ErrInvalidLifetime)
}
