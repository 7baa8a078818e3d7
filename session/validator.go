package session

import "time"

// Reason explains why Validate rejected a session.
type Reason uint8

const (
	// ReasonNone means the session is valid.
	ReasonNone Reason = iota
	// ReasonNoSession means no session record is present.
	ReasonNoSession
	// ReasonRootOffline means a ROOT session cannot be used without
	// connectivity.
	ReasonRootOffline
	// ReasonRootExpired means a ROOT token lapsed and must reverify live.
	ReasonRootExpired
	// ReasonGraceElapsed means the token lapsed and the role's grace
	// window has also elapsed.
	ReasonGraceElapsed
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNoSession:
		return "no_session"
	case ReasonRootOffline:
		return "root_offline"
	case ReasonRootExpired:
		return "root_expired"
	case ReasonGraceElapsed:
		return "grace_elapsed"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of a validation pass. RequiresOnline is set when
// the only path back to a valid session is a live reverification.
type Verdict struct {
	Valid          bool
	Reason         Reason
	RequiresOnline bool
}

// GracePeriod returns the maximum staleness a role's cached session may
// accumulate past token expiry before it stops being usable offline.
// The table is fixed: ROOT gets no grace at all.
func GracePeriod(role Role) time.Duration {
	switch role {
	case RoleRoot:
		return 0
	case RoleAdmin:
		return 24 * time.Hour
	case RolePartner, RoleOperator:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// Validate decides whether s is still usable at the given instant under
// the given connectivity. It is a pure function: no clocks, no probes,
// no side effects.
func Validate(s *Session, now time.Time, online bool) Verdict {
	if s == nil {
		return Verdict{Valid: false, Reason: ReasonNoSession}
	}

	expired := now.Unix() > s.ExpiresAt

	if s.Role == RoleRoot {
		if !online {
			return Verdict{Valid: false, Reason: ReasonRootOffline, RequiresOnline: true}
		}
		if expired {
			return Verdict{Valid: false, Reason: ReasonRootExpired, RequiresOnline: true}
		}
		return Verdict{Valid: true}
	}

	if expired {
		staleness := time.Duration(now.Unix()-s.CachedAt) * time.Second
		if staleness > GracePeriod(s.Role) {
			return Verdict{Valid: false, Reason: ReasonGraceElapsed, RequiresOnline: true}
		}
	}

	return Verdict{Valid: true}
}
