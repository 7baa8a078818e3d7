package edgetill

import (
	"context"
	"fmt"

	"github.com/edgetill/edgetill/session"
)

// Critical actions a ROOT operator may never perform from an offline
// device, regardless of what the local table would allow.
var criticalActions = map[string]struct{}{
	"system.halt":        {},
	"fees.update":        {},
	"device.authorize":   {},
	"role.update":        {},
	"emergency.override": {},
}

// CriticalActions lists the actions gated by [Engine.RequiresOnlineBlock].
func CriticalActions() []string {
	out := make([]string, 0, len(criticalActions))
	for a := range criticalActions {
		out = append(out, a)
	}
	return out
}

// HasPermission decides whether the current session may perform action on
// resource. The decision layers, in order: session validity, the ROOT
// wildcard, the role's exact resource rule, the rule's ownership
// constraint, and finally the remote authority while online. A remote
// deny overrides a local allow; a remote error or timeout leaves the
// local decision standing. The check mutates nothing.
//
// rc may be nil when the resource has no ownership dimension; an
// ownership-constrained rule then denies.
func (e *Engine) HasPermission(ctx context.Context, resource string, action Action, rc *ResourceContext) (bool, error) {
	if e.closed.Load() {
		return false, ErrEngineClosed
	}

	s, verdict, err := e.loadAndValidate(ctx)
	if err != nil {
		return false, err
	}
	if !verdict.Valid {
		e.denyInvalidSession(ctx, resource, action, verdict)
		return false, nil
	}

	return e.decide(ctx, s, resource, action, rc), nil
}

// denyInvalidSession records the denial of a permission check whose
// session failed validation.
func (e *Engine) denyInvalidSession(ctx context.Context, resource string, action Action, verdict Verdict) {
	e.metricInc(MetricPermissionDenied)
	e.emitAudit(ctx, auditEventPermissionDenied, false, "", resource, ErrAuthExpired, func() map[string]string {
		return map[string]string{"action": string(action), "reason": verdict.Reason.String()}
	})
}

// decide runs the rule and authority layers for a session already judged
// valid. Both permission entry points share it, so the session is loaded
// and validated exactly once per check.
func (e *Engine) decide(ctx context.Context, s *session.Session, resource string, action Action, rc *ResourceContext) bool {
	allowed := e.localDecision(s.AccountID, s.Role, resource, action, rc)

	// The remote authority can only narrow, never widen. Consulting it
	// on a local deny would change nothing.
	if allowed && e.Online() {
		rctx, cancel := e.remoteContext(ctx)
		remoteOK, remoteErr := e.authority.CheckPermission(rctx, s.AccountID, resource, action)
		cancel()

		switch {
		case remoteErr != nil:
			e.metricInc(MetricAuthorityErrorSwallowed)
			e.log.Debug().Err(remoteErr).Str("resource", resource).Msg("authority check failed, local decision stands")
		case !remoteOK:
			allowed = false
			e.metricInc(MetricAuthorityOverride)
			e.emitAudit(ctx, auditEventAuthorityOverride, false, s.AccountID, resource, nil, func() map[string]string {
				return map[string]string{"action": string(action)}
			})
		}
	}

	if allowed {
		e.metricInc(MetricPermissionAllowed)
		e.emitAudit(ctx, auditEventPermissionAllowed, true, s.AccountID, resource, nil, func() map[string]string {
			return map[string]string{"action": string(action), "role": string(s.Role)}
		})
	} else {
		e.metricInc(MetricPermissionDenied)
		e.emitAudit(ctx, auditEventPermissionDenied, false, s.AccountID, resource, ErrPermissionDenied, func() map[string]string {
			return map[string]string{"action": string(action), "role": string(s.Role)}
		})
	}

	return allowed
}

func (e *Engine) localDecision(accountID string, role Role, resource string, action Action, rc *ResourceContext) bool {
	if e.table.HasWildcard(role) {
		return true
	}

	rule, ok := e.table.RuleFor(role, resource)
	if !ok || !ruleAllows(rule.Actions, action) {
		return false
	}

	if rule.RequireOwner {
		if rc == nil || rc.OwnerID == "" {
			return false
		}
		if rc.OwnerID != accountID {
			return false
		}
	}

	return true
}

func ruleAllows(actions []Action, action Action) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

// RequirePermission is [Engine.HasPermission] with error semantics: an
// invalid session yields [ErrAuthExpired], a denial yields
// [ErrPermissionDenied], and nil means proceed.
func (e *Engine) RequirePermission(ctx context.Context, resource string, action Action, rc *ResourceContext) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	s, verdict, err := e.loadAndValidate(ctx)
	if err != nil {
		return err
	}
	if !verdict.Valid {
		e.denyInvalidSession(ctx, resource, action, verdict)
		return fmt.Errorf("%w: %s", ErrAuthExpired, verdict.Reason)
	}

	if !e.decide(ctx, s, resource, action, rc) {
		return fmt.Errorf("%w: %s %s", ErrPermissionDenied, action, resource)
	}
	return nil
}

// RequiresOnlineBlock reports whether the named action must be refused
// right now: a ROOT session, a critical action, and no connectivity.
// Non-ROOT sessions are never blocked by this gate since they cannot
// perform critical actions at all.
func (e *Engine) RequiresOnlineBlock(ctx context.Context, action string) (bool, error) {
	if e.closed.Load() {
		return false, ErrEngineClosed
	}

	s, err := e.vault.Load(ctx)
	if err != nil {
		return false, err
	}
	if s == nil || s.Role != RoleRoot {
		return false, nil
	}
	if _, critical := criticalActions[action]; !critical {
		return false, nil
	}
	if e.Online() {
		return false, nil
	}

	e.metricInc(MetricOnlineBlock)
	e.emitAudit(ctx, auditEventOnlineBlock, false, s.AccountID, action, ErrOnlineRequired, nil)

	return true, nil
}
