package edgetill

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/edgetill/edgetill/internal/audit"
	"github.com/edgetill/edgetill/permission"
	"github.com/edgetill/edgetill/session"
	"github.com/edgetill/edgetill/store"
)

// Engine is the embedded offline-first core. One Engine runs per device;
// all methods are safe for concurrent use. Construct it with [Builder].
type Engine struct {
	config Config

	table *permission.Table
	vault session.Vault

	store     *store.Store
	ownsStore bool

	identity  IdentityProvider
	authority RoleAuthority
	publisher LedgerPublisher
	probe     ConnectivityProbe

	audit   *audit.Dispatcher
	metrics *Metrics
	log     zerolog.Logger

	deviceID string

	recon *reconciler

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup

	now    func() time.Time
	closed atomic.Bool
}

func (e *Engine) startBackground() {
	if e.now == nil {
		e.now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.bgCancel = cancel

	e.recon = newReconciler(e)

	e.bgWG.Add(2)
	go func() {
		defer e.bgWG.Done()
		e.refreshLoop(ctx)
	}()
	go func() {
		defer e.bgWG.Done()
		e.recon.loop(ctx)
	}()
}

// Close stops the background loops, drains the audit dispatcher, and
// closes the store when the engine owns it. Safe to call more than once.
func (e *Engine) Close() error {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	if e.bgCancel != nil {
		e.bgCancel()
	}
	e.bgWG.Wait()

	e.audit.Close()

	if e.ownsStore && e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Online reports current connectivity as seen by the injected probe.
func (e *Engine) Online() bool {
	return e.probe.Online()
}

// DeviceID returns this device's stable identifier.
func (e *Engine) DeviceID() string {
	return e.deviceID
}

// MetricsSnapshot returns a point-in-time copy of all engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

func (e *Engine) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Remote.Timeout)
}

/*
====================================
LOGIN / LOGOUT
====================================
*/

// Login authenticates against the identity provider, resolves the
// account's role, and seals the resulting session into the vault. Login
// always requires connectivity.
func (e *Engine) Login(ctx context.Context, creds Credentials) (*session.Session, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if !e.Online() {
		err := fmt.Errorf("%w: login requires connectivity", ErrNetworkUnavailable)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, creds.Account, "", err, nil)
		return nil, err
	}

	rctx, cancel := e.remoteContext(ctx)
	identity, err := e.identity.Login(rctx, creds)
	cancel()
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrLoginFailed, err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, creds.Account, "", wrapped, nil)
		return nil, wrapped
	}

	rctx, cancel = e.remoteContext(ctx)
	role, err := e.authority.GetRole(rctx, identity.AccountID)
	cancel()
	if err != nil {
		wrapped := fmt.Errorf("%w: role lookup: %v", ErrLoginFailed, err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, identity.AccountID, "", wrapped, nil)
		return nil, wrapped
	}
	if _, ok := session.ParseRole(string(role)); !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, identity.AccountID, "", ErrUnknownRole, nil)
		return nil, ErrUnknownRole
	}

	now := e.now()
	expiresAt := identity.ExpiresAt
	if expiresAt.IsZero() {
		if exp, ok := tokenExpiry(identity.Token); ok {
			expiresAt = exp
		} else {
			expiresAt = now.Add(e.config.Session.DefaultTTL)
		}
	}

	s, err := session.NewSession(
		uuid.NewString(),
		identity.AccountID,
		identity.ExternalAddress,
		role,
		identity.Token,
		e.deviceID,
		now,
		expiresAt,
	)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, identity.AccountID, "", err, nil)
		return nil, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	if err := e.vault.Save(ctx, s); err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, identity.AccountID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, s.AccountID, "", nil, func() map[string]string {
		return map[string]string{"role": string(s.Role), "session_id": s.SessionID}
	})
	e.log.Info().Str("account", s.AccountID).Str("role", string(s.Role)).Msg("login")

	return s, nil
}

// Logout clears the sealed session. Clearing an already-empty vault is
// not an error.
func (e *Engine) Logout(ctx context.Context) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	s, _ := e.vault.Load(ctx)

	if err := e.vault.Clear(ctx); err != nil {
		return err
	}

	accountID := ""
	if s != nil {
		accountID = s.AccountID
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, accountID, "", nil, nil)

	return nil
}

/*
====================================
VALIDATION / REFRESH
====================================
*/

// ValidateSession loads the sealed session and judges it against the
// current clock and connectivity. A corrupt or missing vault yields a
// "no session" verdict, never an error.
func (e *Engine) ValidateSession(ctx context.Context) (Verdict, error) {
	if e.closed.Load() {
		return Verdict{}, ErrEngineClosed
	}

	start := e.now()
	s, verdict, err := e.loadAndValidate(ctx)
	e.metrics.Observe(MetricValidateLatency, e.now().Sub(start))
	if err != nil {
		return Verdict{}, err
	}

	if verdict.Valid {
		e.metricInc(MetricSessionValid)
		e.emitAudit(ctx, auditEventSessionValid, true, s.AccountID, "", nil, nil)
	} else {
		e.metricInc(MetricSessionInvalid)
		accountID := ""
		if s != nil {
			accountID = s.AccountID
		}
		e.emitAudit(ctx, auditEventSessionInvalid, false, accountID, "", nil, func() map[string]string {
			return map[string]string{"reason": verdict.Reason.String()}
		})
	}

	return verdict, nil
}

// loadAndValidate is the shared session gate. The *Session it returns is
// non-nil only for a decodable vault record; the verdict stands on its
// own either way.
func (e *Engine) loadAndValidate(ctx context.Context) (*session.Session, session.Verdict, error) {
	s, err := e.vault.Load(ctx)
	if err != nil {
		return nil, session.Verdict{}, err
	}
	if s == nil {
		return nil, session.Validate(nil, e.now(), e.Online()), nil
	}
	return s, session.Validate(s, e.now(), e.Online()), nil
}

// RefreshSession exchanges the cached token for a fresh one and re-reads
// the account's role from the authority, resetting the grace window.
// Requires connectivity.
func (e *Engine) RefreshSession(ctx context.Context) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	s, err := e.vault.Load(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		return ErrNoSession
	}
	if !e.Online() {
		e.metricInc(MetricRefreshSkippedOffline)
		return fmt.Errorf("%w: refresh requires connectivity", ErrNetworkUnavailable)
	}

	rctx, cancel := e.remoteContext(ctx)
	token, err := e.identity.Refresh(rctx, s.Token)
	cancel()
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, s.AccountID, "", err, nil)
		return fmt.Errorf("refresh: %w", err)
	}

	// Roles may be reassigned remotely between refreshes; the cached
	// session must not keep the old one.
	rctx, cancel = e.remoteContext(ctx)
	role, err := e.authority.GetRole(rctx, s.AccountID)
	cancel()
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, s.AccountID, "", err, nil)
		return fmt.Errorf("refresh role lookup: %w", err)
	}
	if _, ok := session.ParseRole(string(role)); !ok {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, s.AccountID, "", ErrUnknownRole, nil)
		return ErrUnknownRole
	}

	now := e.now()
	expiresAt := now.Add(e.config.Session.DefaultTTL)
	if exp, ok := tokenExpiry(token); ok {
		expiresAt = exp
	}

	s.Token = token
	s.Role = role
	s.CachedAt = now.Unix()
	s.ExpiresAt = expiresAt.Unix()
	s.LastRefresh = now.Unix()

	if err := e.vault.Save(ctx, s); err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, s.AccountID, "", err, nil)
		return err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, s.AccountID, "", nil, func() map[string]string {
		return map[string]string{"role": string(s.Role)}
	})

	return nil
}

// refreshLoop opportunistically refreshes the cached session while
// online. Failures are logged and retried at the next tick; they never
// surface to callers.
func (e *Engine) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.Session.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !e.Online() {
			e.metricInc(MetricRefreshSkippedOffline)
			continue
		}

		if err := e.RefreshSession(ctx); err != nil {
			if err == ErrNoSession {
				continue
			}
			e.log.Warn().Err(err).Msg("background session refresh failed")
		}
	}
}

// tokenExpiry extracts the exp claim without verifying the signature.
// Verification belongs to the identity provider; locally the claim is
// only a lifetime hint.
func tokenExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
