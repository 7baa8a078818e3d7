package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	edgetill "github.com/edgetill/edgetill"
	"github.com/edgetill/edgetill/middleware"
)

type stubIdentity struct{}

func (stubIdentity) Login(_ context.Context, creds edgetill.Credentials) (edgetill.Identity, error) {
	return edgetill.Identity{
		AccountID: "acct-" + creds.Account,
		Token:     "tok-" + creds.Account,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (stubIdentity) Refresh(_ context.Context, token string) (string, error) {
	return token, nil
}

type stubAuthority struct{}

func (stubAuthority) GetRole(context.Context, string) (edgetill.Role, error) {
	return edgetill.RoleOperator, nil
}

func (stubAuthority) CheckPermission(context.Context, string, string, edgetill.Action) (bool, error) {
	return true, nil
}

type stubLedger struct{}

func (stubLedger) Publish(context.Context, []byte) (string, error) {
	return "ref", nil
}

func guardTestConfig(t *testing.T) edgetill.Config {
	t.Helper()
	return edgetill.Config{
		Session: edgetill.SessionConfig{
			VaultKey:        make([]byte, 32),
			VaultPath:       filepath.Join(t.TempDir(), "session.bin"),
			DefaultTTL:      time.Hour,
			RefreshInterval: time.Hour,
		},
		Business: edgetill.BusinessConfig{BusinessID: "biz-test"},
		Sync: edgetill.SyncConfig{
			MaxRetries:  3,
			Interval:    time.Hour,
			BackoffBase: time.Second,
			BackoffMax:  time.Minute,
		},
		Remote: edgetill.RemoteConfig{Timeout: time.Second},
	}
}

func newGuardEngine(t *testing.T) *edgetill.Engine {
	t.Helper()

	engine, err := edgetill.New().
		WithConfig(guardTestConfig(t)).
		WithStorePath(":memory:").
		WithIdentityProvider(stubIdentity{}).
		WithAuthority(stubAuthority{}).
		WithPublisher(stubLedger{}).
		WithConnectivity(edgetill.StaticProbe(true)).
		Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func TestRequireSessionRejectsWithoutSession(t *testing.T) {
	engine := newGuardEngine(t)

	handler := middleware.RequireSession(engine)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireSessionInjectsVerdict(t *testing.T) {
	engine := newGuardEngine(t)
	_, err := engine.Login(context.Background(), edgetill.Credentials{Account: "op", Secret: "pw"})
	require.NoError(t, err)

	var seen bool
	handler := middleware.RequireSession(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verdict, ok := middleware.VerdictFromContext(r.Context())
		seen = ok && verdict.Valid
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, seen, "handler did not see a valid verdict in context")
}

func TestRequirePermissionGuards(t *testing.T) {
	engine := newGuardEngine(t)
	_, err := engine.Login(context.Background(), edgetill.Credentials{Account: "op", Secret: "pw"})
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Operators may read orders but never touch settings.
	allowed := middleware.RequirePermission(engine, "orders", edgetill.ActionRead)(next)
	rec := httptest.NewRecorder()
	allowed.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	denied := middleware.RequirePermission(engine, "settings", edgetill.ActionUpdate)(next)
	rec = httptest.NewRecorder()
	denied.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/settings", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequirePermissionWithoutSessionIsUnauthorized(t *testing.T) {
	engine := newGuardEngine(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// No login: the caller must re-authenticate, not re-request.
	rec := httptest.NewRecorder()
	middleware.RequirePermission(engine, "orders", edgetill.ActionRead)(next).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGuardsWithNilEngine(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	middleware.RequireSession(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
