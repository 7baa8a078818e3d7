package middleware

import (
	"context"
	"errors"
	"net/http"

	edgetill "github.com/edgetill/edgetill"
)

type verdictContextKey struct{}

// VerdictFromContext returns the session verdict a guard stored for the
// current request.
func VerdictFromContext(ctx context.Context) (edgetill.Verdict, bool) {
	v, ok := ctx.Value(verdictContextKey{}).(edgetill.Verdict)
	return v, ok
}

// RequireSession rejects requests unless the device holds a valid
// session. The verdict is injected into the request context.
func RequireSession(engine *edgetill.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			verdict, err := engine.ValidateSession(r.Context())
			if err != nil || !verdict.Valid {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), verdictContextKey{}, verdict)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects requests unless the device's session may
// perform action on resource: 401 when the session is missing or
// expired, 403 when the session is fine but the role may not act.
// Routes guarded here have no ownership dimension; use
// [edgetill.Engine.HasPermission] directly for owner-scoped resources.
func RequirePermission(engine *edgetill.Engine, resource string, action edgetill.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if err := engine.RequirePermission(r.Context(), resource, action, nil); err != nil {
				if errors.Is(err, edgetill.ErrAuthExpired) {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
