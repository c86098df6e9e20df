package middleware

import (
	"context"
	"net/http"

	goAuthClient "github.com/MrEthical07/goAuthClient"
)

type snapshotContextKey struct{}

// SnapshotFromContext returns the session snapshot stored by RequireSession.
func SnapshotFromContext(ctx context.Context) (goAuthClient.SessionSnapshot, bool) {
	snap, ok := ctx.Value(snapshotContextKey{}).(goAuthClient.SessionSnapshot)
	return snap, ok
}

// RequireSession rejects requests with 401 unless engine holds an
// authenticated session. The snapshot is passed on in the request context.
func RequireSession(engine *goAuthClient.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			snap := engine.Snapshot()
			if !snap.IsAuthenticated {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), snapshotContextKey{}, snap)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
