package app

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/optica-erp/optica-erp/internal/platform/httpx"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// responseWriterWithCommit flushes the session to Redis before the first
// byte of the response is written, so Set-Cookie headers are never lost.
type responseWriterWithCommit struct {
	http.ResponseWriter
	r         *http.Request
	sessions  *shared.SessionManager
	sess      *shared.Session
	logger    *slog.Logger
	committed bool
}

func (w *responseWriterWithCommit) commit() {
	if w.committed {
		return
	}
	w.committed = true
	if err := w.sessions.Commit(w.r.Context(), w.ResponseWriter, w.r, w.sess); err != nil {
		w.logger.Error("session commit failed", "error", err)
	}
}

func (w *responseWriterWithCommit) WriteHeader(statusCode int) {
	w.commit()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWithCommit) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

// sessionMiddleware loads the session for every request and commits it on
// the way out.
func sessionMiddleware(sessions *shared.SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Load(r.Context(), r)
			if err != nil {
				logger.Error("session load failed", "error", err)
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}

			ctx := shared.ContextWithSession(r.Context(), sess)
			r = r.WithContext(ctx)

			cw := &responseWriterWithCommit{
				ResponseWriter: w,
				r:              r,
				sessions:       sessions,
				sess:           sess,
				logger:         logger,
			}
			next.ServeHTTP(cw, r)
			cw.commit()
		})
	}
}

// RequireAuth rejects requests without a valid logged-in session and
// resolves the session into an Actor on the context.
func RequireAuth(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}

			userID, err := uuid.Parse(sess.User())
			if err != nil {
				logger.Warn("session holds malformed user id", "error", err)
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}

			role := shared.Role(sess.Role())
			if role != shared.RoleManager && role != shared.RoleUser {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}

			actor := shared.Actor{UserID: userID, Role: role}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
		})
	}
}

// RequireManager restricts a route subtree to manager accounts.
func RequireManager() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok || actor.Role != shared.RoleManager {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "manager role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
