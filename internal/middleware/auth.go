package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/store"
	"github.com/dukerupert/huddle/internal/token"
)

// SessionCookieName is the main application session cookie.
const SessionCookieName = "huddle_session"

// RequireAuth accepts either a main session cookie or an
// "Authorization: Bearer" API token and populates AuthContext. Failures
// answer 401 JSON.
func RequireAuth(sessionStore *store.SessionStore, userStore *store.UserStore, tokens *token.Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := authenticate(r, sessionStore, userStore, tokens, logger)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, sessionStore *store.SessionStore, userStore *store.UserStore, tokens *token.Manager, logger *slog.Logger) (auth.AuthContext, bool) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		sess, err := sessionStore.GetByToken(cookie.Value)
		if err != nil {
			logger.Error("lookup session", "error", err)
			return auth.AuthContext{}, false
		}
		if sess != nil {
			u, err := userStore.GetByID(sess.UserID)
			if err != nil {
				logger.Error("lookup session user", "error", err)
				return auth.AuthContext{}, false
			}
			if u != nil {
				return auth.AuthContext{UserID: u.ID, Role: u.Role, SessionID: sess.ID}, true
			}
		}
	}

	raw := BearerToken(r)
	if raw == "" {
		return auth.AuthContext{}, false
	}
	claims, err := tokens.VerifyAPI(raw)
	if err != nil {
		logger.Debug("api token rejected", "error", err)
		return auth.AuthContext{}, false
	}
	// role comes from the database so demotions apply before the token expires
	u, err := userStore.GetByID(claims.UserID)
	if err != nil {
		logger.Error("lookup token user", "error", err)
		return auth.AuthContext{}, false
	}
	if u == nil {
		return auth.AuthContext{}, false
	}
	return auth.AuthContext{UserID: u.ID, Role: u.Role}, true
}

// BearerToken returns the token from an "Authorization: Bearer" header, or "".
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, raw, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(raw)
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, target string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
