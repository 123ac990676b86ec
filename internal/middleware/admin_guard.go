package middleware

import (
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/token"
)

// AdminCookieName carries the admin session token.
const AdminCookieName = "admin-session"

// AdminLoginPath is where unauthenticated portal requests are sent.
const AdminLoginPath = "/administrator/login"

// AdminZone is the guard's classification of a request path.
type AdminZone int

const (
	ZonePassthrough AdminZone = iota
	ZoneGuardedUI
	ZoneGuardedAPI
)

func (z AdminZone) String() string {
	switch z {
	case ZoneGuardedUI:
		return "guarded-ui"
	case ZoneGuardedAPI:
		return "guarded-api"
	default:
		return "passthrough"
	}
}

var adminPublicSegments = map[string]bool{
	"login":   true,
	"logout":  true,
	"session": true,
}

// ClassifyAdminPath decides whether p needs an admin session. Prefixes match
// whole segments, so /administrator/login is not under /admin.
func ClassifyAdminPath(p string) AdminZone {
	p = path.Clean("/" + p)
	segs := strings.Split(strings.Trim(p, "/"), "/")

	var zone AdminZone
	var rest []string
	switch {
	case len(segs) >= 1 && segs[0] == "admin":
		zone, rest = ZoneGuardedUI, segs[1:]
	case len(segs) >= 2 && segs[0] == "api" && segs[1] == "admin":
		zone, rest = ZoneGuardedAPI, segs[2:]
	default:
		return ZonePassthrough
	}

	if len(rest) > 0 && adminPublicSegments[rest[0]] {
		return ZonePassthrough
	}
	for _, s := range rest {
		if s == "auth" {
			return ZonePassthrough
		}
	}
	return zone
}

// AdminToken returns the admin session token from the cookie, falling back
// to the Authorization header.
func AdminToken(r *http.Request) string {
	if c, err := r.Cookie(AdminCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return BearerToken(r)
}

// AdminGuard protects the admin portal and admin API. Passthrough paths are
// forwarded untouched. Guarded paths need a valid admin token; API paths
// answer 403 JSON otherwise and UI paths redirect to the login page.
func AdminGuard(tm *token.Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "admin_guard")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// ServeMux matches on escaped segments, so "1%2Fauth" must
			// stay one segment here too.
			zone := ClassifyAdminPath(r.URL.EscapedPath())
			if zone == ZonePassthrough {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tm.VerifyAdmin(AdminToken(r))
			if err != nil {
				logger.Debug("admin request rejected", "path", r.URL.Path, "zone", zone.String(), "error", err)
				if zone == ZoneGuardedAPI {
					writeError(w, http.StatusForbidden, "forbidden")
					return
				}
				redirectToLogin(w, r, AdminLoginPath)
				return
			}

			ctx := auth.WithAdmin(r.Context(), auth.AdminContext{UserID: claims.UserID, Username: claims.Username})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
