package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/huddle/internal/handler"
	"github.com/dukerupert/huddle/internal/janitor"
	"github.com/dukerupert/huddle/internal/middleware"
	"github.com/dukerupert/huddle/internal/notify"
	"github.com/dukerupert/huddle/internal/password"
	"github.com/dukerupert/huddle/internal/pubsub"
	"github.com/dukerupert/huddle/internal/push"
	"github.com/dukerupert/huddle/internal/reset"
	"github.com/dukerupert/huddle/internal/storage"
	"github.com/dukerupert/huddle/internal/store"
	"github.com/dukerupert/huddle/internal/token"
	ws "github.com/dukerupert/huddle/internal/websocket"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

// Deps are the long-lived services the server is built from.
type Deps struct {
	DB            *sql.DB
	Tokens        *token.Manager
	Hasher        *password.Hasher
	Mailer        reset.Sender
	PubSub        *pubsub.Manager
	NotifyChannel string
	Push          *push.Service
	Bucket        *storage.Bucket
	Cookies       handler.CookieConfig

	// OriginPatterns are extra hosts allowed to open websockets.
	OriginPatterns []string
	Logger         *slog.Logger
}

type Server struct {
	db     *sql.DB
	hub    *ws.Hub
	tokens *token.Manager

	adminAuthH    *handler.AdminAuthHandler
	adminPortalH  *handler.AdminPortalHandler
	authH         *handler.AuthHandler
	resetH        *handler.PasswordResetHandler
	userH         *handler.UserHandler
	teamH         *handler.TeamHandler
	calendarH     *handler.CalendarEventHandler
	uploadH       *handler.UploadHandler
	notificationH *handler.NotificationHandler
	pushH         *handler.PushHandler

	userStore    *store.UserStore
	sessionStore *store.SessionStore
	resetSvc     *reset.Service
	rateLimiter  *middleware.RateLimiter
	relay        *notify.Relay
	origins      []string
	logger       *slog.Logger
}

func New(d Deps) *Server {
	logger := d.Logger
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(d.DB)
	sessionStore := store.NewSessionStore(d.DB)
	adminStore := store.NewAdminStore(d.DB)
	tokenStore := store.NewVerificationTokenStore(d.DB)
	teamStore := store.NewTeamStore(d.DB)
	eventStore := store.NewEventStore(d.DB)
	uploadStore := store.NewUploadStore(d.DB)
	pushStore := store.NewPushStore(d.DB)

	resetSvc := reset.NewService(userStore, sessionStore, tokenStore, d.Hasher, d.Mailer, logger)

	dispatcher := notify.NewDispatcher(hub, d.Push, pushStore, logger)
	notifier := notify.NewNotifier(d.PubSub, d.NotifyChannel, dispatcher, logger)
	relay := notify.NewRelay(d.PubSub, d.NotifyChannel, dispatcher, logger)

	portal := handler.NewAdminPortalHandler(userStore, teamStore, eventStore, uploadStore, sessionStore, logger)

	return &Server{
		db:     d.DB,
		hub:    hub,
		tokens: d.Tokens,

		adminAuthH:    handler.NewAdminAuthHandler(adminStore, d.Hasher, d.Tokens, d.Cookies, portal, logger),
		adminPortalH:  portal,
		authH:         handler.NewAuthHandler(userStore, sessionStore, d.Hasher, d.Tokens, d.Cookies, logger),
		resetH:        handler.NewPasswordResetHandler(resetSvc, logger),
		userH:         handler.NewUserHandler(userStore, logger),
		teamH:         handler.NewTeamHandler(teamStore, userStore, logger),
		calendarH:     handler.NewCalendarEventHandler(eventStore, teamStore, logger),
		uploadH:       handler.NewUploadHandler(uploadStore, d.Bucket, logger),
		notificationH: handler.NewNotificationHandler(notifier, teamStore, userStore, logger),
		pushH:         handler.NewPushHandler(pushStore, d.Push, logger),

		userStore:    userStore,
		sessionStore: sessionStore,
		resetSvc:     resetSvc,
		rateLimiter:  middleware.NewRateLimiter(),
		relay:        relay,
		origins:      d.OriginPatterns,
		logger:       logger,
	}
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Relay returns the notification relay; the caller runs it.
func (s *Server) Relay() *notify.Relay {
	return s.relay
}

// CleanupTasks returns the periodic cleanup jobs for the janitor.
func (s *Server) CleanupTasks() []janitor.Task {
	return []janitor.Task{
		{Name: "sessions", Run: s.sessionStore.DeleteExpired},
		{Name: "verification_tokens", Run: s.resetSvc.Cleanup},
		{Name: "rate_limiter", Run: func() (int64, error) {
			return int64(s.rateLimiter.Cleanup()), nil
		}},
	}
}

// Router returns the full handler chain: request logging, then the admin
// guard, then the route table.
func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Admin auth (public, guard passthrough)
	outerMux.HandleFunc("GET /administrator/login", s.adminPortalH.LoginPage)
	outerMux.HandleFunc("POST /administrator/login", s.rateLimited("admin_login", s.adminAuthH.Login))
	outerMux.HandleFunc("POST /api/admin/login", s.rateLimited("admin_login", s.adminAuthH.Login))
	outerMux.HandleFunc("POST /api/admin/logout", s.adminAuthH.Logout)
	outerMux.HandleFunc("POST /admin/logout", s.adminAuthH.Logout)
	outerMux.HandleFunc("GET /api/admin/session", s.adminAuthH.Session)

	// Admin portal (guarded by AdminGuard)
	outerMux.HandleFunc("GET /admin/{$}", s.adminPortalH.Dashboard)
	outerMux.HandleFunc("GET /admin/dashboard", s.adminPortalH.Dashboard)
	outerMux.HandleFunc("GET /api/admin/users", s.adminPortalH.ListUsers)
	outerMux.HandleFunc("PUT /api/admin/users/{id}/role", s.adminPortalH.UpdateUserRole)
	outerMux.HandleFunc("DELETE /api/admin/users/{id}", s.adminPortalH.DeleteUser)
	outerMux.HandleFunc("GET /api/admin/stats", s.adminPortalH.Stats)

	// Main auth (public)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimited("register", s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimited("login", s.authH.Login))
	outerMux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	outerMux.HandleFunc("GET /api/auth/session", s.authH.Session)
	outerMux.HandleFunc("POST /api/auth/forgot-password", s.rateLimited("forgot_password", s.resetH.ForgotPassword))
	outerMux.HandleFunc("POST /api/auth/verify-reset-code", s.rateLimited("verify_reset_code", s.resetH.VerifyResetCode))
	outerMux.HandleFunc("POST /api/auth/reset-password", s.rateLimited("reset_password", s.resetH.ResetPassword))

	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Everything else needs a main session or API token
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore, s.tokens, s.logger)
	outerMux.Handle("/", authMiddleware(protectedMux))

	guarded := middleware.AdminGuard(s.tokens, s.logger)(outerMux)
	return middleware.RequestLogger(s.logger.With("component", "http"))(guarded)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// rateLimited limits h per client IP. Each bucket counts separately.
func (s *Server) rateLimited(bucket string, h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ByIP(bucket), authRateLimit, authRateWindow)
	return rl(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/token", s.authH.APIToken)

	// Directory
	mux.HandleFunc("GET /api/users", s.userH.Search)
	mux.HandleFunc("PUT /api/users/me", s.userH.UpdateMe)
	mux.HandleFunc("GET /api/users/{id}", s.userH.Get)

	// Teams
	mux.HandleFunc("POST /api/teams", s.teamH.Create)
	mux.HandleFunc("GET /api/teams", s.teamH.List)
	mux.HandleFunc("GET /api/teams/{id}/members", s.teamH.Members)
	mux.HandleFunc("POST /api/teams/{id}/members", s.teamH.AddMember)
	mux.HandleFunc("DELETE /api/teams/{id}/members/{user_id}", s.teamH.RemoveMember)

	// Calendar event API routes
	mux.HandleFunc("POST /api/events", s.calendarH.Create)
	mux.HandleFunc("GET /api/events", s.calendarH.List)
	mux.HandleFunc("GET /api/events/{id}", s.calendarH.Get)
	mux.HandleFunc("PUT /api/events/{id}", s.calendarH.Update)
	mux.HandleFunc("DELETE /api/events/{id}", s.calendarH.Delete)

	// Uploads
	mux.HandleFunc("POST /api/uploads", s.uploadH.Create)
	mux.HandleFunc("GET /api/uploads", s.uploadH.List)
	mux.HandleFunc("GET /api/uploads/{id}", s.uploadH.Download)
	mux.HandleFunc("DELETE /api/uploads/{id}", s.uploadH.Delete)

	// Notifications
	mux.HandleFunc("POST /api/notifications", s.notificationH.Create)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.origins, s.logger))

	// Push notification API routes
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
}
