package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/database"
	"github.com/dukerupert/huddle/internal/store"
	"github.com/dukerupert/huddle/internal/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTokens(t *testing.T) *token.Manager {
	t.Helper()
	tm, err := token.NewManager(testSecret)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	return tm
}

func setupAuthMiddlewareDB(t *testing.T) (*store.SessionStore, *store.UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewSessionStore(db), store.NewUserStore(db)
}

func unreachable(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	})
}

func TestRequireAuthNoCredentials(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)
	handler := RequireAuth(ss, us, newTestTokens(t), discardLogger())(unreachable(t))

	req := httptest.NewRequest("GET", "/api/users", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthInvalidCookie(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)
	handler := RequireAuth(ss, us, newTestTokens(t), discardLogger())(unreachable(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "invalid-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidSession(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)

	u, _ := us.Create("alice@example.com", "Alice", "", "manager")
	sess, _ := ss.Create(u.ID)

	var gotAC auth.AuthContext
	handler := RequireAuth(ss, us, newTestTokens(t), discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected AuthContext in request context")
		}
		gotAC = ac
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotAC.UserID != u.ID {
		t.Errorf("UserID = %d, want %d", gotAC.UserID, u.ID)
	}
	if gotAC.Role != "manager" {
		t.Errorf("Role = %q, want %q", gotAC.Role, "manager")
	}
	if gotAC.SessionID != sess.ID {
		t.Errorf("SessionID = %d, want %d", gotAC.SessionID, sess.ID)
	}
}

func TestRequireAuthBearerToken(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)
	tm := newTestTokens(t)

	u, _ := us.Create("alice@example.com", "Alice", "", "")
	raw, _, err := tm.IssueAPI(token.APIIdentity{UserID: u.ID, Email: u.Email, Role: "admin"})
	if err != nil {
		t.Fatalf("issue api token: %v", err)
	}

	var gotAC auth.AuthContext
	handler := RequireAuth(ss, us, tm, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAC, _ = auth.FromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotAC.UserID != u.ID {
		t.Errorf("UserID = %d, want %d", gotAC.UserID, u.ID)
	}
	// role is read from the database, not the token
	if gotAC.Role != "member" {
		t.Errorf("Role = %q, want %q", gotAC.Role, "member")
	}
	if gotAC.SessionID != 0 {
		t.Errorf("SessionID = %d, want 0", gotAC.SessionID)
	}
}

func TestRequireAuthRejectsAdminTokenAsBearer(t *testing.T) {
	ss, us := setupAuthMiddlewareDB(t)
	tm := newTestTokens(t)

	u, _ := us.Create("alice@example.com", "Alice", "", "")
	raw, _, _ := tm.IssueAdmin(token.AdminIdentity{UserID: u.ID, Username: "alice"})

	handler := RequireAuth(ss, us, tm, discardLogger())(unreachable(t))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := BearerToken(req); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
