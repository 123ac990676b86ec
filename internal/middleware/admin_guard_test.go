package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/token"
)

func TestClassifyAdminPath(t *testing.T) {
	tests := []struct {
		path string
		want AdminZone
	}{
		{"/admin", ZoneGuardedUI},
		{"/admin/", ZoneGuardedUI},
		{"/admin/dashboard", ZoneGuardedUI},
		{"/admin/users/5", ZoneGuardedUI},
		{"/admin/login", ZonePassthrough},
		{"/admin/logout", ZonePassthrough},
		{"/admin/session", ZonePassthrough},
		{"/admin/auth/callback", ZonePassthrough},
		{"/admin/login/../dashboard", ZoneGuardedUI},
		{"//admin/dashboard", ZoneGuardedUI},
		{"/api/admin", ZoneGuardedAPI},
		{"/api/admin/users", ZoneGuardedAPI},
		{"/api/admin/stats", ZoneGuardedAPI},
		{"/api/admin/login", ZonePassthrough},
		{"/api/admin/logout", ZonePassthrough},
		{"/api/admin/session", ZonePassthrough},
		{"/api/admin/sso/auth", ZonePassthrough},
		{"/api/admin/users/login", ZoneGuardedAPI},
		{"/administrator/login", ZonePassthrough},
		{"/administrator", ZonePassthrough},
		{"/adminx", ZonePassthrough},
		{"/api/administrator", ZonePassthrough},
		{"/api/users", ZonePassthrough},
		{"/", ZonePassthrough},
		{"", ZonePassthrough},
	}
	for _, tt := range tests {
		if got := ClassifyAdminPath(tt.path); got != tt.want {
			t.Errorf("ClassifyAdminPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func guardedHandler(t *testing.T, tm *token.Manager) (http.Handler, *bool, *auth.AdminContext) {
	t.Helper()
	reached := false
	var got auth.AdminContext
	h := AdminGuard(tm, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		got, _ = auth.AdminFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return h, &reached, &got
}

func TestAdminGuardUIWithoutCookieRedirects(t *testing.T) {
	h, reached, _ := guardedHandler(t, newTestTokens(t))

	req := httptest.NewRequest("GET", "/admin/dashboard", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if *reached {
		t.Fatal("handler should not be reached")
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != AdminLoginPath {
		t.Errorf("Location = %q, want %q", loc, AdminLoginPath)
	}
}

func TestAdminGuardUIHTMXRedirect(t *testing.T) {
	h, reached, _ := guardedHandler(t, newTestTokens(t))

	req := httptest.NewRequest("GET", "/admin/dashboard", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if *reached {
		t.Fatal("handler should not be reached")
	}
	if got := rec.Header().Get("HX-Redirect"); got != AdminLoginPath {
		t.Errorf("HX-Redirect = %q, want %q", got, AdminLoginPath)
	}
}

func TestAdminGuardAPIWithoutCookieForbidden(t *testing.T) {
	h, reached, _ := guardedHandler(t, newTestTokens(t))

	req := httptest.NewRequest("GET", "/api/admin/users", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if *reached {
		t.Fatal("handler should not be reached")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "forbidden" {
		t.Errorf("error = %q, want %q", body["error"], "forbidden")
	}
}

func TestAdminGuardEscapedSegments(t *testing.T) {
	h, reached, _ := guardedHandler(t, newTestTokens(t))

	for _, p := range []string{"/api/admin/users/1%2Fauth/role", "/api/admin/users/1%2Fauth", "/api/admin/login%2F..%2Fusers"} {
		*reached = false
		req := httptest.NewRequest("PUT", p, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if *reached {
			t.Errorf("%s: handler reached without a token", p)
		}
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s: status = %d, want %d", p, rec.Code, http.StatusForbidden)
		}
	}
}

func TestAdminGuardPassthrough(t *testing.T) {
	h, reached, _ := guardedHandler(t, newTestTokens(t))

	for _, p := range []string{"/administrator/login", "/api/admin/login", "/api/admin/session", "/api/users"} {
		*reached = false
		req := httptest.NewRequest("POST", p, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if !*reached {
			t.Errorf("%s: handler not reached", p)
		}
	}
}

func TestAdminGuardValidCookie(t *testing.T) {
	tm := newTestTokens(t)
	h, reached, got := guardedHandler(t, tm)

	raw, _, _ := tm.IssueAdmin(token.AdminIdentity{UserID: 9, Username: "root"})
	req := httptest.NewRequest("GET", "/api/admin/users", nil)
	req.AddCookie(&http.Cookie{Name: AdminCookieName, Value: raw})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !*reached {
		t.Fatalf("handler not reached, status = %d", rec.Code)
	}
	if got.Username != "root" || got.UserID != 9 {
		t.Errorf("admin context = %+v, want root/9", *got)
	}
}

func TestAdminGuardBearerFallback(t *testing.T) {
	tm := newTestTokens(t)
	h, reached, _ := guardedHandler(t, tm)

	raw, _, _ := tm.IssueAdmin(token.AdminIdentity{UserID: 9, Username: "root"})
	req := httptest.NewRequest("GET", "/admin/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !*reached {
		t.Errorf("handler not reached, status = %d", rec.Code)
	}
}

func TestAdminGuardRejectsExpiredAndAPITokens(t *testing.T) {
	past := time.Now().Add(-token.AdminTTL - time.Minute)
	old, err := token.NewManager(testSecret, token.WithClock(func() time.Time { return past }))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	expired, _, _ := old.IssueAdmin(token.AdminIdentity{UserID: 1, Username: "root"})

	tm := newTestTokens(t)
	apiTok, _, _ := tm.IssueAPI(token.APIIdentity{UserID: 1, Email: "a@b.com", Role: "admin"})

	h, reached, _ := guardedHandler(t, tm)
	for name, raw := range map[string]string{"expired": expired, "api": apiTok, "garbage": "x.y.z"} {
		req := httptest.NewRequest("GET", "/api/admin/stats", nil)
		req.AddCookie(&http.Cookie{Name: AdminCookieName, Value: raw})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if *reached {
			t.Errorf("%s token reached handler", name)
		}
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s: status = %d, want %d", name, rec.Code, http.StatusForbidden)
		}
	}
}
