package handler

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/database"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, users *store.UserStore, email, role string) *model.User {
	t.Helper()
	u, err := users.Create(email, strings.Split(email, "@")[0], "x", role)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

// as returns req authenticated as u via a cookie session.
func as(req *http.Request, u *model.User) *http.Request {
	ctx := auth.WithAuth(req.Context(), auth.AuthContext{UserID: u.ID, Role: u.Role, SessionID: 1})
	return req.WithContext(ctx)
}

func jsonReq(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withID(req *http.Request, name string, id int64) *http.Request {
	req.SetPathValue(name, strconv.FormatInt(id, 10))
	return req
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestDecodeJSONRejectsTrailingData(t *testing.T) {
	rec := httptest.NewRecorder()
	req := jsonReq("POST", "/", `{"a":1}{"b":2}`)
	var v map[string]int
	if err := decodeJSON(rec, req, &v); err == nil {
		t.Error("expected error for trailing data")
	}
}

func TestParsePathID(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"1", true},
		{"42", true},
		{"0", false},
		{"-3", false},
		{"abc", false},
		{"", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		req.SetPathValue("id", tt.value)
		_, err := parseIDParam(req)
		if (err == nil) != tt.ok {
			t.Errorf("parseIDParam(%q) err = %v, want ok=%v", tt.value, err, tt.ok)
		}
	}
}

func TestCookieConfig(t *testing.T) {
	rec := httptest.NewRecorder()
	CookieConfig{Secure: true}.set(rec, "c", "v", 0)
	CookieConfig{Secure: true}.clear(rec, "d")
	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("cookies = %d, want 2", len(cookies))
	}
	for _, c := range cookies {
		if !c.Secure || !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
			t.Errorf("cookie %s attributes = %+v", c.Name, c)
		}
	}
	if cookies[1].MaxAge >= 0 {
		t.Errorf("cleared cookie MaxAge = %d, want negative", cookies[1].MaxAge)
	}
}
