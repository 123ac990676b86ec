package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:    1,
		Role:      "manager",
		SessionID: 3,
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.UserID != 1 {
		t.Errorf("UserID = %d, want 1", got.UserID)
	}
	if got.Role != "manager" {
		t.Errorf("Role = %q, want %q", got.Role, "manager")
	}
	if got.SessionID != 3 {
		t.Errorf("SessionID = %d, want 3", got.SessionID)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestUserID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: 7})
	if UserID(ctx) != 7 {
		t.Errorf("UserID = %d, want 7", UserID(ctx))
	}
	if UserID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}

func TestIsAdmin(t *testing.T) {
	if !IsAdmin(WithAuth(context.Background(), AuthContext{Role: "admin"})) {
		t.Error("expected IsAdmin = true for admin role")
	}
	if IsAdmin(WithAuth(context.Background(), AuthContext{Role: "member"})) {
		t.Error("expected IsAdmin = false for member role")
	}
	if IsAdmin(context.Background()) {
		t.Error("expected IsAdmin = false for missing context")
	}
}

func TestAdminContext(t *testing.T) {
	ctx := WithAdmin(context.Background(), AdminContext{UserID: 4, Username: "root"})
	got, ok := AdminFromContext(ctx)
	if !ok {
		t.Fatal("expected AdminContext in context")
	}
	if got.Username != "root" || got.UserID != 4 {
		t.Errorf("got = %+v, want root/4", got)
	}

	// the two identities do not leak into each other
	if _, ok := FromContext(ctx); ok {
		t.Error("admin context should not satisfy FromContext")
	}
	if _, ok := AdminFromContext(WithAuth(context.Background(), AuthContext{UserID: 1})); ok {
		t.Error("user context should not satisfy AdminFromContext")
	}
}
