package store

import "testing"

func TestUploadLifecycle(t *testing.T) {
	db := openTestDB(t)
	us := NewUserStore(db)
	ups := NewUploadStore(db)

	alice, _ := us.Create("alice@example.com", "Alice", "", "")
	bob, _ := us.Create("bob@example.com", "Bob", "", "")

	up, err := ups.Create(alice.ID, "uploads/a/1", "notes.txt", "text/plain", 12)
	if err != nil {
		t.Fatalf("create upload: %v", err)
	}
	if up.Filename != "notes.txt" || up.Size != 12 || up.ObjectKey != "uploads/a/1" {
		t.Errorf("upload = %+v", up)
	}

	other, err := ups.GetByID(up.ID, bob.ID)
	if err != nil {
		t.Fatalf("get as other user: %v", err)
	}
	if other != nil {
		t.Error("expected nil for another user's upload")
	}

	ups.Create(alice.ID, "uploads/a/2", "b.png", "image/png", 40)
	list, err := ups.ListByUser(alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Filename != "b.png" {
		t.Errorf("first = %q, want newest b.png", list[0].Filename)
	}

	if err := ups.Delete(up.ID, alice.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	n, _ := ups.Count()
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestUploadDuplicateKey(t *testing.T) {
	db := openTestDB(t)
	us := NewUserStore(db)
	ups := NewUploadStore(db)
	alice, _ := us.Create("alice@example.com", "Alice", "", "")

	ups.Create(alice.ID, "same", "a", "text/plain", 1)
	if _, err := ups.Create(alice.ID, "same", "b", "text/plain", 1); err == nil {
		t.Fatal("expected unique violation on object key")
	}
}
