package store

import (
	"testing"
	"time"

	"github.com/Destaw-dev/listali-sub002/internal/database"
)

func setupSessionTestDB(t *testing.T) (*SessionStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSessionStore(db), NewUserStore(db)
}

func TestSessionLifecycle(t *testing.T) {
	ss, us := setupSessionTestDB(t)
	user, err := us.Create("alice@example.com", "Alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	sess, err := ss.Create(user.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("expected generated token")
	}
	if !sess.ExpiresAt.After(time.Now()) {
		t.Error("expected future expiry")
	}

	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.UserID != user.ID {
		t.Fatalf("session = %+v", got)
	}

	if err := ss.Delete(sess.Token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	got, err = ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get deleted session: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestSessionTokensAreUnique(t *testing.T) {
	ss, us := setupSessionTestDB(t)
	user, _ := us.Create("alice@example.com", "Alice", "hash")

	a, _ := ss.Create(user.ID)
	b, _ := ss.Create(user.ID)
	if a.Token == b.Token {
		t.Error("expected distinct tokens per session")
	}
}

func TestDeleteExpired(t *testing.T) {
	ss, us := setupSessionTestDB(t)
	user, _ := us.Create("alice@example.com", "Alice", "hash")
	sess, _ := ss.Create(user.ID)

	// Nothing expired yet.
	n, err := ss.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 0 {
		t.Errorf("removed %d sessions, want 0", n)
	}
	got, _ := ss.GetByToken(sess.Token)
	if got == nil {
		t.Error("live session was removed")
	}
}
