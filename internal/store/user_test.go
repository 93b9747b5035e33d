package store

import (
	"database/sql"
	"testing"
	"time"

	"hanki/internal/database"
)

func setupUserTestDB(t *testing.T) (*UserStore, *sql.DB) {
	t.Helper()
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserStore(db), db
}

func TestUserCreateAndGet(t *testing.T) {
	us, _ := setupUserTestDB(t)

	user, err := us.Create("kim@example.com", "hash", "김할머니")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.ID == "" {
		t.Error("expected generated id")
	}
	if user.Email != "kim@example.com" {
		t.Errorf("email = %q", user.Email)
	}
	if user.Nickname != "김할머니" {
		t.Errorf("nickname = %q", user.Nickname)
	}
	if user.Streak != 0 {
		t.Errorf("streak = %d, want 0", user.Streak)
	}
	if user.LastCheckIn != nil {
		t.Errorf("last check-in = %v, want nil", user.LastCheckIn)
	}
	if user.IsAdmin {
		t.Error("new user should not be admin")
	}

	byEmail, err := us.GetByEmail("kim@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail == nil || byEmail.ID != user.ID {
		t.Errorf("get by email = %+v", byEmail)
	}

	missing, err := us.GetByID("no-such-id")
	if err != nil {
		t.Fatalf("get missing user: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing user, got %+v", missing)
	}
}

func TestUserDuplicateEmail(t *testing.T) {
	us, _ := setupUserTestDB(t)

	if _, err := us.Create("dup@example.com", "hash", "a"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := us.Create("dup@example.com", "hash", "b"); err == nil {
		t.Error("duplicate email should fail")
	}
}

func TestUserUpdateSettings(t *testing.T) {
	us, _ := setupUserTestDB(t)

	user, err := us.Create("a@example.com", "hash", "before")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	updated, err := us.UpdateSettings(user.ID, "after", "010-1234-5678")
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if updated.Nickname != "after" {
		t.Errorf("nickname = %q", updated.Nickname)
	}
	if updated.GuardianPhone != "010-1234-5678" {
		t.Errorf("guardian phone = %q", updated.GuardianPhone)
	}
	if !updated.HasGuardian() {
		t.Error("expected HasGuardian after update")
	}
}

func TestPushSubscriptionLifecycle(t *testing.T) {
	us, _ := setupUserTestDB(t)

	user, err := us.Create("push@example.com", "hash", "p")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := us.SetPushSubscription(user.ID, "https://push.example/abc", "p256dh-key", "auth-secret"); err != nil {
		t.Fatalf("set subscription: %v", err)
	}

	subscribed, err := us.ListWithPushSubscription()
	if err != nil {
		t.Fatalf("list subscribed: %v", err)
	}
	if len(subscribed) != 1 || subscribed[0].ID != user.ID {
		t.Fatalf("subscribed = %+v", subscribed)
	}
	if !subscribed[0].HasPushSubscription() {
		t.Error("expected HasPushSubscription")
	}

	if err := us.ClearPushSubscriptionByEndpoint("https://push.example/abc"); err != nil {
		t.Fatalf("clear by endpoint: %v", err)
	}
	subscribed, _ = us.ListWithPushSubscription()
	if len(subscribed) != 0 {
		t.Errorf("expected no subscribed users, got %d", len(subscribed))
	}
}

func TestListUnresponsive(t *testing.T) {
	us, db := setupUserTestDB(t)

	never, _ := us.Create("never@example.com", "hash", "never")
	us.UpdateSettings(never.ID, "never", "010-1111-2222")

	stale, _ := us.Create("stale@example.com", "hash", "stale")
	us.UpdateSettings(stale.ID, "stale", "010-3333-4444")

	fresh, _ := us.Create("fresh@example.com", "hash", "fresh")
	us.UpdateSettings(fresh.ID, "fresh", "010-5555-6666")

	// silent past the threshold but no guardian phone
	us.Create("noguardian@example.com", "hash", "lone")

	now := time.Now().UTC()
	setLastCheckIn(t, db, stale.ID, now.Add(-72*time.Hour))
	setLastCheckIn(t, db, fresh.ID, now.Add(-1*time.Hour))

	unresponsive, err := us.ListUnresponsive(now.Add(-48 * time.Hour))
	if err != nil {
		t.Fatalf("list unresponsive: %v", err)
	}

	got := make(map[string]bool)
	for _, u := range unresponsive {
		got[u.ID] = true
	}
	if len(got) != 2 || !got[never.ID] || !got[stale.ID] {
		t.Errorf("unresponsive ids = %v, want {never, stale}", got)
	}
}

func setLastCheckIn(t *testing.T, db *sql.DB, userID string, at time.Time) {
	t.Helper()
	if _, err := db.Exec(`UPDATE users SET last_check_in = ? WHERE id = ?`, at, userID); err != nil {
		t.Fatalf("set last check-in: %v", err)
	}
}
