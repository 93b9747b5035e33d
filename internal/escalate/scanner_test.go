package escalate

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"hanki/internal/database"
	"hanki/internal/sms"
	"hanki/internal/store"
)

type fakeSender struct {
	mu    sync.Mutex
	calls []string // phone numbers, in order
	fail  bool
}

func (f *fakeSender) Send(ctx context.Context, phone, message string) sms.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, phone)
	return sms.Result{Success: !f.fail, Provider: "none"}
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type scannerFixture struct {
	scanner  *Scanner
	sender   *fakeSender
	users    *store.UserStore
	checkIns *store.CheckInStore
	alerts   *store.AlertStore
	db       *sql.DB
}

func setupScanner(t *testing.T, fail bool) *scannerFixture {
	t.Helper()
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &scannerFixture{
		sender:   &fakeSender{fail: fail},
		users:    store.NewUserStore(db),
		checkIns: store.NewCheckInStore(db),
		alerts:   store.NewAlertStore(db),
		db:       db,
	}
	f.scanner = NewScanner(
		Config{ThresholdHours: 48, SendRetries: 1, RetryBase: time.Millisecond},
		f.users, f.checkIns, f.alerts, f.sender, nil,
		slog.New(slog.DiscardHandler),
	)
	return f
}

func (f *scannerFixture) addUser(t *testing.T, email, guardian string, lastCheckIn *time.Time) string {
	t.Helper()
	u, err := f.users.Create(email, "hash", strings.SplitN(email, "@", 2)[0])
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if guardian != "" {
		if _, err := f.users.UpdateSettings(u.ID, u.Nickname, guardian); err != nil {
			t.Fatalf("set guardian: %v", err)
		}
	}
	if lastCheckIn != nil {
		if _, err := f.db.Exec(`UPDATE users SET last_check_in = ? WHERE id = ?`, lastCheckIn.UTC(), u.ID); err != nil {
			t.Fatalf("set last check-in: %v", err)
		}
	}
	return u.ID
}

func TestScanAlertsSilentUsers(t *testing.T) {
	f := setupScanner(t, false)
	now := time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC)

	old := now.Add(-50 * time.Hour)
	recent := now.Add(-2 * time.Hour)
	silentID := f.addUser(t, "silent@example.com", "010-1111-2222", &old)
	f.addUser(t, "active@example.com", "010-3333-4444", &recent)
	f.addUser(t, "lone@example.com", "", &old)

	summary, err := f.scanner.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Considered != 1 || summary.Suppressed != 0 || summary.Succeeded != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if f.sender.callCount() != 1 {
		t.Fatalf("sender called %d times, want 1", f.sender.callCount())
	}
	if f.sender.calls[0] != "010-1111-2222" {
		t.Errorf("alerted %q, want guardian phone", f.sender.calls[0])
	}

	alerts, _ := f.alerts.ListRecent(10)
	if len(alerts) != 1 {
		t.Fatalf("alert rows = %d, want 1", len(alerts))
	}
	if alerts[0].UserID != silentID || !alerts[0].Success {
		t.Errorf("alert = %+v", alerts[0])
	}
	if !strings.Contains(alerts[0].Message, "48시간") {
		t.Errorf("message = %q, want threshold hours mentioned", alerts[0].Message)
	}

	// the unanswered window shows up in the user's history
	history, _ := f.checkIns.ListByUser(silentID, 10)
	if len(history) != 1 || !history[0].IsMissed {
		t.Errorf("history = %+v, want one missed entry", history)
	}
}

func TestScanSuppressesSameDayRepeat(t *testing.T) {
	f := setupScanner(t, false)
	now := time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC)

	old := now.Add(-50 * time.Hour)
	f.addUser(t, "silent@example.com", "010-1111-2222", &old)

	if _, err := f.scanner.Run(context.Background(), now); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := f.scanner.Run(context.Background(), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	// the user is still past the threshold, so the scan sees them, but the
	// morning alert suppresses a second dispatch
	if summary.Considered != 1 || summary.Suppressed != 1 {
		t.Errorf("summary = %+v, want considered 1 suppressed 1", summary)
	}
	if summary.Succeeded != 0 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want nothing dispatched", summary)
	}
	if f.sender.callCount() != 1 {
		t.Errorf("sender called %d times, want 1", f.sender.callCount())
	}
}

func TestScanFailedDeliveryStillSuppresses(t *testing.T) {
	f := setupScanner(t, true)
	now := time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC)

	old := now.Add(-50 * time.Hour)
	f.addUser(t, "silent@example.com", "010-1111-2222", &old)

	summary, err := f.scanner.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Failed != 1 {
		t.Errorf("failed = %d, want 1", summary.Failed)
	}
	// retry path: initial attempt plus one retry
	if f.sender.callCount() != 2 {
		t.Errorf("sender called %d times, want 2 with retry", f.sender.callCount())
	}

	alerts, _ := f.alerts.ListRecent(10)
	if len(alerts) != 1 || alerts[0].Success {
		t.Fatalf("alerts = %+v, want one failed row", alerts)
	}

	summary, err = f.scanner.Run(context.Background(), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Suppressed != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v, failed attempt should still suppress the same day", summary)
	}
}

func TestScanNextDayAlertsAgain(t *testing.T) {
	f := setupScanner(t, false)
	now := time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC)

	old := now.Add(-50 * time.Hour)
	f.addUser(t, "silent@example.com", "010-1111-2222", &old)

	f.scanner.Run(context.Background(), now)
	summary, err := f.scanner.Run(context.Background(), now.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("next-day run: %v", err)
	}
	if summary.Considered != 1 || summary.Suppressed != 0 {
		t.Errorf("summary = %+v, want a fresh dispatch on the next day", summary)
	}
}

func TestManualAlert(t *testing.T) {
	f := setupScanner(t, false)
	now := time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC)

	recent := now.Add(-time.Hour)
	id := f.addUser(t, "fresh@example.com", "010-1111-2222", &recent)

	// responsive user, but an admin can still force an alert
	alert, err := f.scanner.Alert(context.Background(), id, now)
	if err != nil {
		t.Fatalf("manual alert: %v", err)
	}
	if alert == nil || !alert.Success {
		t.Fatalf("alert = %+v", alert)
	}

	// and a second manual alert the same day is not suppressed
	if _, err := f.scanner.Alert(context.Background(), id, now); err != nil {
		t.Fatalf("repeat manual alert: %v", err)
	}
	if f.sender.callCount() != 2 {
		t.Errorf("sender called %d times, want 2", f.sender.callCount())
	}
}

func TestManualAlertErrors(t *testing.T) {
	f := setupScanner(t, false)
	now := time.Now()

	if _, err := f.scanner.Alert(context.Background(), "no-such-id", now); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}

	id := f.addUser(t, "lone@example.com", "", nil)
	if _, err := f.scanner.Alert(context.Background(), id, now); !errors.Is(err, ErrNoGuardian) {
		t.Errorf("err = %v, want ErrNoGuardian", err)
	}
}
