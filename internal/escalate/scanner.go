// Package escalate notifies guardian contacts about unresponsive users.
//
// An hourly scan selects users silent past the threshold, drops anyone
// already alerted today, and fans the remaining guardian SMS sends out
// across a bounded worker group. Failures are isolated per user: every
// attempt is logged as an EmergencyAlert row, and any same-day row
// (successful or not) suppresses the next scan for that user.
package escalate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"hanki/internal/model"
	"hanki/internal/sms"
	"hanki/internal/store"
	"hanki/internal/websocket"
)

// ErrNoGuardian is returned by Alert for a user without a guardian phone.
var ErrNoGuardian = errors.New("user has no guardian phone")

// ErrUserNotFound is returned by Alert for an unknown user id.
var ErrUserNotFound = errors.New("user not found")

// Sender dispatches one SMS. Satisfied by *sms.Dispatcher.
type Sender interface {
	Send(ctx context.Context, phone, message string) sms.Result
}

// Summary aggregates one scan run. Considered counts every user past the
// silence threshold; Suppressed counts those skipped for an existing
// same-day alert; the remainder were dispatched and land in Succeeded or
// Failed.
type Summary struct {
	Considered int `json:"considered"`
	Suppressed int `json:"suppressed"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
}

// Config holds scanner tuning.
type Config struct {
	ThresholdHours int           // silence window before escalation, default 48
	Concurrency    int           // max parallel SMS sends, default 8
	SendRetries    uint64        // extra attempts per send, default 2
	RetryBase      time.Duration // backoff base, default 1s
	Interval       time.Duration // ticker period, default 1h
}

func (c *Config) applyDefaults() {
	if c.ThresholdHours <= 0 {
		c.ThresholdHours = 48
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.SendRetries == 0 {
		c.SendRetries = 2
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Second
	}
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
}

// Scanner runs the unresponsive-user escalation job.
type Scanner struct {
	mu       sync.RWMutex
	cfg      Config
	users    *store.UserStore
	checkIns *store.CheckInStore
	alerts   *store.AlertStore
	sender   Sender
	hub      *websocket.Hub
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScanner(cfg Config, users *store.UserStore, checkIns *store.CheckInStore, alerts *store.AlertStore, sender Sender, hub *websocket.Hub, logger *slog.Logger) *Scanner {
	cfg.applyDefaults()
	return &Scanner{
		cfg:      cfg,
		users:    users,
		checkIns: checkIns,
		alerts:   alerts,
		sender:   sender,
		hub:      hub,
		logger:   logger,
	}
}

// Start begins the hourly scan loop.
func (s *Scanner) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Run(ctx, time.Now()); err != nil {
					s.logger.Error("escalation scan", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the scan loop.
func (s *Scanner) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Run executes one scan at the given time and returns the aggregate outcome.
// Worker failures never abort sibling sends; the only errors returned are
// from the candidate queries themselves.
func (s *Scanner) Run(ctx context.Context, now time.Time) (*Summary, error) {
	threshold := now.Add(-time.Duration(s.cfg.ThresholdHours) * time.Hour)

	candidates, err := s.users.ListUnresponsive(threshold)
	if err != nil {
		return nil, fmt.Errorf("scan unresponsive users: %w", err)
	}

	alerted, err := s.alerts.AlertedUserIDsSince(startOfDay(now))
	if err != nil {
		return nil, fmt.Errorf("filter alerted users: %w", err)
	}

	var toAlert []model.User
	for _, u := range candidates {
		if !alerted[u.ID] {
			toAlert = append(toAlert, u)
		}
	}

	summary := &Summary{
		Considered: len(candidates),
		Suppressed: len(candidates) - len(toAlert),
	}
	if len(toAlert) == 0 {
		return summary, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, u := range toAlert {
		g.Go(func() error {
			_, ok := s.dispatch(gctx, &u, now)

			if err := s.checkIns.InsertMissed(u.ID, now); err != nil {
				s.logger.Error("record missed check-in", "user_id", u.ID, "error", err)
			}

			mu.Lock()
			if ok {
				summary.Succeeded++
			} else {
				summary.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	s.logger.Info("escalation scan complete",
		"considered", summary.Considered, "suppressed", summary.Suppressed,
		"succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary, nil
}

// Alert is the manual override: dispatch for one user immediately, skipping
// the unresponsive scan and the same-day suppression filter.
func (s *Scanner) Alert(ctx context.Context, userID string, now time.Time) (*model.EmergencyAlert, error) {
	u, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	if !u.HasGuardian() {
		return nil, ErrNoGuardian
	}

	alert, _ := s.dispatch(ctx, u, now)
	return alert, nil
}

// dispatch sends the guardian SMS with bounded retry and always logs an
// alert row. Returns the logged row and the final delivery outcome.
func (s *Scanner) dispatch(ctx context.Context, u *model.User, now time.Time) (*model.EmergencyAlert, bool) {
	message := fmt.Sprintf("[한끼했니] %s님이 %d시간 동안 응답하지 않았습니다. 확인이 필요합니다.",
		u.Nickname, s.cfg.ThresholdHours)

	var result sms.Result
	backoff := retry.WithMaxRetries(s.cfg.SendRetries, retry.NewExponential(s.cfg.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		result = s.sender.Send(ctx, u.GuardianPhone, message)
		if !result.Success {
			return retry.RetryableError(errors.New("sms delivery failed"))
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("guardian alert delivery failed",
			"user_id", u.ID, "provider", result.Provider)
	}

	alert, err := s.alerts.Create(u.ID, u.GuardianPhone, message, now, result.Success)
	if err != nil {
		s.logger.Error("log emergency alert", "user_id", u.ID, "error", err)
	}

	s.broadcast(websocket.Message{
		Type:   "emergency_alert",
		UserID: u.ID,
		Extra:  map[string]any{"success": result.Success, "provider": result.Provider},
	})

	return alert, result.Success
}

func (s *Scanner) broadcast(msg websocket.Message) {
	if s.hub != nil {
		s.hub.Broadcast(msg)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
