// Package reminder nudges users who have not checked in yet.
//
// The job runs hourly but only acts inside a fixed local lunch window.
// Within the window each eligible user is sampled independently, so
// notifications spread across the window's hours instead of all firing
// when it opens.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hanki/internal/model"
	"hanki/internal/push"
	"hanki/internal/store"
)

// Pusher delivers one web push notification. Satisfied by *push.Service.
type Pusher interface {
	Send(user *model.User, payload push.Payload) error
}

// Summary aggregates one reminder run.
type Summary struct {
	Skipped bool `json:"skipped"`
	Hour    int  `json:"hour"`
	Total   int  `json:"total"`
	Sent    int  `json:"sent"`
}

// Config holds scheduler tuning.
type Config struct {
	WindowStartHour int           // first active local hour, default 11
	WindowEndHour   int           // last active local hour (inclusive), default 13
	Probability     float64       // per-user sampling probability, default 0.33
	Concurrency     int           // max parallel sends, default 8
	Interval        time.Duration // ticker period, default 1h
}

func (c *Config) applyDefaults() {
	if c.WindowStartHour == 0 && c.WindowEndHour == 0 {
		c.WindowStartHour = 11
		c.WindowEndHour = 13
	}
	if c.Probability <= 0 {
		c.Probability = 0.33
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
}

// Scheduler runs the check-in reminder job.
type Scheduler struct {
	mu       sync.RWMutex
	cfg      Config
	users    *store.UserStore
	checkIns *store.CheckInStore
	logs     *store.NotificationLogStore
	pusher   Pusher
	sample   func() float64
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(cfg Config, users *store.UserStore, checkIns *store.CheckInStore, logs *store.NotificationLogStore, pusher Pusher, logger *slog.Logger) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		cfg:      cfg,
		users:    users,
		checkIns: checkIns,
		logs:     logs,
		pusher:   pusher,
		sample:   rand.Float64,
		logger:   logger,
	}
}

// Start begins the hourly reminder loop.
func (s *Scheduler) Start(ctx context.Context) {
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
					s.logger.Error("reminder run", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the reminder loop.
func (s *Scheduler) Stop() {
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

// Run executes one reminder pass at the given time. Outside the notification
// window it reports Skipped without touching the store.
func (s *Scheduler) Run(ctx context.Context, now time.Time) (*Summary, error) {
	hour := now.Hour()
	if hour < s.cfg.WindowStartHour || hour > s.cfg.WindowEndHour {
		return &Summary{Skipped: true, Hour: hour}, nil
	}

	subscribed, err := s.users.ListWithPushSubscription()
	if err != nil {
		return nil, fmt.Errorf("list subscribed users: %w", err)
	}

	checkedIn, err := s.checkIns.UserIDsRespondedSince(startOfDay(now))
	if err != nil {
		return nil, fmt.Errorf("list checked-in users: %w", err)
	}

	var sampled []model.User
	for _, u := range subscribed {
		if checkedIn[u.ID] {
			continue
		}
		if s.sample() < s.cfg.Probability {
			sampled = append(sampled, u)
		}
	}

	summary := &Summary{Hour: hour, Total: len(sampled)}

	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, u := range sampled {
		g.Go(func() error {
			ok := s.send(&u, now)

			mu.Lock()
			if ok {
				summary.Sent++
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	s.logger.Info("reminder run complete", "hour", hour, "total", summary.Total, "sent", summary.Sent)
	return summary, nil
}

// send pushes the reminder to one user and logs the attempt. Expired
// subscriptions are dropped so the user stops being selected.
func (s *Scheduler) send(u *model.User, now time.Time) bool {
	payload := push.Payload{
		Title: "한끼했니? 🍳",
		Body:  fmt.Sprintf("%s님, 오늘 밥은 드셨나요?", u.Nickname),
		Icon:  "/icons/icon-192x192.png",
		Tag:   "check-in-reminder",
		URL:   "/",
	}

	err := s.pusher.Send(u, payload)
	if err != nil {
		if errors.Is(err, push.ErrExpired) {
			if err := s.users.ClearPushSubscriptionByEndpoint(u.PushEndpoint); err != nil {
				s.logger.Error("drop expired subscription", "user_id", u.ID, "error", err)
			}
		} else {
			s.logger.Warn("reminder push failed", "user_id", u.ID, "error", err)
		}
	}

	if logErr := s.logs.Create(u.ID, model.NotifTypeReminder, now, err == nil); logErr != nil {
		s.logger.Error("log reminder", "user_id", u.ID, "error", logErr)
	}

	return err == nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
