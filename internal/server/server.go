package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"hanki/internal/backup"
	"hanki/internal/checkin"
	"hanki/internal/config"
	"hanki/internal/escalate"
	"hanki/internal/handler"
	"hanki/internal/middleware"
	"hanki/internal/push"
	"hanki/internal/reminder"
	"hanki/internal/sms"
	"hanki/internal/store"
	ws "hanki/internal/websocket"
)

type Server struct {
	db  *sql.DB
	hub *ws.Hub

	authH     *handler.AuthHandler
	checkInH  *handler.CheckInHandler
	smsH      *handler.SMSHandler
	pushH     *handler.PushHandler
	settingsH *handler.SettingsHandler
	adminH    *handler.AdminHandler
	jobsH     *handler.JobsHandler
	backupH   *handler.BackupHandler

	sessionStore *store.SessionStore
	userStore    *store.UserStore
	rateLimiter  *middleware.RateLimiter

	scanner       *escalate.Scanner
	reminders     *reminder.Scheduler
	backupManager *backup.Manager

	cronSecret string
	logger     *slog.Logger
}

func New(cfg config.Config, db *sql.DB, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	checkInStore := store.NewCheckInStore(db)
	alertStore := store.NewAlertStore(db)
	notifStore := store.NewNotificationLogStore(db)
	sessionStore := store.NewSessionStore(db)

	recorder := checkin.NewRecorder(db, checkInStore, logger.With("component", "checkin"))
	dispatcher := sms.NewDispatcher(cfg.Aligo, cfg.Twilio, logger.With("component", "sms"))
	pushSvc := push.NewService(cfg.Push)

	scanner := escalate.NewScanner(
		escalate.Config{ThresholdHours: cfg.ThresholdHours},
		userStore, checkInStore, alertStore, dispatcher, hub,
		logger.With("component", "escalate"),
	)
	reminders := reminder.NewScheduler(
		reminder.Config{},
		userStore, checkInStore, notifStore, pushSvc,
		logger.With("component", "reminder"),
	)
	backupMgr := backup.NewManager(backup.Config{
		Endpoint:   cfg.S3.Endpoint,
		Bucket:     cfg.S3.Bucket,
		Region:     cfg.S3.Region,
		AccessKey:  cfg.S3.AccessKey,
		SecretKey:  cfg.S3.SecretKey,
		DBPath:     cfg.DBPath,
		Passphrase: cfg.BackupPassphrase,
	}, db, logger.With("component", "backup"))

	return &Server{
		db:            db,
		hub:           hub,
		authH:         handler.NewAuthHandler(userStore, sessionStore, logger.With("component", "auth")),
		checkInH:      handler.NewCheckInHandler(recorder, checkInStore, hub, logger.With("component", "checkin_handler")),
		smsH:          handler.NewSMSHandler(dispatcher, logger.With("component", "sms_handler")),
		pushH:         handler.NewPushHandler(pushSvc, userStore, logger.With("component", "push_handler")),
		settingsH:     handler.NewSettingsHandler(userStore, logger.With("component", "settings")),
		adminH:        handler.NewAdminHandler(userStore, alertStore, scanner, cfg.ThresholdHours, logger.With("component", "admin")),
		jobsH:         handler.NewJobsHandler(scanner, reminders, logger.With("component", "jobs")),
		backupH:       handler.NewBackupHandler(backupMgr, logger.With("component", "backup_handler")),
		sessionStore:  sessionStore,
		userStore:     userStore,
		rateLimiter:   middleware.NewRateLimiter(),
		scanner:       scanner,
		reminders:     reminders,
		backupManager: backupMgr,
		cronSecret:    cfg.CronSecret,
		logger:        logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Scanner returns the escalation scanner for lifecycle management.
func (s *Server) Scanner() *escalate.Scanner {
	return s.scanner
}

// Reminders returns the reminder scheduler for lifecycle management.
func (s *Server) Reminders() *reminder.Scheduler {
	return s.reminders
}

// BackupManager returns the backup manager for lifecycle management.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.Handle("POST /api/auth/signup", s.rateLimited(s.authH.Signup))
	outerMux.Handle("POST /api/auth/login", s.rateLimited(s.authH.Login))
	outerMux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Cron-triggered jobs guarded by shared secret rather than a session
	cronKey := middleware.RequireCronKey(s.cronSecret)
	outerMux.Handle("POST /api/jobs/check-unresponsive", cronKey(http.HandlerFunc(s.jobsH.CheckUnresponsive)))
	outerMux.Handle("POST /api/jobs/send-reminder", cronKey(http.HandlerFunc(s.jobsH.SendReminder)))

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, 10, time.Minute)(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.settingsH.Me)
	mux.HandleFunc("PUT /api/settings", s.settingsH.Update)

	mux.HandleFunc("POST /api/check-in", s.checkInH.Submit)
	mux.HandleFunc("GET /api/check-in", s.checkInH.Today)
	mux.HandleFunc("GET /api/check-ins", s.checkInH.History)

	mux.HandleFunc("POST /api/sms/send", s.smsH.Send)

	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscribe", s.pushH.Unsubscribe)

	// Admin routes
	mux.Handle("GET /api/admin/users", middleware.RequireAdmin(http.HandlerFunc(s.adminH.Users)))
	mux.Handle("GET /api/admin/alerts", middleware.RequireAdmin(http.HandlerFunc(s.adminH.Alerts)))
	mux.Handle("POST /api/admin/alerts/{userID}", middleware.RequireAdmin(http.HandlerFunc(s.adminH.TriggerAlert)))
	mux.Handle("GET /api/admin/backup", middleware.RequireAdmin(http.HandlerFunc(s.backupH.Status)))
	mux.Handle("POST /api/admin/backup", middleware.RequireAdmin(http.HandlerFunc(s.backupH.Trigger)))

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
