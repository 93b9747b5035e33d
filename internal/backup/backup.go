// Package backup uploads encrypted snapshots of the sqlite database to
// S3-compatible storage. Backups are disabled unless a bucket, credentials,
// and a passphrase are configured, and always disabled in the in-memory
// local-only mode.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

const keyPrefix = "backups/"

// Config holds backup manager configuration.
type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string

	// DBPath is the sqlite file to snapshot. Empty (in-memory mode)
	// disables backups.
	DBPath string

	// Passphrase encrypts every snapshot. Required.
	Passphrase string

	// ScheduleHour is the UTC hour of the daily run, default 3.
	ScheduleHour int

	// RetentionDays prunes older snapshots after each run, default 30.
	RetentionDays int
}

func (c *Config) applyDefaults() {
	if c.ScheduleHour <= 0 {
		c.ScheduleHour = 3
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.Region == "" {
		c.Region = "auto"
	}
}

// Status is a snapshot of the manager state.
type Status struct {
	Enabled    bool       `json:"enabled"`
	InProgress bool       `json:"inProgress"`
	LastBackup *time.Time `json:"lastBackup,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
}

// Manager runs the daily encrypted backup job.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	db     *sql.DB
	client s3Client
	logger *slog.Logger
	status Status

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	cfg.applyDefaults()
	m := &Manager{cfg: cfg, db: db, logger: logger}

	if cfg.Bucket != "" && cfg.AccessKey != "" && cfg.SecretKey != "" &&
		cfg.Passphrase != "" && cfg.DBPath != "" {
		m.client = newS3Client(cfg)
		m.status.Enabled = true
	}
	return m
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether backups are configured.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Enabled
}

// Status returns the current manager status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Start begins the daily backup loop. A no-op when backups are disabled.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if !m.status.Enabled {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now().UTC()
				if now.Hour() != m.cfg.ScheduleHour || now.Minute() != 0 {
					continue
				}
				if _, err := m.RunNow(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RunNow snapshots, encrypts, and uploads the database, then prunes
// snapshots past retention. Returns the uploaded object key.
func (m *Manager) RunNow(ctx context.Context) (string, error) {
	m.mu.Lock()
	if !m.status.Enabled {
		m.mu.Unlock()
		return "", fmt.Errorf("backups are not configured")
	}
	if m.status.InProgress {
		m.mu.Unlock()
		return "", fmt.Errorf("backup already in progress")
	}
	m.status.InProgress = true
	m.mu.Unlock()

	key, err := m.run(ctx)

	m.mu.Lock()
	m.status.InProgress = false
	if err != nil {
		m.status.LastError = err.Error()
	} else {
		now := time.Now().UTC()
		m.status.LastBackup = &now
		m.status.LastError = ""
	}
	m.mu.Unlock()

	return key, err
}

func (m *Manager) run(ctx context.Context) (string, error) {
	snapshot := filepath.Join(os.TempDir(), fmt.Sprintf("hanki-backup-%d.db", time.Now().UnixNano()))
	defer os.Remove(snapshot)

	// VACUUM INTO produces a consistent single-file copy regardless of WAL
	// state.
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return "", fmt.Errorf("snapshot database: %w", err)
	}

	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}

	encrypted, err := Encrypt(plaintext, m.cfg.Passphrase)
	if err != nil {
		return "", fmt.Errorf("encrypt snapshot: %w", err)
	}

	key := objectKey(time.Now().UTC())
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(encrypted),
		ContentLength: aws.Int64(int64(len(encrypted))),
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}

	m.logger.Info("backup uploaded", "key", key, "bytes", len(encrypted))

	if err := m.prune(ctx); err != nil {
		m.logger.Warn("prune old backups", "error", err)
	}
	return key, nil
}

// prune deletes snapshots older than the retention window. Ages come from
// the timestamp embedded in the object key, so retention survives bucket
// metadata quirks.
func (m *Manager) prune(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -m.cfg.RetentionDays)

	out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.cfg.Bucket),
		Prefix: aws.String(keyPrefix),
	})
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		ts, ok := parseObjectKey(key)
		if !ok || !ts.Before(cutoff) {
			continue
		}
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete old snapshot", "key", key, "error", err)
		}
	}
	return nil
}

const keyTimeFormat = "20060102T150405Z"

func objectKey(t time.Time) string {
	return fmt.Sprintf("%shanki-%s.db.enc", keyPrefix, t.Format(keyTimeFormat))
}

func parseObjectKey(key string) (time.Time, bool) {
	name := strings.TrimPrefix(key, keyPrefix)
	name = strings.TrimPrefix(name, "hanki-")
	name = strings.TrimSuffix(name, ".db.enc")
	ts, err := time.Parse(keyTimeFormat, name)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
