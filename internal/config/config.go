// Package config loads the environment-provided configuration. A missing
// .env file is not an error; every value has a workable default so the
// binary runs with zero configuration in local-only mode.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"hanki/internal/push"
	"hanki/internal/sms"
)

type Config struct {
	Port     string
	LogLevel string
	// LogFormat selects "text" or "json" output.
	LogFormat string

	// DBPath is the sqlite file. Empty selects the in-memory local-only
	// mode: fully functional, nothing persisted across restarts.
	DBPath string

	// CronSecret guards the /api/jobs endpoints. Empty (local mode) allows
	// all callers.
	CronSecret string

	ThresholdHours int

	Aligo  sms.AligoConfig
	Twilio sms.TwilioConfig
	Push   push.Config

	S3 S3Config
	// BackupPassphrase encrypts database snapshots. Backups stay disabled
	// without it.
	BackupPassphrase string
}

// S3Config holds the optional backup target. Backups are disabled unless a
// bucket is configured.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Load reads configuration from the environment, first merging a .env file
// if one exists.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:           envOr("HANKI_PORT", "8080"),
		LogLevel:       envOr("HANKI_LOG_LEVEL", "info"),
		LogFormat:      envOr("HANKI_LOG_FORMAT", "text"),
		DBPath:         os.Getenv("HANKI_DB_PATH"),
		CronSecret:     os.Getenv("HANKI_CRON_SECRET"),
		ThresholdHours: envIntOr("HANKI_THRESHOLD_HOURS", 48),
		Aligo: sms.AligoConfig{
			APIKey: os.Getenv("ALIGO_API_KEY"),
			UserID: os.Getenv("ALIGO_USER_ID"),
			Sender: os.Getenv("ALIGO_SENDER"),
		},
		Twilio: sms.TwilioConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
		},
		Push: push.Config{
			VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
			Subscriber:      os.Getenv("VAPID_SUBSCRIBER"),
		},
		S3: S3Config{
			Endpoint:  os.Getenv("HANKI_S3_ENDPOINT"),
			Bucket:    os.Getenv("HANKI_S3_BUCKET"),
			Region:    envOr("HANKI_S3_REGION", "auto"),
			AccessKey: os.Getenv("HANKI_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("HANKI_S3_SECRET_KEY"),
		},
		BackupPassphrase: os.Getenv("HANKI_BACKUP_PASSPHRASE"),
	}
}

// LocalOnly reports whether the degraded in-memory mode is active.
func (c Config) LocalOnly() bool {
	return c.DBPath == ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
