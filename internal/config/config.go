// Package config loads huddle's runtime settings from HUDDLE_* environment
// variables. Everything is read once at startup and treated as read-only.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dukerupert/huddle/internal/password"
	"github.com/dukerupert/huddle/internal/storage"
	"github.com/dukerupert/huddle/internal/token"
)

const envPrefix = "HUDDLE_"

// Config holds runtime settings for the huddle server.
//
// Optional integrations are disabled when their settings are empty:
//   - RedisURL: notification fan-out stays in-process.
//   - PostmarkToken/FromEmail: reset codes are logged instead of mailed.
//   - S3Bucket: upload endpoints answer 503.
//   - VAPIDPublicKey/VAPIDPrivateKey: web push is off.
//   - BackupPassphrase: huddle-admin backup refuses to run.
type Config struct {
	Port     string
	DBPath   string
	BaseURL  string
	Env      string
	LogLevel string

	SessionSecret []byte
	// GeneratedSecret is true when no secret was configured and a random
	// per-process one was made. Sessions do not survive a restart.
	GeneratedSecret bool
	BcryptCost      int

	RedisURL      string
	NotifyChannel string

	PostmarkToken string
	FromEmail     string

	S3Endpoint  string
	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string

	VAPIDPublicKey  string
	VAPIDPrivateKey string

	BackupPassphrase string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.Port = "8080"
	c.DBPath = "huddle.db"
	c.Env = "development"
	c.LogLevel = "info"
	c.BcryptCost = password.MinCost
	c.NotifyChannel = "huddle:notifications"
	c.S3Region = "us-east-1"
}

// Load reads the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom builds a Config from defaults overlaid with values from getenv.
func LoadFrom(getenv func(string) string) (*Config, error) {
	c := &Config{}
	c.LoadDefaults()

	get := func(key string) string {
		return strings.TrimSpace(getenv(envPrefix + key))
	}
	set := func(dst *string, key string) {
		if v := get(key); v != "" {
			*dst = v
		}
	}

	set(&c.Port, "PORT")
	set(&c.DBPath, "DB_PATH")
	set(&c.Env, "ENV")
	set(&c.LogLevel, "LOG_LEVEL")
	set(&c.RedisURL, "REDIS_URL")
	set(&c.NotifyChannel, "NOTIFY_CHANNEL")
	set(&c.PostmarkToken, "POSTMARK_TOKEN")
	set(&c.FromEmail, "FROM_EMAIL")
	set(&c.S3Endpoint, "S3_ENDPOINT")
	set(&c.S3Bucket, "S3_BUCKET")
	set(&c.S3Region, "S3_REGION")
	set(&c.S3AccessKey, "S3_ACCESS_KEY")
	set(&c.S3SecretKey, "S3_SECRET_KEY")
	set(&c.VAPIDPublicKey, "VAPID_PUBLIC_KEY")
	set(&c.VAPIDPrivateKey, "VAPID_PRIVATE_KEY")

	c.BaseURL = get("BASE_URL")
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:" + c.Port
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if v := get("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse %sBCRYPT_COST: %w", envPrefix, err)
		}
		c.BcryptCost = cost
	}

	c.BackupPassphrase = getenv(envPrefix + "BACKUP_PASSPHRASE")

	// the secret is not trimmed; whitespace is part of it
	if v := getenv(envPrefix + "SESSION_SECRET"); v != "" {
		c.SessionSecret = []byte(v)
	} else if !c.Production() {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		c.SessionSecret = secret
		c.GeneratedSecret = true
	}

	return c, nil
}

// Production reports whether HUDDLE_ENV is "production".
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// EmailEnabled reports whether Postmark delivery is configured.
func (c *Config) EmailEnabled() bool {
	return c.PostmarkToken != "" && c.FromEmail != ""
}

// StorageEnabled reports whether an upload bucket is configured.
func (c *Config) StorageEnabled() bool {
	return c.S3Bucket != ""
}

// Storage returns the bucket settings.
func (c *Config) Storage() storage.Config {
	return storage.Config{
		Endpoint:  c.S3Endpoint,
		Bucket:    c.S3Bucket,
		Region:    c.S3Region,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
	}
}

// PushEnabled reports whether VAPID keys are configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	var errs []error
	if len(c.SessionSecret) < token.MinSecretLength {
		errs = append(errs, fmt.Errorf("%sSESSION_SECRET must be at least %d bytes", envPrefix, token.MinSecretLength))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("port must not be empty"))
	} else if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("invalid port %q", c.Port))
	}
	if c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("bcrypt cost %d is above the maximum of 31", c.BcryptCost))
	}
	if c.StorageEnabled() && (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		errs = append(errs, fmt.Errorf("%sS3_ACCESS_KEY and %sS3_SECRET_KEY must be set together", envPrefix, envPrefix))
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		errs = append(errs, errors.New("both VAPID keys must be set to enable web push"))
	}
	return errors.Join(errs...)
}
