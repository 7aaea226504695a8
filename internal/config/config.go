package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// StorageConfig selects the primary durable storage of the foreground.
type StorageConfig struct {
	// Type is one of memory, file, sqlite, mongo.
	Type       string `yaml:"type" env:"CALENDAR_STORAGE"`
	Dir        string `yaml:"dir" env:"CALENDAR_STORAGE_DIR"`
	SQLitePath string `yaml:"sqlite_path" env:"CALENDAR_SQLITE_PATH"`
	MongoURI   string `yaml:"mongo_uri" env:"CALENDAR_MONGO_URI"`
	MongoDB    string `yaml:"mongo_db" env:"CALENDAR_MONGO_DB"`
}

// ReplicaConfig selects the medium the background worker reads.
type ReplicaConfig struct {
	// Type is one of memory, file, redis. memory only works when the
	// worker runs inside the serve process.
	Type     string `yaml:"type" env:"CALENDAR_REPLICA"`
	Dir      string `yaml:"dir" env:"CALENDAR_REPLICA_DIR"`
	RedisURL string `yaml:"redis_url" env:"CALENDAR_REPLICA_REDIS_URL"`
	Prefix   string `yaml:"prefix" env:"CALENDAR_REPLICA_PREFIX"`
}

// BusConfig selects how the two contexts exchange messages.
type BusConfig struct {
	// Type is chan (in-process) or redis.
	Type          string `yaml:"type" env:"CALENDAR_BUS"`
	RedisURL      string `yaml:"redis_url" env:"CALENDAR_BUS_REDIS_URL"`
	ChannelPrefix string `yaml:"channel_prefix" env:"CALENDAR_BUS_PREFIX"`
}

type ForegroundConfig struct {
	// Interval between foreground reminder passes.
	Interval time.Duration `yaml:"interval" env:"CALENDAR_FOREGROUND_INTERVAL"`
}

type BackgroundConfig struct {
	// Enabled runs the worker inside serve.
	Enabled  bool   `yaml:"enabled" env:"CALENDAR_BACKGROUND_ENABLED"`
	Schedule string `yaml:"schedule" env:"CALENDAR_BACKGROUND_SCHEDULE"`
	Task     string `yaml:"task" env:"CALENDAR_BACKGROUND_TASK"`
	// StaleAfter is how old a foreground heartbeat may be before the
	// worker stops deferring to it.
	StaleAfter time.Duration `yaml:"stale_after" env:"CALENDAR_BACKGROUND_STALE_AFTER"`
}

type NotificationsConfig struct {
	// Notifier is log or exec.
	Notifier string `yaml:"notifier" env:"CALENDAR_NOTIFIER"`
	Command  string `yaml:"command" env:"CALENDAR_NOTIFY_COMMAND"`
	Icon     string `yaml:"icon" env:"CALENDAR_NOTIFY_ICON"`
	// Permission is the initial state: default, granted or denied.
	Permission string `yaml:"permission" env:"CALENDAR_NOTIFY_PERMISSION"`
	// Prompt is the answer given when permission is requested.
	Prompt string `yaml:"prompt" env:"CALENDAR_NOTIFY_PROMPT"`
	// Opener is log or exec; it opens a window on notification click.
	Opener  string `yaml:"opener" env:"CALENDAR_OPENER"`
	OpenURL string `yaml:"open_url" env:"CALENDAR_OPEN_URL"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of the API.
	Listen string `yaml:"listen" env:"CALENDAR_LISTEN"`
	// Timezone is the IANA zone of the single wall clock; empty or "Local"
	// means the host zone.
	Timezone string `yaml:"timezone" env:"CALENDAR_TIMEZONE"`
	LogLevel string `yaml:"log_level" env:"CALENDAR_LOG_LEVEL"`

	Storage       StorageConfig       `yaml:"storage"`
	Replica       ReplicaConfig       `yaml:"replica"`
	Bus           BusConfig           `yaml:"bus"`
	Foreground    ForegroundConfig    `yaml:"foreground"`
	Background    BackgroundConfig    `yaml:"background"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8080",
		Timezone: "Local",
		LogLevel: "info",
		Storage: StorageConfig{
			Type:       "file",
			Dir:        "data",
			SQLitePath: "data/calendar.db",
			MongoURI:   "mongodb://localhost:27017",
			MongoDB:    "calendar_app",
		},
		Replica: ReplicaConfig{
			Type:   "memory",
			Dir:    "data/replica",
			Prefix: "calendar:",
		},
		Bus: BusConfig{
			Type:          "chan",
			ChannelPrefix: "calendar:",
		},
		Foreground: ForegroundConfig{Interval: 60 * time.Second},
		Background: BackgroundConfig{
			Enabled:    true,
			Schedule:   "@every 1m",
			Task:       "calendar-reminders",
			StaleAfter: 2 * time.Minute,
		},
		Notifications: NotificationsConfig{
			Notifier:   "log",
			Command:    "notify-send",
			Icon:       "images/android-chrome-512x512.png",
			Permission: "granted",
			Prompt:     "granted",
			Opener:     "log",
			OpenURL:    "http://127.0.0.1:8080/",
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}

	switch c.Storage.Type {
	case "memory", "file", "sqlite", "mongo":
	default:
		c.Storage.Type = d.Storage.Type
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = d.Storage.Dir
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = filepath.Join(c.Storage.Dir, "calendar.db")
	}
	if c.Storage.MongoURI == "" {
		c.Storage.MongoURI = d.Storage.MongoURI
	}
	if c.Storage.MongoDB == "" {
		c.Storage.MongoDB = d.Storage.MongoDB
	}

	switch c.Replica.Type {
	case "memory", "file", "redis":
	default:
		c.Replica.Type = d.Replica.Type
	}
	if c.Replica.Dir == "" {
		c.Replica.Dir = filepath.Join(c.Storage.Dir, "replica")
	}
	if c.Replica.Prefix == "" {
		c.Replica.Prefix = d.Replica.Prefix
	}

	switch c.Bus.Type {
	case "chan", "redis":
	default:
		c.Bus.Type = d.Bus.Type
	}
	if c.Bus.ChannelPrefix == "" {
		c.Bus.ChannelPrefix = d.Bus.ChannelPrefix
	}
	if c.Bus.RedisURL == "" {
		c.Bus.RedisURL = c.Replica.RedisURL
	}

	if c.Foreground.Interval <= 0 {
		c.Foreground.Interval = d.Foreground.Interval
	}
	if c.Background.Schedule == "" {
		c.Background.Schedule = d.Background.Schedule
	}
	if c.Background.Task == "" {
		c.Background.Task = d.Background.Task
	}
	if c.Background.StaleAfter <= 0 {
		c.Background.StaleAfter = 2 * c.Foreground.Interval
	}

	n := &c.Notifications
	switch n.Notifier {
	case "log", "exec":
	default:
		n.Notifier = d.Notifications.Notifier
	}
	if n.Command == "" {
		n.Command = d.Notifications.Command
	}
	if n.Icon == "" {
		n.Icon = d.Notifications.Icon
	}
	if n.Permission == "" {
		n.Permission = d.Notifications.Permission
	}
	if n.Prompt == "" {
		n.Prompt = d.Notifications.Prompt
	}
	switch n.Opener {
	case "log", "exec":
	default:
		n.Opener = d.Notifications.Opener
	}
	if n.OpenURL == "" {
		n.OpenURL = "http://" + c.Listen + "/"
	}
}

// Validate reports combinations that cannot work.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Replica.Type == "redis" && c.Replica.RedisURL == "" {
		return errors.New("replica.redis_url is required for the redis replica")
	}
	if c.Bus.Type == "redis" && c.Bus.RedisURL == "" {
		return errors.New("bus.redis_url is required for the redis bus")
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist a default config is written with 0600
//     perms and used.
//   - Otherwise the YAML is read into Config.
//   - CALENDAR_* environment variables override file values.
//   - Missing values are normalized to defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: create default config file.
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cleanenv.UpdateEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes cfg atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calendar-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
