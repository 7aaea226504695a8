package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"calendar-app/internal/bus"
	"calendar-app/internal/config"
	appLog "calendar-app/internal/log"
	"calendar-app/internal/notify"
	"calendar-app/internal/replica"
	"calendar-app/internal/storage"
)

// closers releases connections in reverse order of opening.
type closers []io.Closer

func (cs *closers) add(c any) {
	if cl, ok := c.(io.Closer); ok {
		*cs = append(*cs, cl)
	}
}

func (cs closers) Close() {
	for i := len(cs) - 1; i >= 0; i-- {
		if err := cs[i].Close(); err != nil {
			appLog.Warn("close failed", "error", err.Error())
		}
	}
}

func openStorage(cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case "memory":
		appLog.Info("Using memory storage")
		return storage.NewMemoryStorage(), nil
	case "file":
		appLog.Info("Using file storage", "dir", cfg.Dir)
		return storage.NewFileStorage(cfg.Dir), nil
	case "sqlite":
		appLog.Info("Using SQLite storage", "path", cfg.SQLitePath)
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o700); err != nil {
			return nil, err
		}
		return storage.NewSQLiteStorage(cfg.SQLitePath)
	case "mongo":
		appLog.Info("Using MongoDB storage", "database", cfg.MongoDB)
		return storage.NewMongoStorage(cfg.MongoURI, cfg.MongoDB)
	default:
		return nil, fmt.Errorf("invalid storage type %q: valid options are memory, file, sqlite, mongo", cfg.Type)
	}
}

func newRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// openMedium opens the replica medium. shared requires a medium another
// process can read.
func openMedium(cfg config.ReplicaConfig, shared bool) (replica.Medium, error) {
	switch cfg.Type {
	case "memory":
		if shared {
			return nil, fmt.Errorf("replica type memory cannot be shared between processes, use file or redis")
		}
		return replica.NewMemoryMedium(), nil
	case "file":
		appLog.Info("Using file replica", "dir", cfg.Dir)
		return replica.NewFileMedium(cfg.Dir), nil
	case "redis":
		rdb, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		appLog.Info("Using Redis replica", "prefix", cfg.Prefix)
		return replica.NewRedisMedium(rdb, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("invalid replica type %q", cfg.Type)
	}
}

func openBus(cfg config.BusConfig) (bus.Bus, error) {
	switch cfg.Type {
	case "chan":
		return bus.NewChanBus(), nil
	case "redis":
		rdb, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		appLog.Info("Using Redis bus", "prefix", cfg.ChannelPrefix)
		return bus.NewRedisBus(rdb, cfg.ChannelPrefix), nil
	default:
		return nil, fmt.Errorf("invalid bus type %q", cfg.Type)
	}
}

func newNotifier(cfg config.NotificationsConfig) notify.Notifier {
	if cfg.Notifier == "exec" {
		return notify.NewExecNotifier(cfg.Command)
	}
	return notify.LogNotifier{}
}

func newOpener(cfg config.NotificationsConfig) notify.Opener {
	if cfg.Opener == "exec" {
		return notify.ExecOpener{}
	}
	return notify.LogOpener{}
}

func newPermissions(cfg config.NotificationsConfig) *notify.Permissions {
	initial, err := notify.ParsePermission(cfg.Permission)
	if err != nil {
		appLog.Warn("unknown permission, using default", "permission", cfg.Permission)
	}
	answer, err := notify.ParsePermission(cfg.Prompt)
	if err != nil {
		appLog.Warn("unknown prompt answer, prompts will be dismissed", "prompt", cfg.Prompt)
	}
	return notify.NewPermissions(initial, notify.Answer(answer))
}
