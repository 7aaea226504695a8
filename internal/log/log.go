package log

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	logger     *logrus.Logger
	loggerOnce sync.Once
)

// initLogger initializes the global logger to write to stderr with timestamps.
func initLogger() {
	loggerOnce.Do(func() {
		logger = logrus.New()
		logger.SetOutput(os.Stderr)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000000Z07:00",
		})
		logger.SetLevel(logrus.InfoLevel)
	})
}

func SetLevel(l Level) {
	initLogger()
	logger.SetLevel(toLogrus(l))
}

// ParseLevel maps a config string to a Level. Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelDebug, "debug":
		return LevelDebug
	case LevelWarn, "warn":
		return LevelWarn
	case LevelError, "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetOutput redirects log output; tests use it to silence or capture lines.
func SetOutput(w io.Writer) {
	initLogger()
	logger.SetOutput(w)
}

// AddHook registers a logrus hook on the global logger. Calling the
// returned func disables the hook again.
func AddHook(h logrus.Hook) (remove func()) {
	initLogger()
	sw := &switchHook{hook: h}
	sw.on.Store(true)
	logger.AddHook(sw)
	return func() { sw.on.Store(false) }
}

type switchHook struct {
	hook logrus.Hook
	on   atomic.Bool
}

func (s *switchHook) Levels() []logrus.Level { return s.hook.Levels() }

func (s *switchHook) Fire(e *logrus.Entry) error {
	if !s.on.Load() {
		return nil
	}
	return s.hook.Fire(e)
}

// CronLogger adapts the package logger to robfig/cron's Logger interface.
type CronLogger struct{}

func (CronLogger) Info(msg string, kv ...interface{}) { Debug("cron: "+msg, kv...) }

func (CronLogger) Error(err error, msg string, kv ...interface{}) { Error("cron: "+msg, err, kv...) }

func Debug(msg string, kv ...any) {
	initLogger()
	logger.WithFields(fields(kv...)).Debug(msg)
}

func Info(msg string, kv ...any) {
	initLogger()
	logger.WithFields(fields(kv...)).Info(msg)
}

func Warn(msg string, kv ...any) {
	initLogger()
	logger.WithFields(fields(kv...)).Warn(msg)
}

func Error(msg string, err error, kv ...any) {
	initLogger()
	logger.WithFields(fields(kv...)).WithError(err).Error(msg)
}

func toLogrus(l Level) logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func fields(kv ...any) logrus.Fields {
	f := logrus.Fields{}
	// Expect kv as pairs: key, value, key, value, ...
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		f[key] = kv[i+1]
	}
	// If odd number of args, last one is ignored.
	return f
}
