package background

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"calendar-app/internal/bus"
)

// component tags worker log lines; only tagged lines are forwarded.
const component = "worker"

// forwardHook sends worker log lines to the foreground as SW_LOG.
type forwardHook struct {
	bus bus.Bus
}

func newForwardHook(b bus.Bus) *forwardHook {
	return &forwardHook{bus: b}
}

func (h *forwardHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *forwardHook) Fire(e *logrus.Entry) error {
	if e.Data["component"] != component {
		return nil
	}
	prefix := "[SW] "
	if e.Level <= logrus.WarnLevel {
		prefix = "[SW WARN] "
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// Delivery is best effort; a lost diagnostic line is not an error.
	_ = h.bus.Publish(ctx, bus.Foreground, bus.Log{Msg: prefix + e.Message})
	return nil
}
