package participants

import (
	"context"
	"sync"

	"github.com/kilianp07/retailmarket/core/events"
	"github.com/kilianp07/retailmarket/infra/logger"
)

const keepMessages = 32

// UtilityConfig configures a LoggingUtility.
type UtilityConfig struct {
	Name string `json:"name"`
}

// LoggingUtility is a distribution utility that logs timeslots and the
// diagnostics it receives.
type LoggingUtility struct {
	id   string
	name string
	log  logger.Logger

	mu       sync.Mutex
	last     int64
	messages []string
}

// NewLoggingUtility creates a distribution utility module.
func NewLoggingUtility(id string, cfg UtilityConfig) *LoggingUtility {
	name := cfg.Name
	if name == "" {
		name = id
	}
	return &LoggingUtility{id: id, name: name, log: logger.New("distribution_utility")}
}

func (u *LoggingUtility) ID() string   { return u.id }
func (u *LoggingUtility) Name() string { return u.name }

func (u *LoggingUtility) OnTimeslot(_ context.Context, ev events.TimeslotChanged) error {
	u.mu.Lock()
	u.last = ev.ID()
	u.mu.Unlock()
	u.log.Debugw("timeslot", map[string]any{"module_id": u.id, "timeslot": ev.ID()})
	return nil
}

// Log records a diagnostic message, keeping the most recent ones.
func (u *LoggingUtility) Log(message string) {
	u.mu.Lock()
	u.messages = append(u.messages, message)
	if len(u.messages) > keepMessages {
		u.messages = u.messages[len(u.messages)-keepMessages:]
	}
	u.mu.Unlock()
	u.log.Infof("%s: %s", u.id, message)
}

// Messages returns the retained diagnostics, oldest first.
func (u *LoggingUtility) Messages() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.messages...)
}

// Last returns the id of the last timeslot handled.
func (u *LoggingUtility) Last() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.last
}
