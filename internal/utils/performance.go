package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// SlowThreshold is the duration above which a timed operation logs a warning.
var SlowThreshold = 250 * time.Millisecond

// Timer measures one operation and logs its duration on Stop.
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
}

// NewTimer starts a timer for the named operation.
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
		log:   log,
	}
}

// Stop logs the elapsed time at Debug, or at Warn beyond SlowThreshold.
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)

	event := t.log.Debug()
	if duration > SlowThreshold {
		event = t.log.Warn()
	}
	event.
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Msg("Operation timed")

	return duration
}

// OperationTimer is the defer-friendly form of Timer.
//
//	defer utils.OperationTimer("journal_backup", log)()
func OperationTimer(operation string, log zerolog.Logger) func() {
	t := NewTimer(operation, log)
	return func() { t.Stop() }
}
