package telemetry

import "log/slog"

// Recorder receives coarse usage events.
type Recorder interface {
	RecordEvent(category, action, label string)
}

type nop struct{}

func (nop) RecordEvent(string, string, string) {}

// Nop discards every event.
func Nop() Recorder {
	return nop{}
}

// LogRecorder writes events to the debug log.
type LogRecorder struct {
	logger *slog.Logger
}

func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) RecordEvent(category, action, label string) {
	r.logger.Debug("Telemetry event", "category", category, "action", action, "label", label)
}

type multi []Recorder

func (m multi) RecordEvent(category, action, label string) {
	for _, r := range m {
		r.RecordEvent(category, action, label)
	}
}

// Multi fans each event out to every non-nil recorder.
func Multi(recorders ...Recorder) Recorder {
	out := make(multi, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
