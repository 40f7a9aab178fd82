// Package logging centralizes the custom slog levels this simulator uses,
// following the pattern in the teacher's core/util.go (LevelTrace,
// LevelWaveform).
package logging

import (
	"context"
	"log/slog"
)

const (
	// LevelProtocol logs coherence-state transitions (directory, L1, L2).
	LevelProtocol slog.Level = slog.LevelInfo + 1
	// LevelRouter logs per-flit router pipeline activity.
	LevelRouter slog.Level = slog.LevelInfo + 2
)

// Protocol logs a coherence transition at LevelProtocol.
func Protocol(msg string, args ...any) {
	slog.Log(context.Background(), LevelProtocol, msg, args...)
}

// Router logs a flit-level router event at LevelRouter.
func Router(msg string, args ...any) {
	slog.Log(context.Background(), LevelRouter, msg, args...)
}
