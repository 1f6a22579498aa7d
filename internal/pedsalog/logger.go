// Package pedsalog provides the subsystem-tagged logging used across the
// engine, mirroring the teacher's internal/logging package: a thin wrapper
// over the standard logger with a DEBUG-gated verbose tier.
package pedsalog

import (
	"log"
	"os"
	"strings"
)

var debugEnabled = os.Getenv("PEDSA_DEBUG") == "true"

// Info logs an informational message (always shown).
func Info(subsystem, format string, args ...any) {
	log.Printf("[%s] "+format, append([]any{subsystem}, args...)...)
}

// Debug logs a debug message, shown only when PEDSA_DEBUG=true.
func Debug(subsystem, format string, args ...any) {
	if debugEnabled {
		log.Printf("[%s] "+format, append([]any{subsystem}, args...)...)
	}
}

// Warn logs a best-effort-degradation warning (unknown maintenance action,
// over-long word skipped on model save, ...).
func Warn(subsystem, format string, args ...any) {
	log.Printf("[%s] warn: "+format, append([]any{subsystem}, args...)...)
}

// Truncate shortens s to maxLen for one-line log output.
func Truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
