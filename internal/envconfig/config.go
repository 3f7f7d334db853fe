// Package envconfig reads detops settings from the environment.
//
// Recognised variables:
//   - DETOPS_DEBUG: enable debug logging (bool, or a numeric verbosity level)
//   - DETOPS_NUM_THREADS: worker goroutines used by the CPU kernels (0 = NumCPU)
//   - DETOPS_MIN_CHUNK: minimum work items per goroutine before going parallel
//   - DETOPS_SEQUENTIAL: force single-goroutine execution
package envconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Var returns an environment variable stripped of surrounding whitespace and quotes.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// LogLevel returns the slog level selected by DETOPS_DEBUG.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("DETOPS_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// BoolWithDefault returns an accessor for a boolean variable. Unparseable
// non-empty values count as true.
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool returns an accessor for a boolean variable defaulting to false.
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// Uint returns an accessor for an unsigned integer variable.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

var (
	// NumThreads is the number of worker goroutines; 0 means runtime.NumCPU().
	NumThreads = Uint("DETOPS_NUM_THREADS", 0)
	// MinChunk is the smallest number of work items handed to one goroutine.
	MinChunk = Uint("DETOPS_MIN_CHUNK", 4)
	// Sequential disables goroutine fan-out entirely.
	Sequential = Bool("DETOPS_SEQUENTIAL")
)

// EnvVar describes one recognised variable and its current value.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every recognised variable keyed by name.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"DETOPS_DEBUG":       {"DETOPS_DEBUG", LogLevel(), "Show additional debug information (e.g. DETOPS_DEBUG=1)"},
		"DETOPS_NUM_THREADS": {"DETOPS_NUM_THREADS", NumThreads(), "Worker goroutines for CPU kernels (0 = number of CPUs)"},
		"DETOPS_MIN_CHUNK":   {"DETOPS_MIN_CHUNK", MinChunk(), "Minimum work items per goroutine"},
		"DETOPS_SEQUENTIAL":  {"DETOPS_SEQUENTIAL", Sequential(), "Run CPU kernels on a single goroutine"},
	}
}
