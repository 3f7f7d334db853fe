package envconfig

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"t":     slog.LevelDebug,
		"1":     slog.LevelDebug,
		"2":     slog.Level(-8),
	}

	for value, want := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("DETOPS_DEBUG", value)
			assert.Equal(t, want, LogLevel())
		})
	}
}

func TestVarTrimsQuotes(t *testing.T) {
	t.Setenv("DETOPS_TEST_VAR", `  "quoted"  `)
	assert.Equal(t, "quoted", Var("DETOPS_TEST_VAR"))
}

func TestUint(t *testing.T) {
	t.Setenv("DETOPS_NUM_THREADS", "")
	assert.Equal(t, uint(0), NumThreads())

	t.Setenv("DETOPS_NUM_THREADS", "6")
	assert.Equal(t, uint(6), NumThreads())

	t.Setenv("DETOPS_NUM_THREADS", "six")
	assert.Equal(t, uint(0), NumThreads(), "invalid values fall back to the default")
}

func TestBool(t *testing.T) {
	t.Setenv("DETOPS_SEQUENTIAL", "")
	assert.False(t, Sequential())

	t.Setenv("DETOPS_SEQUENTIAL", "true")
	assert.True(t, Sequential())

	t.Setenv("DETOPS_SEQUENTIAL", "yes please")
	assert.True(t, Sequential())
}

func TestAsMap(t *testing.T) {
	t.Setenv("DETOPS_MIN_CHUNK", "16")
	vars := AsMap()
	assert.Len(t, vars, 4)
	assert.Equal(t, uint(16), vars["DETOPS_MIN_CHUNK"].Value)
}
