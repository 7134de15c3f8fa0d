package testlog

import (
	"testing"

	"github.com/rs/zerolog"

	"besedarium.dev/mpst/internal/logging"
)

// Start configures test logging and records the test name.
func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	l := logging.L()
	l.Info().Str("test", t.Name()).Msg("start")
}

// Logger returns a logger that writes through t.Log, so output is attached
// to the test that produced it.
func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}
