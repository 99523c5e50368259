package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns the service logger. Console output, RFC3339 timestamps,
// tagged with the service name so compose logs stay readable.
func New(service string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}

	return zerolog.New(output).
		Level(zerolog.InfoLevel).
		With().
		Str("service", service).
		Timestamp().
		Logger()
}
