package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. Development gets a console
// writer; every other env logs JSON to stdout.
func Setup(level, env string) error {
	return setup(os.Stdout, level, env)
}

func setup(out io.Writer, level, env string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return errors.Errorf("invalid log level: %q", level)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	writer := out
	if env == "development" {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()

	log.Debug().Str("level", lvl.String()).Str("env", env).Msg("logger initialized")
	return nil
}
