package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02 15:04:05"

// New builds the process logger. Development environments get a console
// writer; everything else emits JSON lines. When writers are supplied they
// replace stdout.
func New(env, level string, writers ...io.Writer) (*zerolog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.DurationFieldUnit = time.Millisecond

	var out io.Writer = os.Stdout
	switch {
	case len(writers) > 0:
		out = io.MultiWriter(writers...)
	case isDevelopment(env):
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: consoleTimeFormat}
	}

	l := zerolog.New(out).With().Timestamp().Logger().Level(lvl)
	return &l, nil
}

// Component derives a child logger tagged with the component name.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

func isDevelopment(env string) bool {
	return strings.EqualFold(env, "development") || strings.EqualFold(env, "dev")
}

func parseLevel(level string) (zerolog.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(level)
}
