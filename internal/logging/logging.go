package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

const DefaultLevel = "warn"

type Options struct {
	Name   string
	Level  string
	Output io.Writer
	JSON   bool
}

// New builds the process logger. Output defaults to stderr so stdout stays
// free for reports and JSON.
func New(opts Options) hclog.Logger {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "mediaconv"
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      ParseLevel(opts.Level),
		Output:     out,
		JSONFormat: opts.JSON,
	})
}

// ParseLevel accepts hclog level names and falls back to warn.
func ParseLevel(raw string) hclog.Level {
	lvl := hclog.LevelFromString(strings.TrimSpace(raw))
	if lvl == hclog.NoLevel {
		return hclog.LevelFromString(DefaultLevel)
	}
	return lvl
}

func ValidLevel(raw string) bool {
	return hclog.LevelFromString(strings.TrimSpace(raw)) != hclog.NoLevel
}
