// Package logging builds the zap logger used for diagnostics.
//
// Diagnostics go to stderr next to the one-line error report, so the
// default level is off.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Levels accepted besides zap's own ("debug", "info", "warn", "error").
const LevelOff = "off"

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// ValidLevel reports whether level is accepted by New.
func ValidLevel(level string) bool {
	if level == LevelOff || level == "" {
		return true
	}
	_, err := zapcore.ParseLevel(level)
	return err == nil
}

// New returns a logger writing to w at the given level. The off level
// returns a no-op logger. A nil w means os.Stderr.
func New(level, format string, w io.Writer) (*zap.Logger, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == LevelOff || level == "" {
		return zap.NewNop(), nil
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	if w == nil {
		w = os.Stderr
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	var enc zapcore.Encoder
	switch strings.ToLower(format) {
	case FormatJSON:
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	case FormatConsole, "":
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), lvl)
	return zap.New(core).Named("clipio"), nil
}
