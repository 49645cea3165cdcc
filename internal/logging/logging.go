// Package logging builds the process logger.
//
// Logs go to stderr, because stdout carries the MCP protocol, and optionally
// to a size-rotated file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TraceIDKey is the field name carrying a per-request trace id.
const TraceIDKey = "trace_id"

// Options configure New.
type Options struct {
	// Level is a logrus level name. Empty means info.
	Level string

	// File, when set, receives a copy of every entry with rotation.
	File string

	// Output overrides stderr. Used by tests.
	Output io.Writer

	// NoColors disables ANSI colors in the text output.
	NoColors bool
}

// New creates a logger from opts.
func New(opts Options) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		l, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = l
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&formatter.Formatter{
		NoColors:        opts.NoColors,
		TimestampFormat: "2006-01-02 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, s[len(s)-1])
		},
	})
	logger.SetReportCaller(level >= logrus.DebugLevel)

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	writers := []io.Writer{out}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}
	logger.SetOutput(io.MultiWriter(writers...))

	return logger, nil
}
