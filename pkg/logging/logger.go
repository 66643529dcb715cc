package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how much the simulator logs
type Config struct {
	Level      string // debug, info, warn, error
	File       string // rotated log file; empty disables file output
	Stdout     bool   // also write to stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultConfig logs warnings and above to opsim.log only, so the interactive
// session is not interleaved with log lines
func DefaultConfig() Config {
	return Config{
		Level:      "warn",
		File:       "opsim.log",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// LineFormatter renders "[time] [level] [component] message key=value ..."
type LineFormatter struct{}

// Format implements logrus.Formatter
func (f *LineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	fmt.Fprintf(b, "[%s] [%s]", timestamp, entry.Level)
	if component, ok := entry.Data["component"]; ok {
		fmt.Fprintf(b, " [%v]", component)
	}
	fmt.Fprintf(b, " %s", entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != "component" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// ParseLevel converts a level name, falling back to info
func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// New builds a logger from cfg. The returned closer releases the log file.
func New(cfg Config) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetFormatter(&LineFormatter{})
	logger.SetLevel(ParseLevel(cfg.Level))

	writers := make([]io.Writer, 0, 2)
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, nil, errors.Wrapf(err, "failed to create log directory %s", dir)
			}
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			LocalTime:  true,
			Compress:   true,
		}
		writers = append(writers, rotating)
		closer = rotating
	}
	if cfg.Stdout {
		writers = append(writers, os.Stdout)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return logger, closer, nil
}

// Discard returns a logger that drops everything; used as the default by library packages
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// Component scopes a logger to one subsystem
func Component(logger *logrus.Logger, name string) *logrus.Entry {
	if logger == nil {
		logger = Discard()
	}
	return logger.WithField("component", name)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
