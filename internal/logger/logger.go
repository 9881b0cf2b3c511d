// Package logger wraps zerolog behind package-level Infof/Warnf helpers so
// call sites stay terse across the control plane.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log = newLogger()

func newLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	level := zerolog.InfoLevel
	if lv, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && os.Getenv("LOG_LEVEL") != "" {
		level = lv
	}
	out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	if os.Getenv("LOG_FORMAT") == "json" {
		return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func Infof(format string, args ...interface{})  { log.Info().Msgf(format, args...) }
func Warnf(format string, args ...interface{})  { log.Warn().Msgf(format, args...) }
func Errorf(format string, args ...interface{}) { log.Error().Msgf(format, args...) }
func Debugf(format string, args ...interface{}) { log.Debug().Msgf(format, args...) }

func Info(msg string)  { log.Info().Msg(msg) }
func Warn(msg string)  { log.Warn().Msg(msg) }
func Error(msg string) { log.Error().Msg(msg) }

// WithField returns a child logger carrying one extra structured field, for
// call sites that want attribution (e.g. model id) without string formatting.
func WithField(key, value string) zerolog.Logger {
	return log.With().Str(key, value).Logger()
}
