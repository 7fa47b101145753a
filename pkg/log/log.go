package log

import (
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
)

// ZeroLogger is a thin zerolog wrapper exposing the printf-style surface the
// rest of the repo logs through. It satisfies eventstore.Logger.
type ZeroLogger struct {
	logger zerolog.Logger
	name   string
}

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return filepath.Base(file) + ":" + strconv.Itoa(line)
	}

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log
}

func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a config string onto a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

func NewLogger(name string, output io.Writer) *ZeroLogger {
	if output == nil {
		output = os.Stdout
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		Str("logger", name).
		Caller().
		Logger()

	return &ZeroLogger{
		logger: logger,
		name:   name,
	}
}

func (l *ZeroLogger) Debugf(format string, args ...any) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *ZeroLogger) Infof(format string, args ...any) {
	l.logger.Info().Msgf(format, args...)
}

func (l *ZeroLogger) Warnf(format string, args ...any) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *ZeroLogger) Errorf(format string, args ...any) {
	l.logger.Error().Msgf(format, args...)
}

var defaultLogger = NewLogger("default", nil)

func Debugf(format string, args ...any) {
	defaultLogger.logger.Debug().CallerSkipFrame(1).Msgf(format, args...)
}

func Infof(format string, args ...any) {
	defaultLogger.logger.Info().CallerSkipFrame(1).Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	defaultLogger.logger.Warn().CallerSkipFrame(1).Msgf(format, args...)
}

func Errorf(format string, args ...any) {
	defaultLogger.logger.Error().CallerSkipFrame(1).Msgf(format, args...)
}

func Fatalf(format string, args ...any) {
	// zerolog calls os.Exit(1) when the event is logged
	defaultLogger.logger.Fatal().CallerSkipFrame(1).Msgf(format, args...)
}
