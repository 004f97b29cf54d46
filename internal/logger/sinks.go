package logger

import (
	"context"
	"fmt"
	"log/syslog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Sinks selects the log destinations for a run. Any combination may be
// enabled; with none enabled the run is silent.
type Sinks struct {
	// Stdout enables the console sink.
	Stdout bool
	// Syslog enables the local system log sink.
	Syslog bool
	// File enables the rotating file sink under the logs directory.
	File bool
}

const (
	// logDirectory holds rotating log files, created on demand.
	logDirectory = "logs"
	// logFilename is the current log file inside logDirectory.
	logFilename = "ls-updater.log"
	// maxLogSizeMB is the size bound before the log file is rotated.
	maxLogSizeMB = 1
	// maxLogBackups is the count bound on rotated log files.
	maxLogBackups = 10
	// syslogTag labels entries in the system log.
	syslogTag = "ls-updater"
	// bannerWidth is the width of the run banner separator lines.
	bannerWidth = 32
)

// Configure replaces the global logger with one writing to the selected
// sinks. With no sink selected the global logger becomes a no-op, matching
// a run configured to be silent.
func Configure(sinks Sinks) error {
	var cores []zapcore.Core

	if sinks.Stdout {
		cores = append(cores, zapcore.NewCore(
			consoleEncoder(true),
			zapcore.AddSync(os.Stdout),
			defaultLevel,
		))
	}

	if sinks.Syslog {
		writer, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, syslogTag)
		if err != nil {
			return fmt.Errorf("open syslog: %w", err)
		}

		// Syslog stays at info regardless of the global level:
		// debug chatter does not belong in the system log.
		cores = append(cores, &coreWithLevel{
			Core: zapcore.NewCore(
				consoleEncoder(false),
				zapcore.AddSync(writer),
				zapcore.DebugLevel,
			),
			level: zapcore.InfoLevel,
		})
	}

	if sinks.File {
		if err := os.MkdirAll(logDirectory, 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}

		rotating := &lumberjack.Logger{
			Filename:   filepath.Join(logDirectory, logFilename),
			MaxSize:    maxLogSizeMB,
			MaxBackups: maxLogBackups,
		}

		cores = append(cores, zapcore.NewCore(
			consoleEncoder(false),
			zapcore.AddSync(rotating),
			defaultLevel,
		))
	}

	if len(cores) == 0 {
		SetLogger(zap.NewNop().Sugar())
		return nil
	}

	SetLogger(zap.New(zapcore.NewTee(cores...)).Sugar())

	return nil
}

// Banner writes the run-start banner with a timestamp. Callers emit it once,
// right after sink configuration, when any sink is enabled.
func Banner(ctx context.Context) {
	separator := strings.Repeat("=", bannerWidth)

	Info(ctx, separator)
	Infof(ctx, "New run started at: %s", time.Now().Format(time.RFC3339))
	Info(ctx, separator)
}

// consoleEncoder builds the encoder shared by all sinks; color is enabled
// only for terminals.
func consoleEncoder(color bool) zapcore.Encoder {
	levelEncoder := zapcore.CapitalLevelEncoder
	if color {
		levelEncoder = zapcore.CapitalColorLevelEncoder
	}

	//nolint:exhaustruct // Default encoder configuration values are fine.
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "message",
		LevelKey:         "level",
		CallerKey:        "caller",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      levelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: ", ",
	})
}
