// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides two independent named log sinks, "debug" and
// "access", following the same text/json slog handler shape used throughout
// the rest of this module.
package logger

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/mirrorfuse/mirrorfuse/cfg"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Custom severities, ranked below/above slog's built-ins so TRACE sorts
// first and OFF sorts last.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

var levelNames = map[slog.Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
	LevelOff:   "OFF",
}

func severityToLevel(severity cfg.LogSeverity) slog.Level {
	switch severity {
	case cfg.TraceLogSeverity:
		return LevelTrace
	case cfg.DebugLogSeverity:
		return LevelDebug
	case cfg.InfoLogSeverity:
		return LevelInfo
	case cfg.WarningLogSeverity:
		return LevelWarn
	case cfg.ErrorLogSeverity:
		return LevelError
	case cfg.OffLogSeverity:
		return LevelOff
	default:
		return LevelInfo
	}
}

// loggerFactory builds slog.Handlers for one named sink, switching between a
// plain os.File/stderr writer and a lumberjack-rotated file writer.
type loggerFactory struct {
	name            string
	file            *os.File
	rotator         *lumberjack.Logger
	sysWriter       io.Writer
	format          string
	level           cfg.LogSeverity
	logRotateConfig cfg.LogRotateConfig
}

func newLoggerFactory(name string) *loggerFactory {
	return &loggerFactory{
		name:      name,
		sysWriter: os.Stderr,
		format:    string(cfg.TextLogFormat),
		level:     cfg.InfoLogSeverity,
	}
}

func (f *loggerFactory) writer() io.Writer {
	if f.rotator != nil {
		return f.rotator
	}
	if f.file != nil {
		return f.file
	}
	return f.sysWriter
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, programLevel *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: programLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.LevelKey:
				lvl, _ := a.Value.Any().(slog.Level)
				name, ok := levelNames[lvl]
				if !ok {
					name = lvl.String()
				}
				a.Key = "severity"
				a.Value = slog.StringValue(name)
			case slog.MessageKey:
				a.Key = "message"
				a.Value = slog.StringValue(prefix + a.Value.String())
			case slog.TimeKey:
				a.Key = "time"
				a.Value = slog.StringValue(a.Value.Time().Format("01/02/2006 15:04:05.000000"))
			}
			return a
		},
	}

	if f.format == string(cfg.JSONLogFormat) {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func (f *loggerFactory) build() *slog.Logger {
	programLevel := new(slog.LevelVar)
	setLoggingLevel(f.level, programLevel)
	return slog.New(f.createJsonOrTextHandler(f.writer(), programLevel, ""))
}

func setLoggingLevel(severity cfg.LogSeverity, programLevel *slog.LevelVar) {
	programLevel.Set(severityToLevel(severity))
}

var (
	debugFactory = newLoggerFactory("debug")
	accessFactory = newLoggerFactory("access")

	debugLogger  = debugFactory.build()
	accessLogger = accessFactory.build()
)

// Init configures both the "debug" and "access" sinks from a LoggingConfig.
// A nonempty DebugLogFile/AccessLogFile switches that sink to a rotated file;
// an empty path leaves it on stderr.
func Init(c cfg.LoggingConfig) error {
	debugFactory.level = c.Severity
	debugFactory.format = string(c.Format)
	if c.DebugLogFile != "" {
		debugFactory.rotator = &lumberjack.Logger{
			Filename:   c.DebugLogFile,
			MaxSize:    c.LogRotate.MaxFileSizeMb,
			MaxBackups: c.LogRotate.BackupFileCount,
			Compress:   c.LogRotate.Compress,
		}
	}
	debugLogger = debugFactory.build()

	accessFactory.level = c.Severity
	accessFactory.format = string(c.Format)
	if c.AccessLogFile != "" {
		accessFactory.rotator = &lumberjack.Logger{
			Filename:   c.AccessLogFile,
			MaxSize:    c.LogRotate.MaxFileSizeMb,
			MaxBackups: c.LogRotate.BackupFileCount,
			Compress:   c.LogRotate.Compress,
		}
	}
	accessLogger = accessFactory.build()

	return nil
}

// SetLogFormat overrides the format ("text" or "json") of both sinks.
func SetLogFormat(format string) {
	if format == "" {
		format = string(cfg.JSONLogFormat)
	}
	debugFactory.format = format
	accessFactory.format = format
	debugLogger = debugFactory.build()
	accessLogger = accessFactory.build()
}

func Tracef(format string, v ...any) { debugLogger.Log(nil, LevelTrace, fmt.Sprintf(format, v...)) }
func Debugf(format string, v ...any) { debugLogger.Log(nil, LevelDebug, fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { debugLogger.Log(nil, LevelInfo, fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { debugLogger.Log(nil, LevelWarn, fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { debugLogger.Log(nil, LevelError, fmt.Sprintf(format, v...)) }

// Accessf writes one line to the dedicated access sink. Access events are
// always informational — there is no severity escalation on this sink.
func Accessf(format string, v ...any) {
	accessLogger.Log(nil, LevelInfo, fmt.Sprintf(format, v...))
}

// NewLegacyLogger returns a standard-library *log.Logger writing into the
// debug sink's current destination, for handing to libraries (jacobsa/fuse's
// MountConfig.ErrorLogger/DebugLogger) that predate slog. If the configured
// debug severity is above level (so messages at level would be filtered),
// the returned logger discards its output.
func NewLegacyLogger(level slog.Level, prefix string) *log.Logger {
	if severityToLevel(debugFactory.level) > level {
		return log.New(io.Discard, prefix, 0)
	}
	return log.New(debugFactory.writer(), prefix, log.Ldate|log.Ltime|log.Lmicroseconds)
}
