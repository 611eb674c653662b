/*
Copyright 2026, Cossack Labs Limited

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging contains log formatters (plaintext and JSON) shared by firewall components.
// Logging mode and verbosity level are configured by the host in the yaml configuration
// or passed as CLI parameter.
package logging

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Log modes
const (
	LogDebug = iota
	LogVerbose
	LogDiscard
)

// Supported formats
const (
	PlaintextFormatString = "plaintext"
	JSONFormatString      = "json"
)

type loggerKey struct{}

// IsDebugLevel return true if logger configured to log debug messages
func IsDebugLevel(logger *log.Entry) bool {
	return logger.Logger.IsLevelEnabled(log.DebugLevel)
}

// FormatterWrapper wraps log.Formatter interface and allows to label entries with service name
type FormatterWrapper interface {
	log.Formatter
	SetServiceName(serviceName string)
}

// SetLogLevel sets logging level
func SetLogLevel(level int) {
	if level == LogDebug {
		log.SetLevel(log.DebugLevel)
	} else if level == LogVerbose {
		log.SetLevel(log.InfoLevel)
	} else if level == LogDiscard {
		log.SetLevel(log.WarnLevel)
	} else {
		panic(fmt.Sprintf("Incorrect log level - %v", level))
	}
}

// GetLogLevel gets logrus log level and returns int log mode
func GetLogLevel() int {
	if log.GetLevel() == log.DebugLevel {
		return LogDebug
	}
	if log.GetLevel() == log.InfoLevel {
		return LogVerbose
	}
	return LogDiscard
}

// NewFormatter returns formatter for format name, plaintext for unknown names
func NewFormatter(format string) FormatterWrapper {
	switch strings.ToLower(format) {
	case JSONFormatString:
		return JSONFormatter()
	default:
		return TextFormatter()
	}
}

// CreateFormatter creates formatter object and sets it to the standard logger
func CreateFormatter(format string) FormatterWrapper {
	formatter := NewFormatter(format)
	log.SetFormatter(formatter)
	return formatter
}

// SetServiceName adds service label to log entries
// (plaintext formatter ignores it)
func SetServiceName(formatter FormatterWrapper, serviceName string) {
	formatter.SetServiceName(serviceName)
}

// SetLoggerToContext sets logger to corresponded context
func SetLoggerToContext(ctx context.Context, logger *log.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLoggerFromContext gets logger from context, returns standard logger entry if no logger.
func GetLoggerFromContext(ctx context.Context) *log.Entry {
	if entry, ok := GetLoggerFromContextOk(ctx); ok {
		return entry
	}
	return log.NewEntry(log.StandardLogger())
}

// GetLoggerFromContextOk gets logger from context, returns logger and success code.
func GetLoggerFromContextOk(ctx context.Context) (*log.Entry, bool) {
	entry, ok := ctx.Value(loggerKey{}).(*log.Entry)
	return entry, ok
}
