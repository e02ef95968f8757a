// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logger provides the process-wide zap logger used by the marketplace CLI.
package logger

import (
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stacklok/toolhive-marketplace/env"
)

// UnstructuredLogsEnv selects console output when true (the default) and JSON when false.
const UnstructuredLogsEnv = "UNSTRUCTURED_LOGS"

// Debugf logs a message at debug level using the singleton logger.
func Debugf(msg string, args ...any) {
	zap.S().Debugf(msg, args...)
}

// Debugw logs a message at debug level with additional key-value pairs.
func Debugw(msg string, keysAndValues ...any) {
	zap.S().Debugw(msg, keysAndValues...)
}

// Info logs a message at info level using the singleton logger.
func Info(msg string) {
	zap.S().Info(msg)
}

// Infof logs a message at info level using the singleton logger.
func Infof(msg string, args ...any) {
	zap.S().Infof(msg, args...)
}

// Infow logs a message at info level with additional key-value pairs.
func Infow(msg string, keysAndValues ...any) {
	zap.S().Infow(msg, keysAndValues...)
}

// Warnf logs a message at warning level using the singleton logger.
func Warnf(msg string, args ...any) {
	zap.S().Warnf(msg, args...)
}

// Warnw logs a message at warning level with additional key-value pairs.
func Warnw(msg string, keysAndValues ...any) {
	zap.S().Warnw(msg, keysAndValues...)
}

// Errorf logs a message at error level using the singleton logger.
func Errorf(msg string, args ...any) {
	zap.S().Errorf(msg, args...)
}

// Errorw logs a message at error level with additional key-value pairs.
func Errorw(msg string, keysAndValues ...any) {
	zap.S().Errorw(msg, keysAndValues...)
}

// Sync flushes buffered log entries. Errors are ignored because stderr
// cannot be synced on every platform.
func Sync() {
	_ = zap.L().Sync()
}

// Initialize configures the singleton logger from the process environment.
func Initialize(debug bool) {
	InitializeWithEnv(&env.OSReader{}, debug)
}

// InitializeWithEnv configures the singleton logger using the given environment reader.
// Console output goes to stderr so that command output on stdout stays machine-readable.
func InitializeWithEnv(envReader env.Reader, debug bool) {
	var config zap.Config
	if unstructuredLogs(envReader) {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.Kitchen)
		config.DisableStacktrace = true
		config.DisableCaller = true
	} else {
		config = zap.NewProductionConfig()
	}
	config.OutputPaths = []string{"stderr"}

	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	zap.ReplaceGlobals(zap.Must(config.Build()))
}

func unstructuredLogs(envReader env.Reader) bool {
	v, err := strconv.ParseBool(envReader.Getenv(UnstructuredLogsEnv))
	if err != nil {
		// unset or unparsable: humans are the usual audience of the CLI
		return true
	}
	return v
}
