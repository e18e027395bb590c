// Package logger provides a package-level structured logger shared across
// the aggregator. It wraps zap and is configured once at process start from
// environment variables.
package logger

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var singleton atomic.Pointer[zap.SugaredLogger]

func init() {
	singleton.Store(newLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE_PATH"), os.Getenv("LOG_SHOW_TIMESTAMP")))
}

// Initialize (re)configures the singleton logger from the current
// environment. It is safe to call more than once; the last call wins.
func Initialize() {
	singleton.Store(newLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE_PATH"), os.Getenv("LOG_SHOW_TIMESTAMP")))
}

func newLogger(levelEnv, filePath, showTimestamp string) *zap.SugaredLogger {
	level := parseLevel(levelEnv)

	encoderCfg := zap.NewProductionEncoderConfig()
	if parseBool(showTimestamp, false) {
		encoderCfg.TimeKey = "ts"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		encoderCfg.TimeKey = ""
	}

	var ws zapcore.WriteSyncer = zapcore.AddSync(os.Stderr)
	if filePath != "" {
		if f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			ws = zapcore.NewMultiWriteSyncer(ws, zapcore.AddSync(f))
		}
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), ws, level)
	return zap.New(core, zap.AddCaller()).Sugar()
}

func parseLevel(v string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "INFO", "":
		return zapcore.InfoLevel
	default:
		return zapcore.InfoLevel
	}
}

func parseBool(v string, def bool) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Get returns the current singleton logger.
func Get() *zap.SugaredLogger {
	return singleton.Load()
}

func Debug(args ...any)                  { Get().Debug(args...) }
func Debugf(format string, args ...any)  { Get().Debugf(format, args...) }
func Debugw(msg string, kv ...any)       { Get().Debugw(msg, kv...) }
func Info(args ...any)                   { Get().Info(args...) }
func Infof(format string, args ...any)   { Get().Infof(format, args...) }
func Infow(msg string, kv ...any)        { Get().Infow(msg, kv...) }
func Warn(args ...any)                   { Get().Warn(args...) }
func Warnf(format string, args ...any)   { Get().Warnf(format, args...) }
func Warnw(msg string, kv ...any)        { Get().Warnw(msg, kv...) }
func Error(args ...any)                  { Get().Error(args...) }
func Errorf(format string, args ...any)  { Get().Errorf(format, args...) }
func Errorw(msg string, kv ...any)       { Get().Errorw(msg, kv...) }
