/*
Package zlog is a thin leveled logging facade over the process-wide zap logger.
Until Setup or Use is called all messages are discarded.
*/
package zlog

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/xerrors"
)

/*
Setup installs a process-wide logger writing to stderr.
Format is "console" (default) or "json", level is any zap level name.
*/
func Setup(level, format string) error {
	var lvl zapcore.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return xerrors.Errorf("bad log level %q: %w", level, err)
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch strings.ToLower(format) {
	case "", "console":
		cfg.Encoding = "console"
		cfg.DisableCaller = true
	case "json":
		cfg.Encoding = "json"
	default:
		return xerrors.Errorf("bad log format %q", format)
	}
	l, err := cfg.Build()
	if err != nil {
		return xerrors.Errorf("failed to build logger: %w", err)
	}
	Use(l)
	return nil
}

/*
Use replaces the process-wide logger and returns a function restoring the previous one
*/
func Use(l *zap.Logger) func() {
	return zap.ReplaceGlobals(l)
}

func Sync() {
	_ = zap.L().Sync()
}

func Debugf(format string, a ...interface{}) { zap.S().Debugf(format, a...) }
func Info(msg string, kv ...interface{})     { zap.S().Infow(msg, kv...) }
func Infof(format string, a ...interface{})  { zap.S().Infof(format, a...) }
func Warning(msg string, kv ...interface{})  { zap.S().Warnw(msg, kv...) }
