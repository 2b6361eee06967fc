// Package rclog builds the process logger: a zap.SugaredLogger underneath,
// an optional rotated file sink via lumberjack, and a small string-keyed
// level lookup instead of exposing zapcore types to callers.
package rclog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is one of the four names accepted by Options.Level.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func toZapLevel(l string) zapcore.Level {
	levels := map[Level]zapcore.Level{
		LevelDebug: zapcore.DebugLevel,
		LevelInfo:  zapcore.InfoLevel,
		LevelWarn:  zapcore.WarnLevel,
		LevelError: zapcore.ErrorLevel,
	}
	if level, ok := levels[Level(l)]; ok {
		return level
	}
	return zapcore.InfoLevel
}

// Options configures the process logger.
type Options struct {
	Level      string
	Stdout     bool
	Filename   string // empty disables file output
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

// New builds a *zap.SugaredLogger writing to stdout and/or a rotated file
// per Options.
func New(o Options) (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	var cores []zapcore.Core
	level := toZapLevel(o.Level)

	if o.Stdout || o.Filename == "" {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level))
	}
	if o.Filename != "" {
		rotator := &lumberjack.Logger{
			Filename:   o.Filename,
			MaxSize:    orDefault(o.MaxSizeMB, 100),
			MaxAge:     orDefault(o.MaxAgeDays, 28),
			MaxBackups: orDefault(o.MaxBackups, 3),
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	core := zapcore.NewTee(cores...)
	logger := zap.New(core, zap.AddCaller())
	return logger.Sugar(), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
