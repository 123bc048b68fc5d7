package logger

import (
	"context"
	"io"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

type Fields map[string]any

type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...any)
	Info(msg string)
	Infof(format string, args ...any)
	Warn(msg string)
	Warnf(format string, args ...any)
	Error(msg string)
	Errorf(format string, args ...any)
	Fatal(msg string)
	Fatalf(format string, args ...any)

	WithField(key string, value any) Logger
	WithFields(fields Fields) Logger
	WithContext(ctx context.Context) Logger

	SetLevel(level Level)
	SetOutput(output io.Writer)
}

// Config controls level, format, and destination of the process logger.
type Config struct {
	Level    Level  `json:"level"     yaml:"level"`
	Format   string `json:"format"    yaml:"format"` // json, text, console
	Output   string `json:"output"    yaml:"output"` // stdout, stderr, file
	FilePath string `json:"file_path" yaml:"file_path"`

	// File rotation, used when Output is "file".
	MaxSize    int  `json:"max_size"    yaml:"max_size"` // MB
	MaxBackups int  `json:"max_backups" yaml:"max_backups"`
	MaxAge     int  `json:"max_age"     yaml:"max_age"` // days
	Compress   bool `json:"compress"    yaml:"compress"`

	Fields map[string]string `json:"fields" yaml:"fields"`
}

func NewDefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		Format:     "console",
		Output:     "stdout",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
		Fields:     map[string]string{},
	}
}
