// Package logging builds the logrus logger shared by the server and the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes log level, format and destinations
type Config struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path" split_words:"true"`
	MaxSize    int    `yaml:"max_size" split_words:"true"`
	MaxBackups int    `yaml:"max_backups" split_words:"true"`
	MaxAge     int    `yaml:"max_age" split_words:"true"`
	Compress   bool   `yaml:"compress"`
}

// Outputs accepted in Config.Output
const (
	OutputConsole = "console"
	OutputStderr  = "stderr"
	OutputFile    = "file"
	OutputBoth    = "both"
)

const timestampFormat = "2006-01-02 15:04:05"

// New builds a logger from cfg. An unparseable level falls back to info.
func New(cfg Config) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:   timestampFormat,
			DisableHTMLEscape: true,
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}

	var writers []io.Writer

	switch cfg.Output {
	case OutputConsole, OutputBoth, "":
		writers = append(writers, os.Stdout)
	case OutputStderr:
		writers = append(writers, os.Stderr)
	case OutputFile:
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}

	if cfg.Output == OutputFile || cfg.Output == OutputBoth {
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("log output %q needs a file_path", cfg.Output)
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, err
		}

		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}

	log.SetOutput(io.MultiWriter(writers...))
	return log, nil
}

// Component returns an entry tagged with the component name
func Component(log logrus.FieldLogger, name string) *logrus.Entry {
	return log.WithField("component", name)
}
