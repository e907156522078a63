// Package log configures the logrus logger used across the player.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jscyril/playsync/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup applies cfg to logger. The terminal belongs to the UI, so entries
// go to cfg.File when set and are discarded otherwise. The returned closer
// releases the log file.
func Setup(logger *logrus.Logger, fs afero.Fs, cfg config.LogConfig) (io.Closer, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}

	if cfg.File == "" {
		logger.SetOutput(io.Discard)
		return nopCloser{}, nil
	}

	if err := fs.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := fs.OpenFile(cfg.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(f)

	return f, nil
}
