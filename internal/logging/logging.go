package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"voip-monitor/internal/config"
)

// New builds the process logger. Output goes to stdout and, when a file is
// configured, to a size-rotated log file. The returned closer flushes the file.
func New(cfg config.LogConfig) (*log.Logger, io.Closer, error) {
	if cfg.File == "" {
		return log.New(os.Stdout, "", log.LstdFlags), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, err
	}
	writer := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return log.New(io.MultiWriter(os.Stdout, writer), "", log.LstdFlags), writer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
