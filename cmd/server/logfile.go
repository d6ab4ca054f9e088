package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Once the log passes maxLogSizeBytes only the newest keepLogSizeBytes are kept.
const (
	maxLogSizeBytes  = 6 * 1024 * 1024
	keepLogSizeBytes = 5 * 1024 * 1024
)

// logFileWriter appends to a size-capped log file.
type logFileWriter struct {
	mu      sync.Mutex
	file    *os.File
	maxSize int64
	keep    int64
}

func newLogFileWriter(path string) (*logFileWriter, *os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	w := &logFileWriter{file: file, maxSize: maxLogSizeBytes, keep: keepLogSizeBytes}
	if err := w.trim(); err != nil {
		_ = file.Close()
		return nil, nil, err
	}
	return w, file, nil
}

func (w *logFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	if err != nil {
		return n, err
	}
	return n, w.trim()
}

// trim rewrites the file with its tail when it grew past maxSize.
func (w *logFileWriter) trim() error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= w.maxSize {
		return nil
	}

	tail := make([]byte, w.keep)
	n, err := w.file.ReadAt(tail, size-w.keep)
	if err != nil && err != io.EOF {
		return err
	}
	if err := w.file.Truncate(0); err != nil {
		return err
	}
	// O_APPEND writes land at the new end after truncation.
	_, err = w.file.Write(tail[:n])
	return err
}
