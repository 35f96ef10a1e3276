package logger

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// flusher runs fn every interval until stop is called.
type flusher struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func startFlusher(interval time.Duration, fn func()) *flusher {
	f := &flusher{ticker: time.NewTicker(interval), done: make(chan struct{})}
	go func() {
		for {
			select {
			case <-f.ticker.C:
				fn()
			case <-f.done:
				return
			}
		}
	}()
	return f
}

func (f *flusher) stop() {
	f.once.Do(func() {
		f.ticker.Stop()
		close(f.done)
	})
}

func openAppend(filePath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// SafeFileWriter is a buffered, mutex-guarded file sink with periodic flush.
// It satisfies zapcore.WriteSyncer.
type SafeFileWriter struct {
	mu       sync.Mutex
	writer   *bufio.Writer
	file     *os.File
	flusher  *flusher
	logger   *zap.Logger
	filePath string

	writes  uint64
	flushes uint64
}

// NewSafeFileWriter opens filePath for appending. logger receives flush
// failures and may be zap.NewNop when the writer backs the logger itself.
func NewSafeFileWriter(filePath string, flushInterval time.Duration, logger *zap.Logger) (*SafeFileWriter, error) {
	file, err := openAppend(filePath)
	if err != nil {
		return nil, err
	}
	w := &SafeFileWriter{
		writer:   bufio.NewWriter(file),
		file:     file,
		logger:   logger,
		filePath: filePath,
	}
	w.flusher = startFlusher(flushInterval, func() {
		if err := w.Sync(); err != nil {
			w.logger.Error("Periodic flush failed", zap.String("file", w.filePath), zap.Error(err))
		}
	})
	return w, nil
}

func (w *SafeFileWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.writer.Write(data)
	if err != nil {
		return n, fmt.Errorf("failed to write data: %w", err)
	}
	w.writes++
	return n, nil
}

// Sync flushes buffered data to disk.
func (w *SafeFileWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	w.flushes++
	return nil
}

func (w *SafeFileWriter) Close() error {
	w.flusher.stop()

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	return w.file.Close()
}

// Stats returns the number of writes and flushes so far.
func (w *SafeFileWriter) Stats() (writes, flushes uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes, w.flushes
}

// SafeCSVWriter appends CSV rows under a fixed header.
type SafeCSVWriter struct {
	mu       sync.Mutex
	writer   *csv.Writer
	file     *os.File
	flusher  *flusher
	logger   *zap.Logger
	filePath string

	records uint64
}

// NewSafeCSVWriter opens filePath for appending and writes header when the
// file is empty.
func NewSafeCSVWriter(filePath string, header []string, flushInterval time.Duration, logger *zap.Logger) (*SafeCSVWriter, error) {
	file, err := openAppend(filePath)
	if err != nil {
		return nil, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	w := &SafeCSVWriter{
		writer:   csv.NewWriter(file),
		file:     file,
		logger:   logger,
		filePath: filePath,
	}
	if stat.Size() == 0 && len(header) > 0 {
		if err := w.writer.Write(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		w.writer.Flush()
	}
	w.flusher = startFlusher(flushInterval, func() {
		if err := w.Flush(); err != nil {
			w.logger.Error("Periodic CSV flush failed", zap.String("file", w.filePath), zap.Error(err))
		}
	})
	return w, nil
}

func (w *SafeCSVWriter) WriteRecord(record []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	w.records++
	return nil
}

func (w *SafeCSVWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return w.file.Sync()
}

func (w *SafeCSVWriter) Close() error {
	w.flusher.stop()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error on close: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	w.logger.Debug("CSV writer closed", zap.String("file", w.filePath), zap.Uint64("records", w.records))
	return nil
}

// Records returns the number of rows written, excluding the header.
func (w *SafeCSVWriter) Records() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}
