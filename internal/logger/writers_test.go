package logger

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestSafeFileWriterConcurrentWrites(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "nested", "safe_writer.log")

	writer, err := NewSafeFileWriter(testFile, 20*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	numGoroutines, linesPerGoroutine := 10, 100
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < linesPerGoroutine; j++ {
				_, err := fmt.Fprintf(writer, "goroutine %d line %d\n", id, j)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	writes, _ := writer.Stats()
	assert.Equal(t, uint64(numGoroutines*linesPerGoroutine), writes)
	require.NoError(t, writer.Close())

	content, err := os.ReadFile(testFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Len(t, lines, numGoroutines*linesPerGoroutine)
}

func TestSafeFileWriterPeriodicFlush(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "flush.log")

	writer, err := NewSafeFileWriter(testFile, 10*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	defer writer.Close()

	_, err = writer.Write([]byte("pending\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		content, err := os.ReadFile(testFile)
		return err == nil && string(content) == "pending\n"
	}, time.Second, 10*time.Millisecond)
}

func TestSafeCSVWriterHeaderOnce(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "journal.csv")
	header := []string{"id", "operation", "token"}

	first, err := NewSafeCSVWriter(testFile, header, time.Hour, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, first.WriteRecord([]string{"1", "buy", "mint"}))
	assert.Equal(t, uint64(1), first.Records())
	require.NoError(t, first.Close())

	// Reopening an existing file appends without repeating the header.
	second, err := NewSafeCSVWriter(testFile, header, time.Hour, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, second.WriteRecord([]string{"2", "sell", "mint"}))
	require.NoError(t, second.Close())

	f, err := os.Open(testFile)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		header,
		{"1", "buy", "mint"},
		{"2", "sell", "mint"},
	}, rows)
}

func TestNewLoggerWritesJSONFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "launchpad.log")

	log, err := New(Config{LogFile: logFile, FlushInterval: time.Hour})
	require.NoError(t, err)

	log.WithOperation("buy").Info("trade executed", zap.Uint64("sol", 42))
	log.Debug("hidden at info level")
	require.NoError(t, log.Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "trade executed", entry["msg"])
	assert.Equal(t, "buy", entry["operation"])
	assert.NotEmpty(t, entry["correlation_id"])
	assert.EqualValues(t, 42, entry["sol"])
}
