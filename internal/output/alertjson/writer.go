package alertjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"logsentry/internal/logger"
	"logsentry/pkg/models"
)

// Writer appends alerts to a JSON lines file. Each batch is encoded in full
// before it touches the file, so a batch that fails to encode leaves no
// partial lines behind.
type Writer struct {
	path    string
	file    *os.File
	buf     bytes.Buffer
	written int
	mu      sync.Mutex
}

// NewWriter opens path for appending, so repeated scans accumulate.
func NewWriter(path string) (*Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("alert file path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	logger.Infof("Alert JSONL writer initialized: %s", path)
	return &Writer{path: path, file: f}, nil
}

// WriteAlerts appends one line per alert.
func (w *Writer) WriteAlerts(alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return fmt.Errorf("alert file %s is closed", w.path)
	}

	w.buf.Reset()
	enc := json.NewEncoder(&w.buf)
	for _, alert := range alerts {
		if err := enc.Encode(alert); err != nil {
			return fmt.Errorf("failed to encode alert %s: %w", alert.ID, err)
		}
	}
	if _, err := w.file.Write(w.buf.Bytes()); err != nil {
		return fmt.Errorf("failed to append to %s: %w", w.path, err)
	}
	w.written += len(alerts)
	return nil
}

// Written returns the number of alerts appended by this writer.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Close syncs and closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	syncErr := w.file.Sync()
	err := w.file.Close()
	w.file = nil
	logger.Debugf("Alert JSONL writer closed: %s (%d alerts)", w.path, w.written)
	if err != nil {
		return err
	}
	return syncErr
}
