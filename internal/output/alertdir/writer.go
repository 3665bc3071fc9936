package alertdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"logsentry/internal/logger"
	"logsentry/pkg/models"
)

// Writer stores every alert as an indented JSON file named after its id.
type Writer struct {
	dir string
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("alert directory is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create alert directory: %w", err)
	}
	logger.Infof("Alert directory writer initialized: %s", dir)
	return &Writer{dir: dir}, nil
}

// WriteAlerts writes one file per alert. An alert id seen again overwrites its
// file. A failed alert does not stop the rest of the batch.
func (w *Writer) WriteAlerts(alerts []*models.Alert) error {
	var errs []error
	for _, alert := range alerts {
		if err := w.write(alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *Writer) write(alert *models.Alert) error {
	path, err := w.path(alert)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(alert, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode alert %s: %w", alert.ID, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write alert file: %w", err)
	}
	return nil
}

// path resolves the alert's file and refuses anything outside the directory.
func (w *Writer) path(alert *models.Alert) (string, error) {
	name := alert.FileName()
	path := filepath.Join(w.dir, name)
	if filepath.Base(name) != name || filepath.Dir(path) != filepath.Clean(w.dir) {
		return "", fmt.Errorf("alert %s: file name %q escapes %s", alert.ID, name, w.dir)
	}
	return path, nil
}

// Close is a no-op.
func (w *Writer) Close() error {
	return nil
}
