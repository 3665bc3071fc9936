package alertconsole

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"logsentry/pkg/models"
)

// DefaultMaxEvents is how many contributing events are printed per alert.
const DefaultMaxEvents = 5

var rule = strings.Repeat("=", 80)

// Writer renders alerts for a human reader.
type Writer struct {
	out       io.Writer
	maxEvents int
	mu        sync.Mutex
}

// NewWriter renders to out, or stdout when out is nil.
func NewWriter(out io.Writer, maxEvents int) *Writer {
	if out == nil {
		out = os.Stdout
	}
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &Writer{out: out, maxEvents: maxEvents}
}

// WriteAlerts prints each alert as a framed block.
func (w *Writer) WriteAlerts(alerts []*models.Alert) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	bw := bufio.NewWriter(w.out)
	for _, alert := range alerts {
		w.render(bw, alert)
	}
	return bw.Flush()
}

func (w *Writer) render(bw *bufio.Writer, alert *models.Alert) {
	fmt.Fprintln(bw, rule)
	fmt.Fprintf(bw, "ALERT: %s\n", alert.Title)
	fmt.Fprintf(bw, "Priority: %s | Created: %s | ID: %s\n", alert.Priority, alert.CreatedAt.Format(time.RFC3339), alert.ID)
	fmt.Fprintf(bw, "Description: %s\n", alert.Description)
	if alert.Remediation != "" {
		fmt.Fprintf(bw, "Remediation: %s\n", alert.Remediation)
	}
	fmt.Fprintf(bw, "Associated events: %d\n", len(alert.Events))
	for i, ev := range alert.Events {
		if i == w.maxEvents {
			fmt.Fprintf(bw, "  ... %d more events omitted\n", len(alert.Events)-w.maxEvents)
			break
		}
		fmt.Fprintf(bw, "  - %s %s %v\n", ev.Timestamp.Format(time.RFC3339), ev.Category, ev.Details)
	}
	fmt.Fprintln(bw, rule)
}

// Close is a no-op; the destination is owned by the caller.
func (w *Writer) Close() error {
	return nil
}
