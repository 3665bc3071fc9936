package alertnats

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"logsentry/internal/logger"
	"logsentry/pkg/models"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "logsentry.alerts"

// Config configures the NATS publisher.
type Config struct {
	URL     string
	Subject string
	Timeout time.Duration
}

// Publisher is the part of a NATS connection the writer needs.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
	FlushTimeout(timeout time.Duration) error
	IsConnected() bool
	Close()
}

// Writer publishes every alert as its own message with x-* headers.
type Writer struct {
	conn    Publisher
	subject string
	timeout time.Duration
}

// NewWriter connects to NATS.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("logsentry"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infof("NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewWriterWithConn(nc, cfg.Subject, timeout), nil
}

// NewWriterWithConn wraps an existing connection.
func NewWriterWithConn(conn Publisher, subject string, timeout time.Duration) *Writer {
	if subject == "" {
		subject = DefaultSubject
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Writer{conn: conn, subject: subject, timeout: timeout}
}

// Message builds the NATS message for an alert.
func (w *Writer) Message(alert *models.Alert) (*nats.Msg, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert: %w", err)
	}

	headers := nats.Header{}
	headers.Set("x-alert-id", alert.ID)
	headers.Set("x-rule-id", alert.RuleID)
	headers.Set("x-priority", alert.Priority)
	headers.Set("x-group-key", alert.GroupKey)
	headers.Set("x-timestamp", alert.CreatedAt.UTC().Format(time.RFC3339))
	headers.Set("x-event-count", strconv.Itoa(len(alert.Events)))

	return &nats.Msg{
		Subject: w.subject,
		Data:    data,
		Header:  headers,
	}, nil
}

// WriteAlerts publishes a batch and flushes it to the server.
func (w *Writer) WriteAlerts(alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if w.conn == nil || !w.conn.IsConnected() {
		return fmt.Errorf("NATS connection not available")
	}

	var errs []error
	for _, alert := range alerts {
		msg, err := w.Message(alert)
		if err == nil {
			err = w.conn.PublishMsg(msg)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("alert %s: %w", alert.ID, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to publish %d of %d alerts: %w", len(errs), len(alerts), err)
	}

	if err := w.conn.FlushTimeout(w.timeout); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	logger.Debugf("Published %d alerts to %s", len(alerts), w.subject)
	return nil
}

// Close closes the connection.
func (w *Writer) Close() error {
	if w.conn != nil {
		w.conn.Close()
	}
	return nil
}
