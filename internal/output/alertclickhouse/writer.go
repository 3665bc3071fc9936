package alertclickhouse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"logsentry/pkg/models"
)

const clickhouseTimeLayout = "2006-01-02 15:04:05"

// Config configures the ClickHouse HTTP writer.
type Config struct {
	URL      string
	Database string
	Table    string
	Username string
	Password string
	Timeout  time.Duration
	Headers  map[string]string
}

// Row is the flattened alert stored in ClickHouse.
type Row struct {
	ID          string `json:"id"`
	RuleID      string `json:"rule_id"`
	GroupKey    string `json:"group_key"`
	CreatedAt   string `json:"created_at"`
	FirstSeen   string `json:"first_seen"`
	LastSeen    string `json:"last_seen"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	EventCount  int    `json:"event_count"`
	Events      string `json:"events"`
	Remediation string `json:"remediation"`
}

// Writer sends alerts to ClickHouse via HTTP JSONEachRow.
type Writer struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
}

// NewWriter creates a ClickHouse HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("clickhouse URL is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Table == "" {
		cfg.Table = "logsentry_alerts"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	q := fmt.Sprintf("INSERT INTO %s.%s FORMAT JSONEachRow", quoteIdent(cfg.Database), quoteIdent(cfg.Table))
	base := strings.TrimRight(cfg.URL, "/")
	endpoint := base + "/?query=" + url.QueryEscape(q)

	headers := map[string]string{}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.Username != "" {
		headers["X-ClickHouse-User"] = cfg.Username
	}
	if cfg.Password != "" {
		headers["X-ClickHouse-Key"] = cfg.Password
	}

	return &Writer{
		endpoint: endpoint,
		headers:  headers,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// RowFrom flattens an alert. Contributing events are stored as a JSON array.
func RowFrom(alert *models.Alert) (Row, error) {
	events, err := json.Marshal(alert.Events)
	if err != nil {
		return Row{}, err
	}
	row := Row{
		ID:          alert.ID,
		RuleID:      alert.RuleID,
		GroupKey:    alert.GroupKey,
		CreatedAt:   alert.CreatedAt.UTC().Format(clickhouseTimeLayout),
		Title:       alert.Title,
		Description: alert.Description,
		Priority:    alert.Priority,
		EventCount:  len(alert.Events),
		Events:      string(events),
		Remediation: alert.Remediation,
	}
	if n := len(alert.Events); n > 0 {
		row.FirstSeen = alert.Events[0].Timestamp.UTC().Format(clickhouseTimeLayout)
		row.LastSeen = alert.Events[n-1].Timestamp.UTC().Format(clickhouseTimeLayout)
	}
	return row, nil
}

// WriteAlerts sends a batch of alerts.
func (w *Writer) WriteAlerts(alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, alert := range alerts {
		row, err := RowFrom(alert)
		if err != nil {
			return fmt.Errorf("failed to flatten alert %s: %w", alert.ID, err)
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to marshal alert row: %w", err)
		}
	}

	req, err := http.NewRequest(http.MethodPost, w.endpoint, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("clickhouse request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("clickhouse request failed with status %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// Close releases resources.
func (w *Writer) Close() error {
	return nil
}

func quoteIdent(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "`", "")
	return "`" + v + "`"
}
