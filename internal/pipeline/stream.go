package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"logsentry/internal/logger"
	"logsentry/internal/transform/logline"
	"logsentry/pkg/models"
)

// Source yields raw NDJSON records. A nil payload with a nil error means no
// record was available yet.
type Source interface {
	Pop(ctx context.Context) ([]byte, error)
	Name() string
	Close() error
}

// EventProcessor evaluates one event at a time, in arrival order.
type EventProcessor interface {
	ProcessEvent(event models.Event) ([]*models.Alert, error)
}

// Stats receives pipeline counters. *metrics.Metrics implements it.
type Stats interface {
	IncrementEventsInvalid()
	IncrementAlertWriteErrors()
	AddAlertsWritten(n int)
}

type noopStats struct{}

func (noopStats) IncrementEventsInvalid()    {}
func (noopStats) IncrementAlertWriteErrors() {}
func (noopStats) AddAlertsWritten(int)       {}

// Options tunes batching.
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	RetryDelay    time.Duration
	Location      *time.Location
	Stats         Stats
}

// StreamPipeline reads records from a source, runs them through the engine on
// a single goroutine and writes alerts in batches.
type StreamPipeline struct {
	source        Source
	engine        EventProcessor
	writer        AlertWriter
	stats         Stats
	location      *time.Location
	batchSize     int
	flushInterval time.Duration
	retryDelay    time.Duration
}

// NewStreamPipeline creates a pipeline.
func NewStreamPipeline(source Source, engine EventProcessor, writer AlertWriter, opts Options) *StreamPipeline {
	p := &StreamPipeline{
		source:        source,
		engine:        engine,
		writer:        writer,
		stats:         opts.Stats,
		location:      opts.Location,
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		retryDelay:    opts.RetryDelay,
	}
	if p.stats == nil {
		p.stats = noopStats{}
	}
	if p.location == nil {
		p.location = time.UTC
	}
	if p.batchSize <= 0 {
		p.batchSize = 100
	}
	if p.flushInterval <= 0 {
		p.flushInterval = 2 * time.Second
	}
	if p.retryDelay <= 0 {
		p.retryDelay = time.Second
	}
	return p
}

// Run blocks until ctx is cancelled. Buffered alerts get a final flush attempt.
func (p *StreamPipeline) Run(ctx context.Context) error {
	logger.Infof("Stream pipeline started (source=%s)", p.source.Name())

	msgCh := make(chan []byte, p.batchSize)
	alertCh := make(chan []*models.Alert, p.batchSize)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(msgCh)
		p.readLoop(ctx, msgCh)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(alertCh)
		p.detectLoop(msgCh, alertCh)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.writeLoop(ctx, alertCh)
	}()

	wg.Wait()
	logger.Infof("Stream pipeline stopped")
	return ctx.Err()
}

// Close releases pipeline resources.
func (p *StreamPipeline) Close() error {
	var errs []error
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			logger.Errorf("Failed to close alert writer: %v", err)
			errs = append(errs, err)
		}
	}
	if p.source != nil {
		if err := p.source.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *StreamPipeline) readLoop(ctx context.Context, out chan<- []byte) {
	for {
		if ctx.Err() != nil {
			return
		}
		payload, err := p.source.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to pop message from %s: %v", p.source.Name(), err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if payload == nil {
			continue
		}
		select {
		case out <- payload:
		case <-ctx.Done():
			return
		}
	}
}

func (p *StreamPipeline) detectLoop(in <-chan []byte, out chan<- []*models.Alert) {
	for payload := range in {
		event, err := logline.ParseInLocation(payload, p.source.Name(), p.location)
		if err != nil {
			p.stats.IncrementEventsInvalid()
			logger.Warnf("Dropping record from %s: %v", p.source.Name(), err)
			continue
		}

		alerts, err := p.engine.ProcessEvent(*event)
		if err != nil {
			logger.Errorf("Detection fault: %v", err)
		}
		if len(alerts) > 0 {
			out <- alerts
		}
	}
}

func (p *StreamPipeline) writeLoop(ctx context.Context, in <-chan []*models.Alert) {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	var batch []*models.Alert

	flush := func() {
		for len(batch) > 0 {
			if err := p.writer.WriteAlerts(batch); err != nil {
				p.stats.IncrementAlertWriteErrors()
				logger.Errorf("Failed to write %d alerts: %v", len(batch), err)
				select {
				case <-ctx.Done():
					logger.Warnf("Dropping %d alerts on shutdown", len(batch))
					batch = nil
					return
				case <-time.After(p.retryDelay):
				}
				continue
			}
			p.stats.AddAlertsWritten(len(batch))
			batch = nil
		}
	}

	for {
		select {
		case <-ticker.C:
			flush()
		case alerts, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, alerts...)
			if len(batch) >= p.batchSize {
				flush()
			}
		}
	}
}
