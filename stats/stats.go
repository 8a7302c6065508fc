package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Stage string

const (
	StageFetch  Stage = "fetch"
	StageBridge Stage = "bridge"
	StageSink   Stage = "sink"
)

type EventType string

const (
	EventTypeFetched    EventType = "fetched"
	EventTypeNormalized EventType = "normalized"
	EventTypeFallback   EventType = "date_fallback"
	EventTypeFiltered   EventType = "filtered"
	EventTypeEmitted    EventType = "emitted"
	EventTypeDownloaded EventType = "downloaded"
	EventTypeSkipped    EventType = "skipped"
	EventTypeExported   EventType = "exported"
	EventTypeError      EventType = "error"
)

type Event struct {
	Stage     Stage
	Type      EventType
	UID       uint32
	MessageID string
	Err       error
	Detail    string
}

// Summary aggregates the per-message events of one batch step run.
type Summary struct {
	Fetched    int
	Normalized int
	Fallbacks  int
	Filtered   int
	Emitted    int
	Downloaded int
	Skipped    int
	Exported   int
	Errors     int
	LastError  error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"fetched", s.Fetched,
		"normalized", s.Normalized,
		"dateFallbacks", s.Fallbacks,
		"filtered", s.Filtered,
		"emitted", s.Emitted,
		"downloaded", s.Downloaded,
		"skipped", s.Skipped,
		"exported", s.Exported,
		"errors", s.Errors,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.apply(evt)
		}
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}

func (c *Collector) apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeFetched:
		c.summary.Fetched++
	case EventTypeNormalized:
		c.summary.Normalized++
	case EventTypeFallback:
		c.summary.Fallbacks++
	case EventTypeFiltered:
		c.summary.Filtered++
	case EventTypeEmitted:
		c.summary.Emitted++
	case EventTypeDownloaded:
		c.summary.Downloaded++
	case EventTypeSkipped:
		c.summary.Skipped++
	case EventTypeExported:
		c.summary.Exported++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

type EventStream interface {
	SubscribeStats(name string, fn func(context.Context, <-chan Event) error)
}

// Reporter consumes the event stream and logs a summary once the run ends.
type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("stats-reporter", reporter.consume)
	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan Event) error {
	r.collector.Run(ctx, events)
	summary := r.collector.Snapshot()
	attrs := append(summary.LogAttrs(), "duration", time.Since(r.started))
	if ctx.Err() != nil {
		if r.logger != nil {
			r.logger.Debug("stats collection stopped", append(attrs, "err", ctx.Err())...)
		}
		return ctx.Err()
	}
	if r.logger != nil {
		r.logger.Info("stats summary", attrs...)
	}
	return nil
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}
