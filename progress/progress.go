package progress

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/fluxmail/imapstep/stats"
)

// Bar manages a progress bar for a batch step run.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	mu      sync.Mutex
	enabled bool
}

// New creates a progress bar sized to the number of messages the step will
// fetch. The bar is only shown at the default info log level; debug runs
// log individual messages instead.
func New(title string, total int, logLevel string) *Bar {
	bar := &Bar{
		total:   total,
		enabled: logLevel == "info" && total > 0,
	}

	if bar.enabled {
		// Stdout carries the step's records; all decoration goes to stderr.
		pb, _ := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle(title).
			WithWriter(os.Stderr).
			Start()
		bar.pb = pb
	}

	return bar
}

// Update advances the bar based on the event type.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeFetched:
		b.pb.Increment()
		if evt.MessageID != "" {
			displayID := evt.MessageID
			if len(displayID) > 40 {
				displayID = displayID[:37] + "..."
			}
			b.pb.UpdateTitle("Processing: " + displayID)
		}
	case stats.EventTypeError:
		if evt.Err != nil {
			pterm.Error.WithWriter(os.Stderr).Printf("Error: %v\n", evt.Err)
		}
	}
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}
	b.pb.Stop()
}

// Subscriber adapts the bar to the stats event bus.
func (b *Bar) Subscriber(ctx context.Context, events <-chan stats.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			b.Update(evt)
		}
	}
}

// Reporter couples the progress bar with a stats collector and prints the
// final summary once the run ends.
type Reporter struct {
	bar       *Bar
	collector *stats.Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream stats.EventStream, bar *Bar, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		bar:       bar,
		collector: stats.NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}

	if bar != nil && bar.enabled {
		stream.SubscribeStats("progress-bar", bar.Subscriber)
		stream.SubscribeStats("progress-stats", reporter.collectStats)
	}

	return reporter
}

func (r *Reporter) collectStats(ctx context.Context, events <-chan stats.Event) error {
	r.collector.Run(ctx, events)

	summary := r.collector.Snapshot()
	duration := time.Since(r.started)

	info := pterm.Info.WithWriter(os.Stderr)
	section := pterm.DefaultSection.WithWriter(os.Stderr)

	section.Println("Summary")
	info.Printf("Duration: %v\n", duration)
	info.Printf("Fetched: %d\n", summary.Fetched)
	info.Printf("Dates normalized: %d\n", summary.Normalized)
	info.Printf("Dates kept raw: %d\n", summary.Fallbacks)
	info.Printf("Filtered out: %d\n", summary.Filtered)
	info.Printf("Emitted: %d\n", summary.Emitted)
	info.Printf("Downloaded: %d\n", summary.Downloaded)
	info.Printf("Skipped: %d\n", summary.Skipped)
	info.Printf("Exported: %d\n", summary.Exported)
	info.Printf("Errors: %d\n", summary.Errors)
	if summary.LastError != nil {
		pterm.Error.WithWriter(os.Stderr).Printf("Last error: %v\n", summary.LastError)
	}

	return nil
}
