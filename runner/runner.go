// Package runner wires the stages of a batch step into a small channel
// pipeline: an IMAP fetch stage feeds envelopes in, the bridge normalizes
// dates and applies the regex filter, and a sink stage consumes the
// resulting records. Every stage reports progress on a shared event bus.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fluxmail/imapstep/config"
	"github.com/fluxmail/imapstep/emaildate"
	"github.com/fluxmail/imapstep/filter"
	"github.com/fluxmail/imapstep/model"
	"github.com/fluxmail/imapstep/stats"
)

type StageFunc func(context.Context) error

type Runner struct {
	cfg    config.Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	fetched chan model.Envelope
	records chan model.Message
	events  chan stats.Event

	subMu       sync.Mutex
	subscribers []chan stats.Event

	filter *filter.Filter

	workWG  sync.WaitGroup
	statsWG sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeFetchedOnce sync.Once
	closeRecordsOnce sync.Once
	closeEventsOnce  sync.Once
	since            time.Time
}

func New(cfg config.Config, logger *slog.Logger) (*Runner, error) {
	f, err := filter.New(filter.Options{
		IncludeHeader: cfg.IncludeHeader,
		IncludeBody:   cfg.IncludeBody,
		ExcludeHeader: cfg.ExcludeHeader,
		ExcludeBody:   cfg.ExcludeBody,
	})
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	r := &Runner{
		cfg:     cfg,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		fetched: make(chan model.Envelope, 32),
		records: make(chan model.Message, 32),
		events:  make(chan stats.Event, 128),
		filter:  f,
	}

	r.statsWG.Add(1)
	go r.dispatchEvents()

	r.AddStage("bridge", r.bridge)
	return r, nil
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

func (r *Runner) Context() context.Context {
	return r.ctx
}

// FetchedWriter is the channel the fetch stage writes envelopes into.
func (r *Runner) FetchedWriter() chan<- model.Envelope {
	return r.fetched
}

func (r *Runner) CloseFetched() {
	r.closeFetchedOnce.Do(func() {
		close(r.fetched)
	})
}

// Records is the normalized, filtered message stream the sink consumes.
func (r *Runner) Records() <-chan model.Message {
	return r.records
}

func (r *Runner) EmitEvent(evt stats.Event) {
	select {
	case <-r.ctx.Done():
	case r.events <- evt:
	}
}

// SubscribeStats attaches a stats consumer. Each subscriber gets its own
// channel fed by the dispatcher, so every consumer sees every event.
func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	sub := make(chan stats.Event, 128)
	r.subMu.Lock()
	r.subscribers = append(r.subscribers, sub)
	r.subMu.Unlock()

	r.statsWG.Add(1)
	go func() {
		defer r.statsWG.Done()
		if err := fn(r.ctx, sub); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stats: %w", name, err))
		}
	}()
}

// dispatchEvents fans the event bus out to the subscriber channels and
// closes them once the bus is drained.
func (r *Runner) dispatchEvents() {
	defer r.statsWG.Done()
	defer func() {
		r.subMu.Lock()
		for _, sub := range r.subscribers {
			close(sub)
		}
		r.subMu.Unlock()
	}()

	for evt := range r.events {
		r.subMu.Lock()
		subs := r.subscribers
		r.subMu.Unlock()

		for _, sub := range subs {
			select {
			case <-r.ctx.Done():
				return
			case sub <- evt:
			}
		}
	}
}

func (r *Runner) AddStage(name string, fn StageFunc) {
	r.workWG.Add(1)
	go func() {
		defer r.workWG.Done()
		if err := fn(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stage: %w", name, err))
		}
	}()
}

func (r *Runner) Start() error {
	r.since = time.Now()

	r.workWG.Wait()
	r.closeEvents()
	r.statsWG.Wait()

	r.cancel()

	err := r.err
	duration := time.Since(r.since)
	if err != nil {
		r.logger.Error("step failed", "duration", duration, "err", err)
		return err
	}

	r.logger.Info("step completed", "duration", duration)
	return nil
}

// bridge normalizes each fetched message's Date header and applies the
// regex filter before handing the record to the sink. A fetch-level error
// envelope is counted but does not abort the batch; the remaining messages
// still flow through.
func (r *Runner) bridge(ctx context.Context) error {
	defer r.closeRecords()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case envelope, ok := <-r.fetched:
			if !ok {
				return nil
			}

			if envelope.Err != nil {
				r.EmitEvent(stats.Event{Stage: stats.StageFetch, Type: stats.EventTypeError, Err: envelope.Err})
				continue
			}

			msg := envelope.Message
			r.EmitEvent(stats.Event{Stage: stats.StageFetch, Type: stats.EventTypeFetched, UID: msg.UID, MessageID: msg.MessageID})

			if !r.filter.AllowsMessage(&msg) {
				r.EmitEvent(stats.Event{Stage: stats.StageBridge, Type: stats.EventTypeFiltered, UID: msg.UID, MessageID: msg.MessageID})
				continue
			}

			r.normalizeDates(&msg)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case r.records <- msg:
			}
		}
	}
}

// normalizeDates fills DateParsed and, when parsing actually changed the
// header text, DateRegional. The raw header value stays on the record as
// the forensic original.
func (r *Runner) normalizeDates(msg *model.Message) {
	msg.DateParsed = emaildate.Parse(msg.DateRaw)

	if msg.DateParsed != "" && msg.DateParsed != msg.DateRaw {
		msg.DateRegional = emaildate.RenderCET(msg.DateParsed)
		r.EmitEvent(stats.Event{Stage: stats.StageBridge, Type: stats.EventTypeNormalized, UID: msg.UID, MessageID: msg.MessageID})
		return
	}

	if msg.DateRaw != "" {
		r.EmitEvent(stats.Event{Stage: stats.StageBridge, Type: stats.EventTypeFallback, UID: msg.UID, MessageID: msg.MessageID, Detail: msg.DateRaw})
	}
}

func (r *Runner) closeRecords() {
	r.closeRecordsOnce.Do(func() {
		close(r.records)
	})
}

func (r *Runner) closeEvents() {
	r.closeEventsOnce.Do(func() {
		close(r.events)
	})
}

func (r *Runner) fail(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
		r.cancel()
	}
	r.errMu.Unlock()
}
