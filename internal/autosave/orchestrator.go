// Package autosave persists assessment responses periodically and on demand.
//
// The orchestrator moves through idle -> saving -> saved|error. At most one
// save runs at a time; triggers that arrive while saving are dropped and the
// next tick picks up whatever changed meanwhile. Transport retries belong to
// the save function, the orchestrator itself never loops.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/sameera/osem-ladders-sub001/internal/models"
)

const (
	// DefaultInterval is the period between scheduled saves
	DefaultInterval = 30 * time.Second

	meterName = "github.com/sameera/osem-ladders-sub001/internal/autosave"
)

var timeNow = time.Now

// Source supplies the payload of a save
type Source interface {
	Responses() models.Responses
}

// SaveFunc persists a responses snapshot
type SaveFunc func(ctx context.Context, responses models.Responses) error

// Option configures the orchestrator
type Option func(*Orchestrator)

// WithInterval sets the period of scheduled saves
func WithInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.interval = d
		}
	}
}

// Orchestrator schedules saves and tracks their status
type Orchestrator struct {
	mu         sync.Mutex
	source     Source
	save       SaveFunc
	interval   time.Duration
	status     Status
	generation uint64
	// inFlight outlives Reset; only finish clears it
	inFlight bool
	saveDone chan struct{}

	subscribers map[int]func(Status)
	nextSubID   int

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	saves     metric.Int64Counter
	coalesced metric.Int64Counter
}

// New creates an orchestrator that saves source through save
func New(source Source, save SaveFunc, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:      source,
		save:        save,
		interval:    DefaultInterval,
		subscribers: make(map[int]func(Status)),
	}
	for _, opt := range opts {
		opt(o)
	}

	meter := otel.Meter(meterName)
	o.saves = int64Counter(meter, "ladder.autosave.saves", "Completed saves, by outcome")
	o.coalesced = int64Counter(meter, "ladder.autosave.coalesced", "Save triggers dropped while a save was in flight")

	return o
}

func int64Counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		otel.Handle(err)
		counter, _ = noop.Meter{}.Int64Counter(name)
	}
	return counter
}

// Status returns the current status
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Subscribe registers fn for every status transition and returns a function that removes it
func (o *Orchestrator) Subscribe(fn func(Status)) func() {
	o.mu.Lock()
	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subscribers, id)
		o.mu.Unlock()
	}
}

// Save runs a save unless one is already in flight and returns the resulting status.
// A coalesced trigger returns the current status. A save started before Reset
// still counts as in flight until it returns.
func (o *Orchestrator) Save(ctx context.Context, reason string) Status {
	o.mu.Lock()
	if o.inFlight {
		status := o.status
		o.mu.Unlock()
		o.coalesced.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		slog.Debug("save already in flight, trigger dropped", "reason", reason)
		return status
	}
	return o.runLocked(ctx, reason)
}

// Flush waits for a save in flight to return and then saves, so the result
// covers every edit made before the call. It gives up when ctx is done.
func (o *Orchestrator) Flush(ctx context.Context, reason string) Status {
	for {
		o.mu.Lock()
		if !o.inFlight {
			return o.runLocked(ctx, reason)
		}
		done := o.saveDone
		o.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return Status{Kind: KindError, Err: ctx.Err()}
		}
	}
}

// runLocked starts a save; it must be called with mu held and releases it
func (o *Orchestrator) runLocked(ctx context.Context, reason string) Status {
	gen := o.generation
	o.inFlight = true
	o.saveDone = make(chan struct{})
	o.setLocked(Status{Kind: KindSaving})
	payload := o.source.Responses()
	o.mu.Unlock()

	slog.Debug("saving responses", "reason", reason, "count", len(payload))
	err := o.save(ctx, payload)

	return o.finish(ctx, gen, reason, err)
}

// Retry repeats a failed save. It is a no-op unless the status is error.
func (o *Orchestrator) Retry(ctx context.Context) Status {
	if !o.Status().CanRetry() {
		return o.Status()
	}
	return o.Save(ctx, "retry")
}

// MarkDirty records an edit; a saved or error status returns to idle
func (o *Orchestrator) MarkDirty() {
	o.mu.Lock()
	if o.status.Kind != KindSaved && o.status.Kind != KindError {
		o.mu.Unlock()
		return
	}
	o.setLocked(Status{Kind: KindIdle})
	o.mu.Unlock()
}

// Reset stops scheduled saves and returns to idle. The result of a save
// still in flight is discarded.
func (o *Orchestrator) Reset() {
	o.Stop()

	o.mu.Lock()
	o.generation++
	o.setLocked(Status{Kind: KindIdle})
	o.mu.Unlock()
	slog.Info("autosave reset")
}

// Start begins scheduled saves in a goroutine
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return
	}
	o.running = true
	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})

	go o.run(ctx, o.stopCh, o.doneCh)
}

// Stop halts scheduled saves and waits for the loop to exit
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	stopCh, doneCh := o.stopCh, o.doneCh
	o.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (o *Orchestrator) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	slog.Info("autosave started", "interval", o.interval)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("autosave stopped")
			return
		case <-stopCh:
			slog.Info("autosave stopped")
			return
		case <-ticker.C:
			o.Save(ctx, "interval")
		}
	}
}

func (o *Orchestrator) finish(ctx context.Context, gen uint64, reason string, err error) Status {
	o.mu.Lock()
	o.inFlight = false
	close(o.saveDone)
	if gen != o.generation {
		status := o.status
		o.mu.Unlock()
		slog.Debug("discarding result of save started before reset", "reason", reason, "error", err)
		return status
	}

	var next Status
	if err != nil {
		next = Status{Kind: KindError, Err: err}
	} else {
		next = Status{Kind: KindSaved, SavedAt: timeNow()}
	}
	o.setLocked(next)
	o.mu.Unlock()

	outcome := "ok"
	if err != nil {
		outcome = "error"
		slog.Error("save failed", "reason", reason, "error", err)
	} else {
		slog.Info("responses saved", "reason", reason, "at", next.SavedAt)
	}
	o.saves.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))

	return next
}

// setLocked must be called with mu held; subscribers run synchronously and must not call back in
func (o *Orchestrator) setLocked(status Status) {
	o.status = status
	for _, fn := range o.subscribers {
		fn(status)
	}
}
