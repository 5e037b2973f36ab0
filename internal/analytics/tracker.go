package analytics

import (
	"context"
	"sync"
	"time"

	"loan-intake/internal/common/logger"
)

const dispatchTimeout = 5 * time.Second

// Tracker binds a sink to one visitor. Writes are dispatched in the
// background and never fail the caller.
type Tracker struct {
	sink      Sink
	visitorID string
	logger    logger.Logger
	now       func() time.Time

	mu    sync.Mutex
	fired map[string]bool
	wg    sync.WaitGroup
}

func NewTracker(sink Sink, visitorID string, log logger.Logger) *Tracker {
	return &Tracker{
		sink:      sink,
		visitorID: visitorID,
		logger:    log,
		now:       time.Now,
		fired:     make(map[string]bool),
	}
}

// TrackStep emits "step:<route>" at most once per tracker.
func (t *Tracker) TrackStep(route string, formData map[string]interface{}) {
	name := "step:" + route

	t.mu.Lock()
	if t.fired[name] {
		t.mu.Unlock()
		return
	}
	t.fired[name] = true
	t.mu.Unlock()

	t.dispatch("event", func(ctx context.Context) error {
		return t.sink.RecordEvent(ctx, Event{
			Name:       name,
			VisitorID:  t.visitorID,
			FormStep:   route,
			Properties: formData,
			Time:       t.now().UTC(),
		})
	})
}

func (t *Tracker) TrackEvent(name string, props map[string]interface{}) {
	t.dispatch("event", func(ctx context.Context) error {
		return t.sink.RecordEvent(ctx, Event{
			Name:       name,
			VisitorID:  t.visitorID,
			Properties: props,
			Time:       t.now().UTC(),
		})
	})
}

func (t *Tracker) TrackError(name, message string, props map[string]interface{}) {
	t.dispatch("event", func(ctx context.Context) error {
		return t.sink.RecordEvent(ctx, Event{
			Name:       name,
			VisitorID:  t.visitorID,
			Error:      message,
			Properties: props,
			Time:       t.now().UTC(),
		})
	})
}

func (t *Tracker) Identify(props map[string]interface{}) {
	t.dispatch("identify", func(ctx context.Context) error {
		return t.sink.Identify(ctx, Identity{VisitorID: t.visitorID, Properties: props})
	})
}

func (t *Tracker) SetPage(path, title string) {
	t.dispatch("page", func(ctx context.Context) error {
		return t.sink.SetPageContext(ctx, PageContext{VisitorID: t.visitorID, Path: path, Title: title})
	})
}

// Reset forgets which step events have fired.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.fired = make(map[string]bool)
	t.mu.Unlock()
}

// Go runs fn in the background with the same bounded context and logging
// as sink writes.
func (t *Tracker) Go(kind string, fn func(ctx context.Context) error) {
	t.dispatch(kind, fn)
}

// Wait blocks until every dispatched write has finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) dispatch(kind string, fn func(ctx context.Context) error) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			t.logger.Warn("Background dispatch failed", map[string]interface{}{
				"kind":      kind,
				"visitorId": t.visitorID,
				"error":     err.Error(),
			})
		}
	}()
}
