// Package analytics carries the write-only marketing contract of the intake
// flow: page context, visitor identity and named events.
package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"loan-intake/internal/common/logger"
)

// Event is one tracked action.
type Event struct {
	Name       string                 `json:"event"`
	VisitorID  string                 `json:"visitorId"`
	FormStep   string                 `json:"formStep,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Properties map[string]interface{} `json:"formData,omitempty"`
	Time       time.Time              `json:"time"`
}

// Identity attaches attributes to a visitor.
type Identity struct {
	VisitorID  string                 `json:"visitorId"`
	Properties map[string]interface{} `json:"properties"`
}

// PageContext is the page the visitor is looking at.
type PageContext struct {
	VisitorID string `json:"visitorId"`
	Path      string `json:"path"`
	Title     string `json:"title"`
}

// Sink receives analytics writes. Implementations must be safe for
// concurrent use.
type Sink interface {
	RecordEvent(ctx context.Context, e Event) error
	Identify(ctx context.Context, id Identity) error
	SetPageContext(ctx context.Context, p PageContext) error
}

// Recorder keeps everything in memory.
type Recorder struct {
	mu         sync.Mutex
	events     []Event
	identities []Identity
	pages      []PageContext
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RecordEvent(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Identify(_ context.Context, id Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities = append(r.identities, id)
	return nil
}

func (r *Recorder) SetPageContext(_ context.Context, p PageContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, p)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// EventNames lists recorded event names in order.
func (r *Recorder) EventNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, e := range r.events {
		names[i] = e.Name
	}
	return names
}

func (r *Recorder) Identities() []Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Identity(nil), r.identities...)
}

func (r *Recorder) Pages() []PageContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PageContext(nil), r.pages...)
}

// LogSink writes every call to the structured logger.
type LogSink struct {
	logger logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) RecordEvent(_ context.Context, e Event) error {
	fields := map[string]interface{}{
		"event":     e.Name,
		"visitorId": e.VisitorID,
	}
	if e.FormStep != "" {
		fields["formStep"] = e.FormStep
	}
	if e.Error != "" {
		fields["error"] = e.Error
	}
	s.logger.Info("Analytics event", fields)
	return nil
}

func (s *LogSink) Identify(_ context.Context, id Identity) error {
	keys := make([]string, 0, len(id.Properties))
	for k := range id.Properties {
		keys = append(keys, k)
	}
	s.logger.Debug("Analytics identify", map[string]interface{}{
		"visitorId":  id.VisitorID,
		"properties": keys,
	})
	return nil
}

func (s *LogSink) SetPageContext(_ context.Context, p PageContext) error {
	s.logger.Debug("Analytics page", map[string]interface{}{
		"visitorId": p.VisitorID,
		"path":      p.Path,
		"title":     p.Title,
	})
	return nil
}

// Publisher publishes a JSON payload under an event type.
type Publisher interface {
	PublishJSON(ctx context.Context, eventType string, payload interface{}) (string, error)
}

// SNSSink forwards analytics writes to a marketing topic.
type SNSSink struct {
	publisher Publisher
}

func NewSNSSink(p Publisher) *SNSSink {
	return &SNSSink{publisher: p}
}

func (s *SNSSink) RecordEvent(ctx context.Context, e Event) error {
	_, err := s.publisher.PublishJSON(ctx, "analytics.event", e)
	return err
}

func (s *SNSSink) Identify(ctx context.Context, id Identity) error {
	_, err := s.publisher.PublishJSON(ctx, "analytics.identify", id)
	return err
}

func (s *SNSSink) SetPageContext(ctx context.Context, p PageContext) error {
	_, err := s.publisher.PublishJSON(ctx, "analytics.page", p)
	return err
}

// Multi fans out to every sink and joins their errors.
type Multi []Sink

func (m Multi) RecordEvent(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.RecordEvent(ctx, e))
	}
	return errors.Join(errs...)
}

func (m Multi) Identify(ctx context.Context, id Identity) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Identify(ctx, id))
	}
	return errors.Join(errs...)
}

func (m Multi) SetPageContext(ctx context.Context, p PageContext) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.SetPageContext(ctx, p))
	}
	return errors.Join(errs...)
}
