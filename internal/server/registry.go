package server

import (
	"sync"
	"time"

	"loan-intake/internal/analytics"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/intake"
)

// Session is one visitor's orchestrator as held by the registry.
type Session struct {
	ID           string
	VisitorID    string
	Orchestrator *intake.Orchestrator
	Tracker      *analytics.Tracker

	lastSeen time.Time
}

// Registry holds live sessions in memory and evicts idle ones.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idleTTL  time.Duration
	now      func() time.Time
	logger   logger.Logger
}

func NewRegistry(idleTTL time.Duration, now func() time.Time, log logger.Logger) *Registry {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		idleTTL:  idleTTL,
		now:      now,
		logger:   log,
	}
}

// Put stores s and marks it as seen.
func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.lastSeen = r.now()
	if _, exists := r.sessions[s.ID]; !exists {
		metrics.ActiveSessions.Inc()
	}
	r.sessions[s.ID] = s
}

// Get returns the session and refreshes its idle timer.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	s.lastSeen = r.now()
	return s, true
}

// ForVisitor returns a live session already bound to visitorID.
func (r *Registry) ForVisitor(visitorID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.VisitorID == visitorID {
			s.lastSeen = r.now()
			return s, true
		}
	}
	return nil, false
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Evict drops sessions idle for longer than the TTL and returns how many
// were removed. Pending analytics of evicted sessions are flushed first.
func (r *Registry) Evict() int {
	r.mu.Lock()
	var idle []*Session
	cutoff := r.now().Add(-r.idleTTL)
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		metrics.ActiveSessions.Dec()
		if s.Tracker != nil {
			s.Tracker.Wait()
		}
	}
	if len(idle) > 0 {
		r.logger.Info("Evicted idle sessions", map[string]interface{}{
			"count":     len(idle),
			"remaining": r.Len(),
		})
	}
	return len(idle)
}

// RunEviction evicts idle sessions every interval until stop is closed.
func (r *Registry) RunEviction(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Evict()
		case <-stop:
			return
		}
	}
}
