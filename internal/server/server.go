// Package server exposes intake sessions over HTTP. Each session owns one
// orchestrator; handlers translate requests into orchestrator operations
// and render the resulting view.
package server

import (
	"context"
	"net/http"
	"time"

	"loan-intake/internal/analytics"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/intake"
	"loan-intake/internal/iplookup"
	"loan-intake/internal/leads"
	"loan-intake/internal/schedule"
	"loan-intake/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LeadsProvider selects the leads client for a request hostname.
type LeadsProvider interface {
	ForHost(hostname string) (leads.Client, error)
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Dependencies struct {
	SessionKV storage.KV
	DurableKV storage.KV
	Leads     LeadsProvider
	Sink      analytics.Sink
	// Forms is nil when HubSpot submission is disabled.
	Forms      intake.FormSubmitter
	IPResolver iplookup.Resolver
	Calendar   *schedule.Calendar
	Logger     logger.Logger
	Now        func() time.Time
	// Readiness lists named dependencies that must answer a ping.
	Readiness map[string]Pinger
}

type Options struct {
	Intake         intake.Options
	BlockWindow    time.Duration
	SessionIdleTTL time.Duration
}

type Server struct {
	deps     Dependencies
	opts     Options
	registry *Registry
	logger   logger.Logger
}

func New(deps Dependencies, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Calendar == nil {
		deps.Calendar = schedule.MustCalendar(schedule.DefaultTimezone)
	}
	if deps.Sink == nil {
		deps.Sink = analytics.NewLogSink(deps.Logger)
	}
	if opts.SessionIdleTTL <= 0 {
		opts.SessionIdleTTL = 30 * time.Minute
	}
	return &Server{
		deps:     deps,
		opts:     opts,
		registry: NewRegistry(opts.SessionIdleTTL, deps.Now, deps.Logger),
		logger:   deps.Logger,
	}
}

func (s *Server) Registry() *Registry {
	return s.registry
}

// Routes returns the HTTP handler for the intake API and the operational
// endpoints.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/schedule/business-hours", s.handleBusinessHours)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/routes/{route}", s.handleEnter)
			r.Post("/steps", s.handleSubmitStep)
			r.Post("/back", s.handleBack)
			r.Post("/reset", s.handleReset)

			r.Post("/sms/connect", s.handleConnect)
			r.Post("/sms/resend", s.handleResend)
			r.Post("/sms/verify", s.handleVerify)
			r.Post("/reenter", s.handleReenter)

			r.Post("/manual", s.handleManual)
			r.Post("/manual/request", s.handleManualRequest)
			r.Post("/manual/cancel", s.handleManualCancel)

			r.Post("/offers", s.handleOffers)

			r.Get("/schedule/slots", s.handleSlots)
			r.Post("/schedule", s.handleSchedule)
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		fields := map[string]interface{}{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"duration":  time.Since(start).Milliseconds(),
			"requestId": middleware.GetReqID(r.Context()),
		}
		if ww.Status() >= http.StatusInternalServerError {
			s.logger.Error("Request failed", fields)
			return
		}
		s.logger.Debug("Request served", fields)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, p := range s.deps.Readiness {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		s.logger.Warn("Readiness check failed", map[string]interface{}{"failed": failed})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unavailable",
			"failed": failed,
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}
