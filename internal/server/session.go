package server

import (
	"net/http"
	"strings"

	"loan-intake/internal/analytics"
	"loan-intake/internal/common/config"
	stderrors "loan-intake/internal/common/errors"
	"loan-intake/internal/common/hubspot"
	"loan-intake/internal/intake"
	"loan-intake/internal/iplookup"
	"loan-intake/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type createSessionRequest struct {
	VisitorID   string            `json:"visitorId"`
	LandingPage string            `json:"landingPage"`
	Referrer    string            `json:"referrer"`
	Query       map[string]string `json:"query"`
}

type sessionResponse struct {
	SessionID string        `json:"sessionId"`
	VisitorID string        `json:"visitorId"`
	Result    intake.Result `json:"result"`
}

func createSessionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]interface{}{
			"visitorId":   map[string]interface{}{"type": "string"},
			"landingPage": map[string]interface{}{"type": "string", "maxLength": 2048},
			"referrer":    map[string]interface{}{"type": "string", "maxLength": 2048},
			"query": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": map[string]interface{}{"type": "string"},
			},
		},
	}
}

// handleCreateSession starts a session, or resumes the live one for a
// known visitor. A visitor id without a live session keeps its stored
// state.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if res := decodeBody(r, createSessionSchema(), &req); res != nil {
		writeResult(w, *res)
		return
	}

	visitorID := req.VisitorID
	if visitorID != "" {
		if _, err := uuid.Parse(visitorID); err != nil {
			writeResult(w, *badRequest("visitorId", "visitorId must be a UUID"))
			return
		}
		if existing, ok := s.registry.ForVisitor(visitorID); ok {
			writeJSON(w, http.StatusOK, sessionResponse{
				SessionID: existing.ID,
				VisitorID: visitorID,
				Result:    intake.Result{Success: true, View: existing.Orchestrator.View(r.Context())},
			})
			return
		}
	} else {
		visitorID = uuid.NewString()
	}

	client, err := s.deps.Leads.ForHost(r.Host)
	if err != nil {
		s.logger.Error("Failed to build leads client", map[string]interface{}{
			"host":  r.Host,
			"error": err.Error(),
		})
		writeError(w, http.StatusInternalServerError, stderrors.NewExternalServiceError("leads", err))
		return
	}

	log := s.logger.WithFields(map[string]interface{}{"visitorId": visitorID})
	store := storage.NewStore(storage.StoreDependencies{
		Session:     s.deps.SessionKV,
		Durable:     s.deps.DurableKV,
		Logger:      log,
		Now:         s.deps.Now,
		BlockWindow: s.opts.BlockWindow,
	}, visitorID)
	tracker := analytics.NewTracker(s.deps.Sink, visitorID, log)

	o := intake.New(intake.Dependencies{
		Store:      store,
		Leads:      client,
		Tracker:    tracker,
		Logger:     log,
		Forms:      s.deps.Forms,
		IPResolver: s.deps.IPResolver,
		Calendar:   s.deps.Calendar,
		Now:        s.deps.Now,
	}, s.opts.Intake)

	res := o.Init(r.Context(), iplookup.FromRemoteAddr(r.RemoteAddr), visitFromRequest(r, req))

	sess := &Session{
		ID:           uuid.NewString(),
		VisitorID:    visitorID,
		Orchestrator: o,
		Tracker:      tracker,
	}
	s.registry.Put(sess)

	log.Info("Session started", map[string]interface{}{
		"sessionId": sess.ID,
		"route":     string(res.View.Route),
	})
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: sess.ID,
		VisitorID: visitorID,
		Result:    res,
	})
}

// session resolves the {sessionID} parameter or writes a 404.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := chi.URLParam(r, "sessionID")
	sess, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, stderrors.NewSessionNotFoundError(id))
		return nil, false
	}
	return sess, true
}

// visitFromRequest describes the visitor's arrival. Body values win over
// the request's own query and Referer header.
func visitFromRequest(r *http.Request, req createSessionRequest) hubspot.Visit {
	query := make(map[string]string, len(req.Query))
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	for k, v := range req.Query {
		query[k] = v
	}

	referrer := req.Referrer
	if referrer == "" {
		referrer = r.Referer()
	}

	ua := r.UserAgent()
	return hubspot.Visit{
		Domain:      config.DomainType(r.Host),
		Query:       query,
		Referrer:    referrer,
		LandingPage: req.LandingPage,
		Device:      deviceType(ua),
		Platform:    platform(ua),
	}
}

func deviceType(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		return "tablet"
	case strings.Contains(lower, "mobi") || strings.Contains(lower, "android"):
		return "mobile"
	default:
		return "desktop"
	}
}

func platform(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "iphone") || strings.Contains(lower, "ipad"):
		return "ios"
	case strings.Contains(lower, "android"):
		return "android"
	case strings.Contains(lower, "windows"):
		return "windows"
	case strings.Contains(lower, "mac os"):
		return "macos"
	case strings.Contains(lower, "linux"):
		return "linux"
	default:
		return "other"
	}
}
