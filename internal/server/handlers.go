package server

import (
	"context"
	"net/http"
	"time"

	"loan-intake/internal/common/validation"
	"loan-intake/internal/intake"
	"loan-intake/internal/models"
	"loan-intake/internal/routes"

	"github.com/go-chi/chi/v5"
)

type codeRequest struct {
	Code string `json:"code"`
}

type offersRequest struct {
	SsnLast4 string `json:"ssnLast4"`
}

type scheduleRequest struct {
	Slot     time.Time `json:"slot"`
	Timezone string    `json:"timezone"`
}

func codeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]interface{}{
			"code": map[string]interface{}{"type": "string", "maxLength": 10},
		},
	}
}

func offersSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]interface{}{
			"ssnLast4": map[string]interface{}{"type": "string", "maxLength": 4},
		},
	}
}

func scheduleSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"slot"},
		"properties": map[string]interface{}{
			"slot":     map[string]interface{}{"type": "string", "format": "date-time"},
			"timezone": map[string]interface{}{"type": "string"},
		},
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Orchestrator.View(r.Context()))
}

func (s *Server) handleEnter(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	route := routes.Route(chi.URLParam(r, "route"))
	writeResult(w, sess.Orchestrator.Enter(r.Context(), route))
}

func (s *Server) handleSubmitStep(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var update models.FormUpdate
	if res := decodeBody(r, validation.StepUpdateSchema(), &update); res != nil {
		writeResult(w, withView(r, sess, *res))
		return
	}
	writeResult(w, sess.Orchestrator.SubmitStep(r.Context(), update))
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.simple(w, r, (*intake.Orchestrator).GoBack)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.simple(w, r, (*intake.Orchestrator).Reset)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var update models.FormUpdate
	if res := decodeBody(r, validation.StepUpdateSchema(), &update); res != nil {
		writeResult(w, withView(r, sess, *res))
		return
	}
	writeResult(w, sess.Orchestrator.ConnectBySms(r.Context(), update))
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	s.simple(w, r, (*intake.Orchestrator).ResendCode)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req codeRequest
	if res := decodeBody(r, codeSchema(), &req); res != nil {
		writeResult(w, withView(r, sess, *res))
		return
	}
	writeResult(w, sess.Orchestrator.VerifyPhone(r.Context(), req.Code))
}

func (s *Server) handleReenter(w http.ResponseWriter, r *http.Request) {
	s.simple(w, r, (*intake.Orchestrator).ReenterInfo)
}

// handleManual fills a missing email from the session's form before the
// payload is checked.
func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var doc map[string]interface{}
	if res := decodeBody(r, nil, &doc); res != nil {
		writeResult(w, withView(r, sess, *res))
		return
	}
	if email, _ := doc["email"].(string); email == "" {
		doc["email"] = sess.Orchestrator.View(r.Context()).FormData.Email
	}

	var data models.ManualVerification
	if res := decodeDocument(doc, validation.ManualVerificationSchema(), &data); res != nil {
		writeResult(w, withView(r, sess, *res))
		return
	}
	writeResult(w, sess.Orchestrator.VerifyManually(r.Context(), data))
}

func (s *Server) handleManualRequest(w http.ResponseWriter, r *http.Request) {
	s.simple(w, r, (*intake.Orchestrator).RequestManualVerification)
}

func (s *Server) handleManualCancel(w http.ResponseWriter, r *http.Request) {
	s.simple(w, r, (*intake.Orchestrator).CancelManualVerification)
}

func (s *Server) handleOffers(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req offersRequest
	if res := decodeBody(r, offersSchema(), &req); res != nil {
		writeResult(w, withView(r, sess, *res))
		return
	}
	writeResult(w, sess.Orchestrator.SubmitApplication(r.Context(), req.SsnLast4))
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Orchestrator.Slots())
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if res := decodeBody(r, scheduleSchema(), &req); res != nil {
		writeResult(w, withView(r, sess, *res))
		return
	}
	writeResult(w, sess.Orchestrator.ScheduleCall(r.Context(), req.Slot, req.Timezone))
}

func (s *Server) handleBusinessHours(w http.ResponseWriter, _ *http.Request) {
	now := s.deps.Now()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"businessHours": s.deps.Calendar.IsBusinessHours(now),
		"timezone":      s.deps.Calendar.Location().String(),
		"checkedAt":     now.UTC().Format(time.RFC3339),
	})
}

// simple runs a body-less session operation.
func (s *Server) simple(w http.ResponseWriter, r *http.Request, op func(*intake.Orchestrator, context.Context) intake.Result) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeResult(w, op(sess.Orchestrator, r.Context()))
}

func withView(r *http.Request, sess *Session, res intake.Result) intake.Result {
	res.View = sess.Orchestrator.View(r.Context())
	return res
}
