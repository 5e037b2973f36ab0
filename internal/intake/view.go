package intake

import (
	"context"
	"time"

	"loan-intake/internal/models"
	"loan-intake/internal/routes"
)

// Result is what every operation returns. Errors never escape as Go errors.
type Result struct {
	Success          bool              `json:"success"`
	Error            string            `json:"error,omitempty"`
	ErrorCode        string            `json:"errorCode,omitempty"`
	ValidationErrors map[string]string `json:"validationErrors,omitempty"`
	RedirectURL      string            `json:"redirectUrl,omitempty"`
	RedirectDelayMs  int64             `json:"redirectDelayMs,omitempty"`
	View             View              `json:"view"`
}

// View is the render state of the session.
type View struct {
	Route                routes.Route             `json:"route"`
	Step                 int                      `json:"step"`
	TotalSteps           int                      `json:"totalSteps"`
	PageTitle            string                   `json:"pageTitle"`
	CanGoBack            bool                     `json:"canGoBack"`
	FormData             models.FormData          `json:"formData"`
	ValidationErrors     map[string]string        `json:"validationErrors,omitempty"`
	Error                string                   `json:"error,omitempty"`
	Loading              bool                     `json:"loading"`
	LoadingMessage       string                   `json:"loadingMessage,omitempty"`
	ManualVerification   bool                     `json:"manualVerification"`
	ContactAttempts      int                      `json:"contactAttempts"`
	VerificationAttempts int                      `json:"verificationAttempts"`
	MaxAttempts          int                      `json:"maxAttempts"`
	ApplicationStatus    models.ApplicationStatus `json:"applicationStatus"`
	BlockDaysRemaining   int                      `json:"blockDaysRemaining"`
	ContactFirstName     string                   `json:"contactFirstName,omitempty"`
	ScheduledTime        *time.Time               `json:"scheduledTime,omitempty"`
	BusinessHours        bool                     `json:"businessHours"`
}

func (o *Orchestrator) view(ctx context.Context) View {
	v := View{
		Route:                o.state.Route,
		Step:                 routes.CurrentStep(string(o.state.Route)),
		TotalSteps:           routes.TotalSteps(),
		PageTitle:            routes.PageTitle(o.state.Route),
		CanGoBack:            routes.CanGoBack(o.state.Route),
		FormData:             o.form,
		Error:                o.lastError,
		Loading:              o.loading,
		LoadingMessage:       o.loadingMessage,
		ManualVerification:   o.state.ManualVerification,
		ContactAttempts:      o.contactAttempts,
		VerificationAttempts: o.verificationAttempts,
		MaxAttempts:          o.opts.MaxAttempts,
		ApplicationStatus:    o.store.ApplicationStatus(ctx),
		BlockDaysRemaining:   o.store.BlockTimeRemaining(ctx),
		ContactFirstName:     o.contactFirstName,
		BusinessHours:        o.calendar.IsBusinessHours(o.now()),
	}
	if len(o.validationErrors) > 0 {
		v.ValidationErrors = make(map[string]string, len(o.validationErrors))
		for k, val := range o.validationErrors {
			v.ValidationErrors[k] = val
		}
	}
	if t, ok := o.store.ScheduledTime(ctx); ok {
		v.ScheduledTime = &t
	}
	return v
}
