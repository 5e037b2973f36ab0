package intake

import (
	"context"
	"fmt"
	"strings"

	stderrors "loan-intake/internal/common/errors"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/common/validation"
	"loan-intake/internal/models"
	"loan-intake/internal/routes"
)

// Enter moves the session to target after re-validating it. A visitor in
// cooldown is sent to the hold screen, and routes that are not reachable
// yet resolve to the current one.
func (o *Orchestrator) Enter(ctx context.Context, target routes.Route) Result {
	const op = "Enter"

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.idle(op); err != nil {
		return o.fail(ctx, op, err)
	}
	o.lastError = ""
	o.validationErrors = nil
	o.enter(ctx, target)
	return o.ok(ctx)
}

func (o *Orchestrator) enter(ctx context.Context, target routes.Route) {
	if !routes.IsValidRoute(string(target)) {
		target = routes.Start
	}

	blocked := o.store.IsApplicationBlocked(ctx)
	if blocked && !routes.IsBlockedRoute(target) {
		metrics.BlockedEntries.Inc()
		o.moveTo(ctx, routes.Transition(routes.State{Route: target}, routes.Event{Kind: routes.Blocked}))
		return
	}

	o.apply(ctx, routes.Event{Kind: routes.Navigate, Target: o.resolve(ctx, target, blocked)})
}

func (o *Orchestrator) resolve(ctx context.Context, target routes.Route, blocked bool) routes.Route {
	switch target {
	case routes.Hold:
		if blocked {
			return routes.Hold
		}
		return o.state.Route
	case routes.Success:
		if o.store.IsApplicationSuccessful(ctx) {
			return routes.Success
		}
		return o.state.Route
	case routes.Unsuccessful:
		if o.store.IsApplicationFailed(ctx) {
			return routes.Unsuccessful
		}
		return o.state.Route
	case routes.VerifyPhone:
		if o.verification.Active() || o.state.ManualVerification {
			return routes.VerifyPhone
		}
		return routes.Start
	case routes.VerifySsn:
		if o.verification.Active() {
			return routes.VerifySsn
		}
		return routes.Start
	}
	if target.Index() <= o.furthest {
		return target
	}
	return o.state.Route
}

// acceptsStepInput reports routes whose answers go through SubmitStep.
func acceptsStepInput(r routes.Route) bool {
	return r.Index() >= routes.Start.Index() && r.Index() <= routes.BirthDate.Index()
}

// SubmitStep merges a step's answers and advances. Employment statuses
// without a pay frequency record "monthly" and skip to annual income.
func (o *Orchestrator) SubmitStep(ctx context.Context, update models.FormUpdate) Result {
	const op = "SubmitStep"

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.idle(op); err != nil {
		return o.fail(ctx, op, err)
	}
	if o.store.IsApplicationBlocked(ctx) && !routes.IsBlockedRoute(o.state.Route) {
		o.enter(ctx, o.state.Route)
		return o.ok(ctx)
	}
	if !acceptsStepInput(o.state.Route) {
		return o.fail(ctx, op, stderrors.NewValidationError("route",
			fmt.Sprintf("The %s screen does not accept step input", o.state.Route)))
	}
	if errs := o.validateStep(update); len(errs) > 0 {
		return o.failValidation(ctx, op, errs)
	}
	o.validationErrors = nil
	o.lastError = ""

	if o.state.Route == routes.Start && o.store.ApplicationStatus(ctx) == models.StatusNone {
		if err := o.store.SetApplicationStarted(ctx); err != nil {
			return o.fail(ctx, op, err)
		}
	}

	from := o.state.Route
	o.merge(update)

	status := ""
	if update.EmploymentStatus != nil {
		status = *update.EmploymentStatus
		if routes.SkipsFrequency(status) {
			o.form.EmploymentFrequency = "monthly"
		}
	}
	if err := o.persistForm(ctx); err != nil {
		return o.fail(ctx, op, err)
	}

	o.afterStep(ctx, from)
	o.apply(ctx, routes.Event{Kind: routes.StepSubmitted, EmploymentStatus: status})
	return o.ok(ctx)
}

// merge applies update, formatting the phone number the way it is shown.
func (o *Orchestrator) merge(update models.FormUpdate) {
	if update.Phone != nil {
		formatted := validation.FormatPhoneNumber(*update.Phone)
		update.Phone = &formatted
	}
	if update.Email != nil {
		trimmed := strings.TrimSpace(*update.Email)
		update.Email = &trimmed
	}
	update.Apply(&o.form)
}

func (o *Orchestrator) validateStep(u models.FormUpdate) map[string]string {
	errs := map[string]string{}
	if u.Email != nil {
		if msg := validation.ValidateEmail(strings.TrimSpace(*u.Email)); msg != "" {
			errs["email"] = msg
		}
	}
	if u.BirthDate != nil {
		if *u.BirthDate == "" {
			errs["birthDate"] = "Please enter your date of birth"
		} else if msg := validation.ValidateBirthDate(*u.BirthDate, o.now().In(o.calendar.Location())); msg != "" {
			errs["birthDate"] = msg
		}
	}
	if u.Phone != nil {
		if msg := validation.ValidatePhone(*u.Phone); msg != "" {
			errs["phone"] = msg
		}
	}
	if u.LoanAmount != nil && (*u.LoanAmount < models.MinLoanAmount || *u.LoanAmount > models.MaxLoanAmount) {
		errs["loanAmount"] = fmt.Sprintf("Loan amount must be between $%d and $%d", models.MinLoanAmount, models.MaxLoanAmount)
	}
	return errs
}

// afterStep identifies the visitor and posts the lead-capture form for the
// email and birth date screens.
func (o *Orchestrator) afterStep(ctx context.Context, from routes.Route) {
	email := o.form.Email
	page := o.page(ctx)

	switch from {
	case routes.Email:
		params := o.marketingParams()
		props := map[string]interface{}{"email": email}
		for k, v := range params {
			props[k] = v
		}
		o.tracker.Identify(props)

		event := map[string]interface{}{"form_step": "email"}
		for k, v := range props {
			event[k] = v
		}
		o.tracker.TrackEvent("email_step_completed", event)

		if o.forms != nil {
			o.tracker.Go("hubspot", func(ctx context.Context) error {
				_, err := o.forms.SubmitEmailForm(ctx, email, params, page)
				return err
			})
		}

	case routes.BirthDate:
		birthDate := o.form.BirthDate
		props := map[string]interface{}{
			"email":                   email,
			"date_of_birth":           birthDate,
			"date_of_birth__c":        birthDate,
			"sensitive_date_of_birth": birthDate,
		}
		o.tracker.Identify(props)

		event := map[string]interface{}{"form_step": "birthdate"}
		for k, v := range props {
			event[k] = v
		}
		o.tracker.TrackEvent("birth_date_step_completed", event)

		if o.forms != nil {
			o.tracker.Go("hubspot", func(ctx context.Context) error {
				_, err := o.forms.SubmitBirthDateForm(ctx, email, birthDate, page)
				return err
			})
		}
	}
}

// GoBack returns to the previous screen. It is only offered between the
// loan purpose and verify phone screens.
func (o *Orchestrator) GoBack(ctx context.Context) Result {
	const op = "GoBack"

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.idle(op); err != nil {
		return o.fail(ctx, op, err)
	}
	o.lastError = ""
	o.validationErrors = nil

	if !routes.CanGoBack(o.state.Route) {
		return o.fail(ctx, op, stderrors.NewValidationError("route", "Cannot go back from this step"))
	}
	o.apply(ctx, routes.Event{Kind: routes.Back})
	return o.ok(ctx)
}

// ReenterInfo discards the typed code and returns to the birth date screen
// so the applicant can correct their details.
func (o *Orchestrator) ReenterInfo(ctx context.Context) Result {
	const op = "ReenterInfo"

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.idle(op); err != nil {
		return o.fail(ctx, op, err)
	}
	o.lastError = ""
	o.form.SmsCode = ""
	if err := o.persistForm(ctx); err != nil {
		return o.fail(ctx, op, err)
	}
	o.tracker.TrackEvent("phone_verification_reenter", map[string]interface{}{"form_step": "verify-phone"})
	o.apply(ctx, routes.Event{Kind: routes.Reenter})
	return o.ok(ctx)
}

func (o *Orchestrator) RequestManualVerification(ctx context.Context) Result {
	const op = "RequestManualVerification"

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.idle(op); err != nil {
		return o.fail(ctx, op, err)
	}
	o.lastError = ""
	o.tracker.TrackEvent("manual_verification_selected", map[string]interface{}{
		"verification_attempts": o.verificationAttempts,
	})
	o.apply(ctx, routes.Event{Kind: routes.ManualRequested})
	return o.ok(ctx)
}

// CancelManualVerification returns to SMS code entry with a fresh
// verification counter.
func (o *Orchestrator) CancelManualVerification(ctx context.Context) Result {
	const op = "CancelManualVerification"

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.idle(op); err != nil {
		return o.fail(ctx, op, err)
	}
	o.lastError = ""
	o.validationErrors = nil
	o.verificationAttempts = 0
	o.form.SmsCode = ""
	if err := o.persistForm(ctx); err != nil {
		return o.fail(ctx, op, err)
	}
	o.tracker.TrackEvent("manual_verification_cancelled", nil)
	o.apply(ctx, routes.Event{Kind: routes.ManualCancelled})
	return o.ok(ctx)
}

// Reset clears every stored field and starts over.
func (o *Orchestrator) Reset(ctx context.Context) Result {
	const op = "Reset"

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.idle(op); err != nil {
		return o.fail(ctx, op, err)
	}
	if err := o.store.ClearAll(ctx); err != nil {
		return o.fail(ctx, op, err)
	}

	o.form = models.DefaultFormData()
	o.validationErrors = nil
	o.lastError = ""
	o.contactAttempts = 0
	o.verificationAttempts = 0
	o.verification = models.VerificationSession{}
	o.contactFirstName = ""
	o.lastContact = contact{}
	o.furthest = 0
	o.tracker.Reset()
	o.moveTo(ctx, routes.State{Route: routes.Start})
	return o.ok(ctx)
}
