package intake

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	stderrors "loan-intake/internal/common/errors"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/leads"
	"loan-intake/internal/models"
	"loan-intake/internal/routes"
)

var ssnLast4Pattern = regexp.MustCompile(`^\d{4}$`)

// SubmitApplication sends the final answers for offers. Offers redirect
// the applicant to the partner page; any failure ends the application as
// unsuccessful.
func (o *Orchestrator) SubmitApplication(ctx context.Context, ssnLast4 string) (res Result) {
	const op = "SubmitApplication"

	ctx = detach(ctx)
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.begin(op, "Submitting application..."); err != nil {
		return o.fail(ctx, op, err)
	}
	defer o.finish(ctx, &res)

	if err := o.closed(ctx, op); err != nil {
		return o.fail(ctx, op, err)
	}

	if !ssnLast4Pattern.MatchString(ssnLast4) {
		return o.failValidation(ctx, op, map[string]string{
			"ssnLast4": "Please enter the last 4 digits of your SSN",
		})
	}
	o.validationErrors = nil
	o.form.SsnLast4 = ssnLast4
	if err := o.persistForm(ctx); err != nil {
		return o.fail(ctx, op, err)
	}

	o.tracker.TrackEvent("ssn_verification_submitted", map[string]interface{}{"form_step": "verify-ssn"})

	f := o.form
	req := leads.OffersRequest{
		Email:               f.Email,
		SsnLast4:            f.SsnLast4,
		LoanAmount:          f.LoanAmount,
		LoanPurpose:         f.LoanPurpose,
		EmploymentStatus:    f.EmploymentStatus,
		EmploymentFrequency: f.EmploymentFrequency,
		EducationLevel:      f.EducationLevel,
		AnnualIncome:        f.AnnualIncome,
		PropertyStatus:      f.PropertyStatus,
		IPAddress:           o.store.UserIP(ctx),
	}

	var (
		resp *leads.OffersResponse
		err  error
	)
	o.unlocked(func() { resp, err = o.leads.SubmitApplication(ctx, req) })

	if err == nil && !resp.Status.OK() {
		err = stderrors.NewLeadsAPIError(string(leads.OpOffers), resp.Status.Code, "Failed to submit application")
	}
	if err != nil {
		return o.applicationFailed(ctx, op, routes.OffersFailed, err)
	}
	return o.applicationOffers(ctx, op, resp.OfferID)
}

// record writes the durable outcome, clears the session form and ends the
// verification session.
func (o *Orchestrator) record(ctx context.Context, outcome models.Outcome) error {
	rec := models.NewApplicationRecord(o.form, outcome, o.store.NowMillis())
	if err := o.store.SetApplicationData(ctx, rec); err != nil {
		return err
	}
	o.lastContact = contact{email: o.form.Email, phone: o.form.Phone}
	if err := o.store.ClearFormData(ctx); err != nil {
		return err
	}
	o.form = models.DefaultFormData()
	o.verification = models.VerificationSession{}
	o.contactAttempts = 0
	o.verificationAttempts = 0
	metrics.ApplicationOutcomes.WithLabelValues(string(outcome)).Inc()
	return nil
}

func (o *Orchestrator) applicationSucceeded(ctx context.Context, op string, kind routes.EventKind, firstName string) Result {
	if firstName != "" {
		o.contactFirstName = firstName
		if err := o.store.SetContactFirstName(ctx, firstName); err != nil {
			return o.fail(ctx, op, err)
		}
	}
	if err := o.record(ctx, models.OutcomeSuccess); err != nil {
		return o.fail(ctx, op, err)
	}
	o.tracker.TrackEvent("application_success", nil)
	o.apply(ctx, routes.Event{Kind: kind})
	return o.ok(ctx)
}

// applicationFailed logs cause, records the unsuccessful outcome and moves
// to the unsuccessful screen. The result carries the cause's message.
func (o *Orchestrator) applicationFailed(ctx context.Context, op string, kind routes.EventKind, cause error) Result {
	stdErr, msg := o.errors.Handle(op, cause, map[string]interface{}{
		"route": string(o.state.Route),
	})
	if err := o.record(ctx, models.OutcomeUnsuccessful); err != nil {
		return o.fail(ctx, op, err)
	}
	o.tracker.TrackError("application_unsuccessful", msg, nil)
	o.apply(ctx, routes.Event{Kind: kind})

	return Result{
		Success:   false,
		Error:     msg,
		ErrorCode: string(stdErr.Code),
		View:      o.view(ctx),
	}
}

func (o *Orchestrator) applicationOffers(ctx context.Context, op, offerID string) Result {
	if err := o.record(ctx, models.OutcomeOffers); err != nil {
		return o.fail(ctx, op, err)
	}
	o.tracker.TrackEvent("application_offers", map[string]interface{}{"offerId": offerID})
	o.apply(ctx, routes.Event{Kind: routes.OffersSubmitted})

	res := o.ok(ctx)
	res.RedirectURL = strings.ReplaceAll(o.opts.OffersRedirectURL, "{offerId}", url.QueryEscape(offerID))
	res.RedirectDelayMs = o.opts.OffersRedirectDelay.Milliseconds()
	return res
}

// ScheduleCall books a callback slot after a successful application.
// An empty timezone means the business timezone.
func (o *Orchestrator) ScheduleCall(ctx context.Context, slot time.Time, timezone string) Result {
	const op = "ScheduleCall"

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.idle(op); err != nil {
		return o.fail(ctx, op, err)
	}
	o.lastError = ""

	if !o.store.IsApplicationSuccessful(ctx) {
		return o.fail(ctx, op, stderrors.NewApplicationIncompleteError("calls are scheduled after a successful application"))
	}
	if timezone == "" {
		timezone = o.calendar.Location().String()
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return o.failValidation(ctx, op, map[string]string{"timezone": "Please choose a valid timezone"})
	}
	if !o.Slots().Contains(slot) {
		return o.fail(ctx, op, stderrors.NewSlotUnavailableError(slot))
	}
	o.validationErrors = nil

	if err := o.store.SetScheduledTime(ctx, slot); err != nil {
		return o.fail(ctx, op, err)
	}

	o.tracker.TrackEvent("call_scheduled", map[string]interface{}{
		"scheduled_time": slot.UTC().Format(time.RFC3339),
		"timezone":       timezone,
	})

	if o.forms != nil && o.lastContact.phone != "" {
		email, phone, firstName := o.lastContact.email, o.lastContact.phone, o.contactFirstName
		page := o.page(ctx)
		o.tracker.Go("hubspot", func(ctx context.Context) error {
			_, err := o.forms.SubmitScheduledCall(ctx, email, firstName, phone, slot, timezone, page)
			return err
		})
	}
	return o.ok(ctx)
}
