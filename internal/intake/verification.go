package intake

import (
	"context"
	"net/http"

	stderrors "loan-intake/internal/common/errors"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/common/validation"
	"loan-intake/internal/leads"
	"loan-intake/internal/models"
	"loan-intake/internal/routes"
)

// ConnectBySms submits the contact screen: it merges update, validates
// email and phone, then asks the leads backend to text a code.
func (o *Orchestrator) ConnectBySms(ctx context.Context, update models.FormUpdate) (res Result) {
	const op = "ConnectBySms"

	ctx = detach(ctx)
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.begin(op, "Creating secure connection..."); err != nil {
		return o.fail(ctx, op, err)
	}
	defer o.finish(ctx, &res)

	if err := o.closed(ctx, op); err != nil {
		return o.fail(ctx, op, err)
	}

	if o.contactAttempts >= o.opts.MaxAttempts {
		return o.fail(ctx, op, stderrors.NewValidationError("phone",
			"Too many attempts. Please verify your identity manually."))
	}

	o.merge(update)
	if err := o.persistForm(ctx); err != nil {
		return o.fail(ctx, op, err)
	}

	errs := map[string]string{}
	if msg := validation.ValidateEmail(o.form.Email); msg != "" {
		errs["email"] = msg
	}
	if msg := validation.ValidatePhone(o.form.Phone); msg != "" {
		errs["phone"] = msg
	}
	if len(errs) > 0 {
		return o.failValidation(ctx, op, errs)
	}
	o.validationErrors = nil

	if o.forms != nil {
		email, phone := o.form.Email, o.form.Phone
		sms, promo := o.form.SmsConsent, o.form.PromoSmsConsent
		page := o.page(ctx)
		o.tracker.Go("hubspot", func(ctx context.Context) error {
			_, err := o.forms.SubmitPhoneForm(ctx, email, phone, sms, promo, page)
			return err
		})
	}

	return o.connect(ctx, op, false)
}

// ResendCode requests a new SMS code. Failures count against the same
// limit as the first connect.
func (o *Orchestrator) ResendCode(ctx context.Context) (res Result) {
	const op = "ResendCode"

	ctx = detach(ctx)
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.begin(op, "Sending new code..."); err != nil {
		return o.fail(ctx, op, err)
	}
	defer o.finish(ctx, &res)

	if err := o.closed(ctx, op); err != nil {
		return o.fail(ctx, op, err)
	}

	if o.contactAttempts >= o.opts.MaxAttempts {
		return o.fail(ctx, op, stderrors.NewValidationError("phone",
			"Too many attempts. Please verify your identity manually."))
	}

	o.tracker.TrackEvent("verification_code_resent", map[string]interface{}{
		"contact_attempts": o.contactAttempts,
	})
	return o.connect(ctx, op, true)
}

func (o *Orchestrator) connect(ctx context.Context, op string, resend bool) Result {
	f := o.form
	req := leads.ConnectRequest{
		Phone:               f.Phone,
		Email:               f.Email,
		DateOfBirth:         f.BirthDate,
		LoanAmount:          f.LoanAmount,
		LoanPurpose:         f.LoanPurpose,
		EmploymentStatus:    f.EmploymentStatus,
		EmploymentFrequency: f.EmploymentFrequency,
		EducationLevel:      f.EducationLevel,
		AnnualIncome:        f.AnnualIncome,
		PropertyStatus:      f.PropertyStatus,
		IPAddress:           o.store.UserIP(ctx),
		MarketingParams:     o.marketingParams(),
	}

	var (
		resp *leads.ConnectResponse
		err  error
	)
	o.unlocked(func() { resp, err = o.leads.ConnectBySms(ctx, req) })

	if err == nil && (!resp.Status.OK() || resp.ConnectionID == "") {
		msg := "Failed to create connection"
		if resend {
			msg = "Failed to send new code"
		}
		err = stderrors.NewLeadsAPIError(string(leads.OpConnect), resp.Status.Code, msg)
	}
	if err != nil {
		o.contactAttempts++
		if o.contactAttempts >= o.opts.MaxAttempts {
			metrics.RetriesExhausted.WithLabelValues("contact").Inc()
		}
		o.apply(ctx, routes.Event{
			Kind:        routes.SmsConnectFailed,
			Attempts:    o.contactAttempts,
			MaxAttempts: o.opts.MaxAttempts,
		})
		res := o.fail(ctx, op, err)
		o.tracker.TrackError("sms_connect_failed", res.Error, map[string]interface{}{
			"contact_attempts": o.contactAttempts,
		})
		return res
	}

	o.verification = models.VerificationSession{
		ConnectionID: resp.ConnectionID,
		RecordID:     resp.RecordID,
	}

	if resend {
		o.form.SmsCode = ""
		if err := o.persistForm(ctx); err != nil {
			return o.fail(ctx, op, err)
		}
		return o.ok(ctx)
	}

	if err := o.store.SetApplicationSmsCode(ctx); err != nil {
		return o.fail(ctx, op, err)
	}
	o.contactAttempts = 0
	o.apply(ctx, routes.Event{Kind: routes.SmsConnected})
	return o.ok(ctx)
}

// VerifyCode checks the SMS code without creating the contact.
func (o *Orchestrator) VerifyCode(ctx context.Context, code string) (res Result) {
	const op = "VerifyCode"

	ctx = detach(ctx)
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.begin(op, "Verifying SMS code..."); err != nil {
		return o.fail(ctx, op, err)
	}
	defer o.finish(ctx, &res)

	if err := o.closed(ctx, op); err != nil {
		return o.fail(ctx, op, err)
	}

	if !o.verification.Active() {
		return o.sessionMissing(ctx, op)
	}
	if res, ok := o.acceptCode(ctx, op, code); !ok {
		return res
	}
	if err := o.verifyCode(ctx); err != nil {
		return o.verificationFailed(ctx, op, routes.VerifyFailed, err)
	}
	return o.ok(ctx)
}

// CreateContact asks the backend for an eligibility decision.
func (o *Orchestrator) CreateContact(ctx context.Context) (res Result) {
	const op = "CreateContact"

	ctx = detach(ctx)
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.begin(op, "Checking eligibility..."); err != nil {
		return o.fail(ctx, op, err)
	}
	defer o.finish(ctx, &res)

	if err := o.closed(ctx, op); err != nil {
		return o.fail(ctx, op, err)
	}

	return o.createContact(ctx, op)
}

// VerifyPhone verifies the SMS code and, on success, creates the contact
// under the same loading guard.
func (o *Orchestrator) VerifyPhone(ctx context.Context, code string) (res Result) {
	const op = "VerifyPhone"

	ctx = detach(ctx)
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.begin(op, "Verifying SMS code..."); err != nil {
		return o.fail(ctx, op, err)
	}
	defer o.finish(ctx, &res)

	if err := o.closed(ctx, op); err != nil {
		return o.fail(ctx, op, err)
	}

	if !o.verification.Active() {
		return o.sessionMissing(ctx, op)
	}
	if res, ok := o.acceptCode(ctx, op, code); !ok {
		return res
	}
	o.tracker.TrackEvent("phone_verification_attempted", map[string]interface{}{
		"verification_attempts": o.verificationAttempts,
	})

	if err := o.verifyCode(ctx); err != nil {
		return o.verificationFailed(ctx, op, routes.VerifyFailed, err)
	}

	o.loadingMessage = "Checking eligibility..."
	return o.createContact(ctx, op)
}

// sessionMissing sends the applicant back to the start screen when the
// connection or record id needed by the current step is gone.
func (o *Orchestrator) sessionMissing(ctx context.Context, op string) Result {
	o.apply(ctx, routes.Event{Kind: routes.Navigate, Target: routes.Start})
	return o.fail(ctx, op, stderrors.NewVerificationMissingError("connection or record id missing"))
}

func (o *Orchestrator) acceptCode(ctx context.Context, op, code string) (Result, bool) {
	if code == "" {
		return o.failValidation(ctx, op, map[string]string{"smsCode": "Please enter the verification code"}), false
	}
	o.validationErrors = nil
	o.form.SmsCode = code
	if err := o.persistForm(ctx); err != nil {
		return o.fail(ctx, op, err), false
	}
	return Result{}, true
}

func (o *Orchestrator) verifyCode(ctx context.Context) error {
	if !o.verification.Active() {
		return stderrors.NewVerificationMissingError("connection or record id missing")
	}

	req := leads.VerifyRequest{
		Code:         o.form.SmsCode,
		ConnectionID: o.verification.ConnectionID,
		Email:        o.form.Email,
		RecordID:     o.verification.RecordID,
	}

	var (
		resp *leads.ConnectResponse
		err  error
	)
	o.unlocked(func() { resp, err = o.leads.VerifyCode(ctx, req) })
	if err != nil {
		return err
	}
	if !resp.Status.OK() {
		return stderrors.NewLeadsAPIError(string(leads.OpVerify), resp.Status.Code, "Failed to verify code")
	}
	return nil
}

// verificationFailed counts a failed code check or contact creation and
// forces manual verification once the limit is reached.
func (o *Orchestrator) verificationFailed(ctx context.Context, op string, kind routes.EventKind, err error) Result {
	o.verificationAttempts++
	if o.verificationAttempts >= o.opts.MaxAttempts {
		metrics.RetriesExhausted.WithLabelValues("verification").Inc()
	}
	o.apply(ctx, routes.Event{
		Kind:        kind,
		Attempts:    o.verificationAttempts,
		MaxAttempts: o.opts.MaxAttempts,
	})
	return o.fail(ctx, op, err)
}

// createContact maps the backend decision: accepted finishes the
// application, rejected (or a 422) moves to the SSN check, anything else
// counts as a failed verification.
func (o *Orchestrator) createContact(ctx context.Context, op string) Result {
	if !o.verification.Active() {
		return o.sessionMissing(ctx, op)
	}

	req := leads.CreateContactRequest{
		ConnectionID: o.verification.ConnectionID,
		Email:        o.form.Email,
		RecordID:     o.verification.RecordID,
	}

	var (
		resp *leads.CreateContactResponse
		err  error
	)
	o.unlocked(func() { resp, err = o.leads.CreateContact(ctx, req) })

	if err != nil {
		if code, ok := stderrors.StatusCodeOf(err); ok && code == http.StatusUnprocessableEntity {
			return o.contactRejected(ctx)
		}
		return o.verificationFailed(ctx, op, routes.ContactErrored, err)
	}

	switch resp.Decision {
	case leads.DecisionAccepted:
		return o.applicationSucceeded(ctx, op, routes.ContactAccepted, resp.FirstName)
	case leads.DecisionRejected:
		return o.contactRejected(ctx)
	}

	msg := resp.Status.Message
	if msg == "" {
		msg = "Failed to create contact"
	}
	return o.verificationFailed(ctx, op, routes.ContactErrored, stderrors.NewLeadsAPIError(string(leads.OpCreate), resp.Status.Code, msg))
}

func (o *Orchestrator) contactRejected(ctx context.Context) Result {
	o.tracker.TrackEvent("contact_rejected", nil)
	o.apply(ctx, routes.Event{Kind: routes.ContactRejected})
	return o.ok(ctx)
}

// VerifyManually runs the identity fallback. Any backend answer other than
// a 2xx qualification ends the application as unsuccessful.
func (o *Orchestrator) VerifyManually(ctx context.Context, data models.ManualVerification) (res Result) {
	const op = "VerifyManually"

	ctx = detach(ctx)
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.begin(op, "Verifying information..."); err != nil {
		return o.fail(ctx, op, err)
	}
	defer o.finish(ctx, &res)

	if err := o.closed(ctx, op); err != nil {
		return o.fail(ctx, op, err)
	}

	if data.Email == "" {
		data.Email = o.form.Email
	}
	if missing := data.MissingFields(); len(missing) > 0 {
		errs := make(map[string]string, len(missing))
		for _, f := range missing {
			errs[f] = "This field is required"
		}
		return o.failValidation(ctx, op, errs)
	}
	o.validationErrors = nil

	o.tracker.TrackEvent("manual_verification_submitted", map[string]interface{}{
		"has_offer_code": data.OfferCode != "",
		"state":          data.State,
	})

	req := leads.ManualRequest{
		OfferCode: data.OfferCode,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		Email:     data.Email,
		Street:    data.Address1,
		City:      data.City,
		State:     data.State,
		Zip:       data.ZipCode,
	}

	var (
		resp *leads.ManualResponse
		err  error
	)
	o.unlocked(func() { resp, err = o.leads.VerifyManually(ctx, req) })

	if err == nil && !resp.Status.OK() {
		err = stderrors.NewLeadsAPIError(string(leads.OpManual), resp.Status.Code, "Failed to verify manually")
	}
	if err != nil {
		return o.applicationFailed(ctx, op, routes.ManualRejected, err)
	}
	return o.applicationSucceeded(ctx, op, routes.ManualVerified, data.FirstName)
}
