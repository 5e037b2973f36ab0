// Package intake coordinates one visitor's loan application: step
// submissions, SMS and manual verification, offer submission and the
// cooldown guard.
package intake

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"loan-intake/internal/analytics"
	stderrors "loan-intake/internal/common/errors"
	"loan-intake/internal/common/hubspot"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/iplookup"
	"loan-intake/internal/leads"
	"loan-intake/internal/models"
	"loan-intake/internal/routes"
	"loan-intake/internal/schedule"
	"loan-intake/internal/storage"
)

// DefaultOffersRedirectURL is the partner page applicants with offers are
// sent to. {offerId} is replaced with the returned offer id.
const DefaultOffersRedirectURL = "https://fiona.com/partner/symple-lending-loans/loans?results={offerId}&step=results"

// FormSubmitter posts lead-capture forms. Implemented by hubspot.FormsClient.
type FormSubmitter interface {
	SubmitEmailForm(ctx context.Context, email string, marketing map[string]string, page hubspot.PageContext) (*hubspot.SubmitResponse, error)
	SubmitBirthDateForm(ctx context.Context, email, birthDate string, page hubspot.PageContext) (*hubspot.SubmitResponse, error)
	SubmitPhoneForm(ctx context.Context, email, phone string, smsConsent, promoSmsConsent bool, page hubspot.PageContext) (*hubspot.SubmitResponse, error)
	SubmitScheduledCall(ctx context.Context, email, firstName, phone string, scheduled time.Time, timezone string, page hubspot.PageContext) (*hubspot.SubmitResponse, error)
}

type Dependencies struct {
	Store   *storage.Store
	Leads   leads.Client
	Tracker *analytics.Tracker
	Logger  logger.Logger
	// Forms is optional.
	Forms FormSubmitter
	// IPResolver is used when the client address is not public. Optional.
	IPResolver   iplookup.Resolver
	Calendar     *schedule.Calendar
	Availability schedule.Availability
	Now          func() time.Time
}

type Options struct {
	MaxAttempts         int
	OffersRedirectURL   string
	OffersRedirectDelay time.Duration
}

// contact keeps the reachable details after the form is cleared.
type contact struct {
	email string
	phone string
}

// Orchestrator owns the state of one application attempt. Operations are
// serialized; a second operation arriving while a leads call is outstanding
// fails with REQUEST_IN_PROGRESS.
type Orchestrator struct {
	store        *storage.Store
	leads        leads.Client
	tracker      *analytics.Tracker
	logger       logger.Logger
	errors       *stderrors.ErrorHandler
	forms        FormSubmitter
	ipResolver   iplookup.Resolver
	calendar     *schedule.Calendar
	availability schedule.Availability
	now          func() time.Time
	opts         Options

	mu                   sync.Mutex
	state                routes.State
	furthest             int
	form                 models.FormData
	validationErrors     map[string]string
	loading              bool
	loadingMessage       string
	lastError            string
	contactAttempts      int
	verificationAttempts int
	verification         models.VerificationSession
	contactFirstName     string
	visit                hubspot.Visit
	lastContact          contact
}

func New(deps Dependencies, opts Options) *Orchestrator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = routes.DefaultMaxAttempts
	}
	if opts.OffersRedirectURL == "" {
		opts.OffersRedirectURL = DefaultOffersRedirectURL
	}
	o := &Orchestrator{
		store:        deps.Store,
		leads:        deps.Leads,
		tracker:      deps.Tracker,
		logger:       deps.Logger,
		forms:        deps.Forms,
		ipResolver:   deps.IPResolver,
		calendar:     deps.Calendar,
		availability: deps.Availability,
		now:          deps.Now,
		opts:         opts,
		state:        routes.State{Route: routes.Start},
		form:         models.DefaultFormData(),
	}
	if o.logger == nil {
		o.logger = logger.NewNoOpLogger()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.calendar == nil {
		o.calendar = schedule.MustCalendar(schedule.DefaultTimezone)
	}
	if o.availability == nil {
		o.availability = schedule.NewSessionAvailability()
	}
	if o.tracker == nil {
		o.tracker = analytics.NewTracker(analytics.NewLogSink(o.logger), o.store.VisitorID(), o.logger)
	}
	o.errors = stderrors.NewErrorHandler(o.logger.WithFields(map[string]interface{}{
		"visitorId": o.store.VisitorID(),
	}))
	return o
}

// Init restores stored form data, records the visitor's IP address and
// applies the cooldown guard to the start route.
func (o *Orchestrator) Init(ctx context.Context, clientIP string, visit hubspot.Visit) Result {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.visit = visit
	if f, ok := o.store.FormData(ctx); ok {
		o.form = f
	}
	o.contactFirstName = o.store.ContactFirstName(ctx)

	if o.store.UserIP(ctx) == "" {
		if ip := o.resolveIP(ctx, clientIP); ip != "" {
			if err := o.store.SetUserIP(ctx, ip); err != nil {
				o.logger.Warn("Failed to store user IP", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	o.enter(ctx, o.state.Route)
	return o.ok(ctx)
}

// resolveIP prefers the caller's own public address and falls back to the
// resolver. Lookup failure is not fatal.
func (o *Orchestrator) resolveIP(ctx context.Context, clientIP string) string {
	if ip := net.ParseIP(clientIP); ip != nil && !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() {
		return clientIP
	}
	if o.ipResolver == nil {
		return ""
	}
	if err := o.begin("Init", "Loading..."); err != nil {
		return ""
	}
	var (
		ip  string
		err error
	)
	o.unlocked(func() { ip, err = o.ipResolver.PublicIP(ctx) })
	o.loading = false
	o.loadingMessage = ""
	if err != nil {
		o.logger.Warn("IP lookup failed", map[string]interface{}{"error": err.Error()})
		return ""
	}
	return ip
}

// View returns a snapshot for rendering.
func (o *Orchestrator) View(ctx context.Context) View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.view(ctx)
}

// Slots lists callback slots from now.
func (o *Orchestrator) Slots() schedule.Slots {
	return o.calendar.AvailableTimeSlots(o.now(), o.availability)
}

// ==========================
// Internal helpers (callers hold o.mu)
// ==========================

func (o *Orchestrator) unlocked(fn func()) {
	o.mu.Unlock()
	defer o.mu.Lock()
	fn()
}

// detach keeps a started operation running when the caller goes away. The
// leads client's own timeout still bounds the call.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// closed refuses submissions once the application has a final outcome.
// Only Reset reopens it.
func (o *Orchestrator) closed(ctx context.Context, op string) error {
	switch status := o.store.ApplicationStatus(ctx); status {
	case models.StatusSuccess, models.StatusFailed, models.StatusOffers:
		return stderrors.NewApplicationClosedError(op, string(status))
	}
	return nil
}

// begin claims the loading flag for a leads call.
func (o *Orchestrator) begin(op, message string) error {
	if o.loading {
		return stderrors.NewRequestInProgressError(op)
	}
	o.loading = true
	o.loadingMessage = message
	o.lastError = ""
	return nil
}

// finish releases the loading flag and refreshes the result's view.
func (o *Orchestrator) finish(ctx context.Context, res *Result) {
	o.loading = false
	o.loadingMessage = ""
	res.View = o.view(ctx)
}

func (o *Orchestrator) idle(op string) error {
	if o.loading {
		return stderrors.NewRequestInProgressError(op)
	}
	return nil
}

func (o *Orchestrator) ok(ctx context.Context) Result {
	return Result{Success: true, View: o.view(ctx)}
}

func (o *Orchestrator) fail(ctx context.Context, op string, err error) Result {
	stdErr, msg := o.errors.Handle(op, err, map[string]interface{}{
		"route": string(o.state.Route),
	})
	if stdErr.Code != stderrors.ErrCodeRequestInProgress {
		o.lastError = msg
	}
	return Result{
		Success:   false,
		Error:     msg,
		ErrorCode: string(stdErr.Code),
		View:      o.view(ctx),
	}
}

func (o *Orchestrator) failValidation(ctx context.Context, op string, errs map[string]string) Result {
	o.validationErrors = errs

	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	res := o.fail(ctx, op, stderrors.NewValidationError(fields[0], errs[fields[0]]))
	res.ValidationErrors = errs
	return res
}

func (o *Orchestrator) apply(ctx context.Context, e routes.Event) {
	o.moveTo(ctx, routes.Transition(o.state, e))
}

func (o *Orchestrator) moveTo(ctx context.Context, next routes.State) {
	changed := next.Route != o.state.Route
	o.state = next
	if !changed {
		return
	}
	if idx := next.Route.Index(); idx > o.furthest && idx < routes.Success.Index() {
		o.furthest = idx
	}
	metrics.StepTransitions.WithLabelValues(string(next.Route)).Inc()
	o.tracker.TrackStep(string(next.Route), o.formProps())
	o.tracker.SetPage("/"+string(next.Route), routes.PageTitle(next.Route))
}

// formProps is the non-identifying subset of the form sent with step events.
func (o *Orchestrator) formProps() map[string]interface{} {
	return map[string]interface{}{
		"loanAmount":          o.form.LoanAmount,
		"loanPurpose":         o.form.LoanPurpose,
		"propertyStatus":      o.form.PropertyStatus,
		"employmentStatus":    o.form.EmploymentStatus,
		"employmentFrequency": o.form.EmploymentFrequency,
		"annualIncome":        o.form.AnnualIncome,
		"educationLevel":      o.form.EducationLevel,
	}
}

func (o *Orchestrator) marketingParams() map[string]string {
	return hubspot.MarketingParams(o.form, o.visit)
}

func (o *Orchestrator) page(ctx context.Context) hubspot.PageContext {
	return hubspot.PageContext{
		PageURI:   o.visit.LandingPage,
		PageName:  routes.PageTitle(o.state.Route),
		IPAddress: o.store.UserIP(ctx),
	}
}

func (o *Orchestrator) persistForm(ctx context.Context) error {
	return o.store.SetFormData(ctx, o.form)
}
