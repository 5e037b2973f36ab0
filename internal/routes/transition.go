package routes

// EventKind names something that happened in the flow.
type EventKind string

const (
	StepSubmitted    EventKind = "step_submitted"
	SmsConnected     EventKind = "sms_connected"
	SmsConnectFailed EventKind = "sms_connect_failed"
	VerifyFailed     EventKind = "verify_failed"
	ContactAccepted  EventKind = "contact_accepted"
	ContactRejected  EventKind = "contact_rejected"
	ContactErrored   EventKind = "contact_errored"
	ManualVerified   EventKind = "manual_verified"
	ManualRejected   EventKind = "manual_rejected"
	OffersSubmitted  EventKind = "offers_submitted"
	OffersFailed     EventKind = "offers_failed"
	Back             EventKind = "back"
	Blocked          EventKind = "blocked"
	Reenter          EventKind = "reenter"
	ManualRequested  EventKind = "manual_requested"
	ManualCancelled  EventKind = "manual_cancelled"
	Navigate         EventKind = "navigate"
)

// DefaultMaxAttempts is the failure count that forces manual verification.
const DefaultMaxAttempts = 3

// Back navigation is offered between these step indexes, inclusive.
const (
	minBackStep = 2
	maxBackStep = 11
)

// skipFrequency lists employment statuses that have no pay frequency.
var skipFrequency = map[string]struct{}{
	"not_employed": {},
	"retired":      {},
	"other":        {},
}

// SkipsFrequency reports whether status bypasses the pay frequency screen.
func SkipsFrequency(status string) bool {
	_, ok := skipFrequency[status]
	return ok
}

// State is the navigational state of one session.
type State struct {
	Route              Route `json:"route"`
	ManualVerification bool  `json:"manualVerification"`
}

// Event carries the inputs a transition guard needs.
type Event struct {
	Kind EventKind
	// EmploymentStatus is the value submitted with StepSubmitted, if any.
	EmploymentStatus string
	// Attempts is the failure counter after the failure being reported.
	Attempts    int
	MaxAttempts int
	// Target is the destination of a Navigate event.
	Target Route
}

func (e Event) exhausted() bool {
	limit := e.MaxAttempts
	if limit <= 0 {
		limit = DefaultMaxAttempts
	}
	return e.Attempts >= limit
}

// CanGoBack reports whether back navigation is offered on r.
func CanGoBack(r Route) bool {
	step := r.Index()
	return step >= minBackStep && step <= maxBackStep
}

// Transition returns the state that follows s after e. Events that do not
// apply leave s unchanged.
func Transition(s State, e Event) State {
	switch e.Kind {
	case StepSubmitted:
		if SkipsFrequency(e.EmploymentStatus) {
			s.Route = AnnualIncome
			return s
		}
		if next, ok := NextRoute(s.Route.Index()); ok {
			s.Route = next
		}
	case SmsConnected:
		s.Route = VerifyPhone
	case SmsConnectFailed:
		if e.exhausted() {
			s.Route = VerifyPhone
			s.ManualVerification = true
		}
	case VerifyFailed, ContactErrored:
		if e.exhausted() {
			s.ManualVerification = true
		}
	case ContactAccepted, ManualVerified:
		s.Route = Success
	case ContactRejected:
		s.Route = VerifySsn
	case ManualRejected, OffersFailed:
		s.Route = Unsuccessful
	case OffersSubmitted:
		// the applicant leaves for the partner page
	case Back:
		if !CanGoBack(s.Route) {
			return s
		}
		if prev, ok := PreviousRoute(s.Route.Index()); ok {
			s.Route = prev
		}
	case Blocked:
		if !IsBlockedRoute(s.Route) {
			s.Route = Hold
		}
	case Reenter:
		s.Route = BirthDate
	case ManualRequested:
		s.ManualVerification = true
	case ManualCancelled:
		s.ManualVerification = false
	case Navigate:
		if IsValidRoute(string(e.Target)) {
			s.Route = e.Target
		}
	}
	return s
}
