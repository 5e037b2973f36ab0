package models

// ApplicationStatus is the coarse progress marker kept in the durable scope.
// The empty value means no application has been started.
type ApplicationStatus string

const (
	StatusNone    ApplicationStatus = ""
	StatusStarted ApplicationStatus = "started"
	StatusSmsCode ApplicationStatus = "sms-code"
	StatusSuccess ApplicationStatus = "success"
	StatusFailed  ApplicationStatus = "failed"
	StatusPending ApplicationStatus = "pending"
	StatusOffers  ApplicationStatus = "offers"
)

// Outcome tags an ApplicationRecord.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeUnsuccessful Outcome = "unsuccessful"
	OutcomeOffers       Outcome = "offers"
	OutcomePending      Outcome = "pending"
)

// Status returns the application status an outcome implies.
func (o Outcome) Status() ApplicationStatus {
	switch o {
	case OutcomeSuccess:
		return StatusSuccess
	case OutcomeUnsuccessful:
		return StatusFailed
	case OutcomeOffers:
		return StatusOffers
	case OutcomePending:
		return StatusPending
	default:
		return StatusNone
	}
}

// Blocking reports whether the outcome starts a cooldown.
func (o Outcome) Blocking() bool {
	return o == OutcomeSuccess || o == OutcomeUnsuccessful
}

// ApplicationSummary is the reduced form subset kept after a terminal outcome.
type ApplicationSummary struct {
	LoanAmount       int    `json:"loanAmount"`
	LoanPurpose      string `json:"loanPurpose"`
	EmploymentStatus string `json:"employmentStatus"`
	PropertyStatus   string `json:"propertyStatus"`
	EducationLevel   string `json:"educationLevel"`
}

// ApplicationRecord is the durable snapshot written once an outcome is known.
type ApplicationRecord struct {
	Timestamp int64              `json:"timestamp"` // epoch ms
	Email     string             `json:"email"`
	FormData  ApplicationSummary `json:"formData"`
	Status    Outcome            `json:"status"`
}

// NewApplicationRecord snapshots form at nowMs with the given outcome.
func NewApplicationRecord(form FormData, outcome Outcome, nowMs int64) ApplicationRecord {
	return ApplicationRecord{
		Timestamp: nowMs,
		Email:     form.Email,
		FormData: ApplicationSummary{
			LoanAmount:       form.LoanAmount,
			LoanPurpose:      form.LoanPurpose,
			EmploymentStatus: form.EmploymentStatus,
			PropertyStatus:   form.PropertyStatus,
			EducationLevel:   form.EducationLevel,
		},
		Status: outcome,
	}
}
