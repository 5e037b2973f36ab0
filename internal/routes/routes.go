// Package routes holds the fixed screen order of the intake flow and the
// transition function that moves a session between screens.
package routes

// Route identifies one screen of the intake flow.
type Route string

const (
	Start               Route = "start"
	LoanAmount          Route = "loan-amount"
	LoanPurpose         Route = "loan-purpose"
	PropertyStatus      Route = "property-status"
	EmploymentStatus    Route = "employment-status"
	EmploymentFrequency Route = "employment-frequency"
	AnnualIncome        Route = "annual-income"
	Education           Route = "education"
	Email               Route = "email"
	BirthDate           Route = "birth-date"
	ContactInfo         Route = "contact-info"
	VerifyPhone         Route = "verify-phone"
	VerifySsn           Route = "verify-ssn"
	Success             Route = "success"
	Unsuccessful        Route = "unsuccessful"
	Hold                Route = "hold"
)

// order is the stable index-to-route mapping.
var order = []Route{
	Start,
	LoanAmount,
	LoanPurpose,
	PropertyStatus,
	EmploymentStatus,
	EmploymentFrequency,
	AnnualIncome,
	Education,
	Email,
	BirthDate,
	ContactInfo,
	VerifyPhone,
	VerifySsn,
	Success,
	Unsuccessful,
	Hold,
}

var pageTitles = map[Route]string{
	Start:               "Apply Now",
	LoanAmount:          "Loan Amount",
	LoanPurpose:         "Loan Purpose",
	PropertyStatus:      "Property Status",
	EmploymentStatus:    "Employment Status",
	EmploymentFrequency: "Pay Frequency",
	AnnualIncome:        "Annual Income",
	Education:           "Education Level",
	Email:               "Email",
	BirthDate:           "Birth Date",
	ContactInfo:         "Contact Information",
	VerifyPhone:         "Phone Verification",
	VerifySsn:           "Identity Verification",
	Success:             "Application Received",
	Unsuccessful:        "Application Status",
	Hold:                "Application Status",
}

// totalSteps counts the screens before the three terminal ones.
const totalSteps = 12

// All returns the routes in order.
func All() []Route {
	out := make([]Route, len(order))
	copy(out, order)
	return out
}

// CurrentStep maps a path to its index. Unknown and empty paths map to 0.
func CurrentStep(path string) int {
	for i, r := range order {
		if string(r) == path {
			return i
		}
	}
	return 0
}

// NextRoute returns the route after index, if any.
func NextRoute(index int) (Route, bool) {
	return at(index + 1)
}

// PreviousRoute returns the route before index, if any.
func PreviousRoute(index int) (Route, bool) {
	return at(index - 1)
}

func at(i int) (Route, bool) {
	if i < 0 || i >= len(order) {
		return "", false
	}
	return order[i], true
}

// TotalSteps is the progress denominator. Conditional skips do not change it.
func TotalSteps() int {
	return totalSteps
}

// IsBlockedRoute reports whether r is a terminal screen.
func IsBlockedRoute(r Route) bool {
	return r == Success || r == Unsuccessful || r == Hold
}

// IsValidRoute reports whether path names a known route.
func IsValidRoute(path string) bool {
	_, ok := pageTitles[Route(path)]
	return ok
}

// PageTitle returns the document title suffix for r.
func PageTitle(r Route) string {
	return pageTitles[r]
}

// Index returns the position of r, or 0 for unknown routes.
func (r Route) Index() int {
	return CurrentStep(string(r))
}
