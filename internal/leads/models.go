package leads

// Operation names a leads backend call. It is also the endpoint suffix.
type Operation string

const (
	OpConnect Operation = "connect"
	OpVerify  Operation = "verify"
	OpCreate  Operation = "create"
	OpManual  Operation = "manual"
	OpOffers  Operation = "offers"
)

// Status is the envelope every leads response carries.
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// OK reports a 2xx code.
func (s Status) OK() bool {
	return s.Code >= 200 && s.Code < 300
}

type envelope struct {
	Status *Status `json:"status"`
}

// Decision is the business outcome of contact creation.
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

// Qualification is the business outcome of manual verification.
type Qualification string

const (
	Qualified   Qualification = "QUALIFIED"
	Unqualified Qualification = "UNQUALIFIED"
)

// ConnectRequest starts SMS verification for an applicant.
type ConnectRequest struct {
	Phone               string
	Email               string
	DateOfBirth         string
	LoanAmount          int
	LoanPurpose         string
	EmploymentStatus    string
	EmploymentFrequency string
	EducationLevel      string
	AnnualIncome        int
	PropertyStatus      string
	IPAddress           string
	MarketingParams     map[string]string
}

// ConnectResponse is returned by connect and verify.
type ConnectResponse struct {
	Status       Status `json:"status"`
	ConnectionID string `json:"spinwheelId,omitempty"`
	RecordID     string `json:"hubspotRecordId,omitempty"`
}

type VerifyRequest struct {
	Code         string `json:"code"`
	ConnectionID string `json:"spinwheelId"`
	Email        string `json:"email"`
	RecordID     string `json:"hubspotRecordId"`
}

type CreateContactRequest struct {
	ConnectionID string `json:"spinwheelId"`
	Email        string `json:"email"`
	RecordID     string `json:"hubspotRecordId"`
}

type CreateContactResponse struct {
	ProviderStatus string   `json:"spinwheelStatus"`
	FirstName      string   `json:"firstName"`
	Decision       Decision `json:"state"`
	Status         Status   `json:"status"`
}

type ManualRequest struct {
	OfferCode string
	FirstName string
	LastName  string
	Email     string
	Street    string
	City      string
	State     string
	Zip       string
}

type ManualResponse struct {
	Qualification Qualification `json:"prospectStatus"`
	Status        Status        `json:"status"`
}

type OffersRequest struct {
	Email               string
	SsnLast4            string
	LoanAmount          int
	LoanPurpose         string
	EmploymentStatus    string
	EmploymentFrequency string
	EducationLevel      string
	AnnualIncome        int
	PropertyStatus      string
	IPAddress           string
}

type OffersResponse struct {
	Status  Status `json:"status"`
	OfferID string `json:"offerId"`
}

// Wire bodies.

type connectBody struct {
	Email                  string            `json:"email"`
	Phone                  string            `json:"phone"`
	DateOfBirth            string            `json:"dateOfBirth"`
	LoanAmount             int               `json:"loanAmount"`
	LoanPurpose            string            `json:"loanPurpose"`
	EmploymentStatus       string            `json:"employmentStatus"`
	EmploymentPayFrequency string            `json:"employmentPayFrequency"`
	EducationLevel         string            `json:"educationLevel"`
	AnnualIncome           int               `json:"annualIncome"`
	PropertyStatus         string            `json:"propertyStatus"`
	IPAddress              string            `json:"ipAddress"`
	MarketingParams        map[string]string `json:"marketingParams"`
}

type manualBody struct {
	OfferCode    string `json:"offerCode"`
	PersonalInfo struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
	} `json:"personalInfo"`
	AddressInfo struct {
		Street string `json:"street"`
		City   string `json:"city"`
		State  string `json:"state"`
		Zip    string `json:"zip"`
	} `json:"addressInfo"`
}

type offersBody struct {
	Email                  string `json:"email"`
	SensitiveLastFourSsn   int    `json:"sensitiveLastFourSsn"`
	LoanAmount             int    `json:"loanAmount"`
	LoanPurpose            string `json:"loanPurpose"`
	EmploymentStatus       string `json:"employmentStatus"`
	EmploymentPayFrequency string `json:"employmentPayFrequency"`
	EducationLevel         string `json:"educationLevel"`
	AnnualIncome           int    `json:"annualIncome"`
	PropertyStatus         string `json:"propertyStatus"`
	IPAddress              string `json:"ipAddress"`
}

// defaultPayFrequency is sent when the applicant never chose one.
const defaultPayFrequency = "biweekly"

func payFrequency(f string) string {
	if f == "" {
		return defaultPayFrequency
	}
	return f
}
