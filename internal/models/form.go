package models

// FormData is the applicant's in-progress answers.
type FormData struct {
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	BirthDate           string `json:"birthDate"`
	SmsConsent          bool   `json:"smsConsent"`
	PromoSmsConsent     bool   `json:"promoSmsConsent"`
	SmsCode             string `json:"smsCode"`
	SsnLast4            string `json:"ssnLast4"`
	LoanAmount          int    `json:"loanAmount"`
	LoanPurpose         string `json:"loanPurpose"`
	PropertyStatus      string `json:"propertyStatus"`
	EmploymentStatus    string `json:"employmentStatus"`
	EmploymentFrequency string `json:"employmentFrequency"`
	AnnualIncome        int    `json:"annualIncome"`
	EducationLevel      string `json:"educationLevel"`
}

// DefaultFormData is the form state used when nothing was stored yet.
func DefaultFormData() FormData {
	return FormData{
		SmsConsent:      true,
		PromoSmsConsent: false,
		LoanAmount:      5000,
		AnnualIncome:    50000,
	}
}

// FormUpdate is a partial step submission. Nil fields are left untouched.
type FormUpdate struct {
	Email               *string `json:"email,omitempty"`
	Phone               *string `json:"phone,omitempty"`
	BirthDate           *string `json:"birthDate,omitempty"`
	SmsConsent          *bool   `json:"smsConsent,omitempty"`
	PromoSmsConsent     *bool   `json:"promoSmsConsent,omitempty"`
	SmsCode             *string `json:"smsCode,omitempty"`
	SsnLast4            *string `json:"ssnLast4,omitempty"`
	LoanAmount          *int    `json:"loanAmount,omitempty"`
	LoanPurpose         *string `json:"loanPurpose,omitempty"`
	PropertyStatus      *string `json:"propertyStatus,omitempty"`
	EmploymentStatus    *string `json:"employmentStatus,omitempty"`
	EmploymentFrequency *string `json:"employmentFrequency,omitempty"`
	AnnualIncome        *int    `json:"annualIncome,omitempty"`
	EducationLevel      *string `json:"educationLevel,omitempty"`
}

// Apply merges the non-nil fields of u into f.
func (u FormUpdate) Apply(f *FormData) {
	if u.Email != nil {
		f.Email = *u.Email
	}
	if u.Phone != nil {
		f.Phone = *u.Phone
	}
	if u.BirthDate != nil {
		f.BirthDate = *u.BirthDate
	}
	if u.SmsConsent != nil {
		f.SmsConsent = *u.SmsConsent
	}
	if u.PromoSmsConsent != nil {
		f.PromoSmsConsent = *u.PromoSmsConsent
	}
	if u.SmsCode != nil {
		f.SmsCode = *u.SmsCode
	}
	if u.SsnLast4 != nil {
		f.SsnLast4 = *u.SsnLast4
	}
	if u.LoanAmount != nil {
		f.LoanAmount = *u.LoanAmount
	}
	if u.LoanPurpose != nil {
		f.LoanPurpose = *u.LoanPurpose
	}
	if u.PropertyStatus != nil {
		f.PropertyStatus = *u.PropertyStatus
	}
	if u.EmploymentStatus != nil {
		f.EmploymentStatus = *u.EmploymentStatus
	}
	if u.EmploymentFrequency != nil {
		f.EmploymentFrequency = *u.EmploymentFrequency
	}
	if u.AnnualIncome != nil {
		f.AnnualIncome = *u.AnnualIncome
	}
	if u.EducationLevel != nil {
		f.EducationLevel = *u.EducationLevel
	}
}

// Field enums.
var (
	LoanPurposes = []string{
		"debt_consolidation", "credit_card_refi", "emergency",
		"home_improvement", "large_purchases", "other",
	}
	PropertyStatuses = []string{"own_with_mortgage", "rent"}
	EmploymentStatuses = []string{
		"employed", "employed_full_time", "employed_part_time", "military",
		"not_employed", "self_employed", "retired", "other",
	}
	EmploymentFrequencies = []string{"weekly", "biweekly", "twice_monthly", "monthly"}
	EducationLevels = []string{
		"high_school", "associate", "bachelors", "masters", "doctorate",
		"other_grad_degree", "certificate", "did_not_graduate",
		"still_enrolled", "other",
	}
)

const (
	MinLoanAmount = 500
	MaxLoanAmount = 50000
)
