package hubspot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	stderrors "loan-intake/internal/common/errors"
	commonhttp "loan-intake/internal/common/http"
	"loan-intake/internal/common/validation"
	"loan-intake/internal/models"
)

// Default form ids of the lead-capture portal.
const (
	DefaultEmailFormID         = "283760521"
	DefaultBirthDateFormID     = "283760522"
	DefaultPhoneFormID         = "283760523"
	DefaultScheduledCallFormID = "283760524"
)

type FormIDs struct {
	Email         string
	BirthDate     string
	Phone         string
	ScheduledCall string
}

type Config struct {
	BaseURL  string
	PortalID string
	Forms    FormIDs
	Timeout  time.Duration
}

// FormsClient submits lead-capture forms to the HubSpot forms API.
type FormsClient struct {
	baseURL    string
	portalID   string
	forms      FormIDs
	httpClient *commonhttp.Client
}

type Field struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// PageContext identifies the page the submission came from.
type PageContext struct {
	PageURI   string `json:"pageUri,omitempty"`
	PageName  string `json:"pageName,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	HUTK      string `json:"hutk,omitempty"`
}

type submission struct {
	Fields  []Field     `json:"fields"`
	Context PageContext `json:"context"`
}

type SubmitResponse struct {
	InlineMessage string `json:"inlineMessage,omitempty"`
	RedirectURI   string `json:"redirectUri,omitempty"`
	Status        string `json:"status,omitempty"`
	Message       string `json:"message,omitempty"`
}

func NewFormsClient(cfg Config) (*FormsClient, error) {
	if cfg.PortalID == "" {
		return nil, fmt.Errorf("HubSpot Portal ID not configured")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	forms := cfg.Forms
	if forms.Email == "" {
		forms.Email = DefaultEmailFormID
	}
	if forms.BirthDate == "" {
		forms.BirthDate = DefaultBirthDateFormID
	}
	if forms.Phone == "" {
		forms.Phone = DefaultPhoneFormID
	}
	if forms.ScheduledCall == "" {
		forms.ScheduledCall = DefaultScheduledCallFormID
	}

	return &FormsClient{
		baseURL:    cfg.BaseURL,
		portalID:   cfg.PortalID,
		forms:      forms,
		httpClient: commonhttp.NewClient(cfg.Timeout),
	}, nil
}

// SubmitForm posts fields to one form.
func (c *FormsClient) SubmitForm(ctx context.Context, formID string, fields []Field, page PageContext) (*SubmitResponse, error) {
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, c.portalID, formID)

	resp, err := c.httpClient.PostJSON(ctx, url, submission{Fields: fields, Context: page})
	if err != nil {
		return nil, stderrors.NewExternalServiceError("hubspot", err)
	}

	var out SubmitResponse
	_ = resp.Decode(&out)

	if !resp.OK() {
		msg := out.Message
		if msg == "" {
			msg = "Failed to submit form"
		}
		return nil, stderrors.NewExternalServiceError("hubspot",
			fmt.Errorf("form %s (status %d): %s", formID, resp.StatusCode, msg))
	}

	return &out, nil
}

// SubmitEmailForm sends the email with the visitor's marketing parameters.
func (c *FormsClient) SubmitEmailForm(ctx context.Context, email string, marketing map[string]string, page PageContext) (*SubmitResponse, error) {
	fields := []Field{{Name: "email", Value: email}}

	keys := make([]string, 0, len(marketing))
	for k := range marketing {
		if k != "email" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, Field{Name: k, Value: marketing[k]})
	}

	return c.SubmitForm(ctx, c.forms.Email, fields, page)
}

func (c *FormsClient) SubmitBirthDateForm(ctx context.Context, email, birthDate string, page PageContext) (*SubmitResponse, error) {
	return c.SubmitForm(ctx, c.forms.BirthDate, []Field{
		{Name: "email", Value: email},
		{Name: "date_of_birth", Value: birthDate},
		{Name: "date_of_birth__c", Value: birthDate},
		{Name: "sensitive_date_of_birth", Value: birthDate},
	}, page)
}

// SubmitPhoneForm records the phone number and both SMS consents.
func (c *FormsClient) SubmitPhoneForm(ctx context.Context, email, phone string, smsConsent, promoSmsConsent bool, page PageContext) (*SubmitResponse, error) {
	e164, err := validation.FormatE164(phone)
	if err != nil {
		return nil, err
	}
	return c.SubmitForm(ctx, c.forms.Phone, []Field{
		{Name: "email", Value: email},
		{Name: "phone", Value: e164},
		{Name: "LEGAL_CONSENT.subscription_type_283760521", Value: smsConsent},
		{Name: "LEGAL_CONSENT.subscription_type_283760522", Value: promoSmsConsent},
		{Name: "mobilephone", Value: e164},
		{Name: "hs_legal_basis", Value: "Legitimate interest"},
	}, page)
}

func (c *FormsClient) SubmitScheduledCall(ctx context.Context, email, firstName, phone string, scheduled time.Time, timezone string, page PageContext) (*SubmitResponse, error) {
	e164, err := validation.FormatE164(phone)
	if err != nil {
		return nil, err
	}
	return c.SubmitForm(ctx, c.forms.ScheduledCall, []Field{
		{Name: "email", Value: email},
		{Name: "firstname", Value: firstName},
		{Name: "phone", Value: e164},
		{Name: "scheduled_time", Value: scheduled.UTC().Format("2006-01-02T15:04:05.000Z")},
		{Name: "timezone", Value: timezone},
		{Name: "call_status", Value: "Scheduled"},
	}, page)
}

// TrackingParams lists the query parameters copied from the landing URL
// into the email form.
var TrackingParams = []string{
	"gclid", "utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"fbclid", "fb_source", "ttclid", "msclkid",
	"source", "medium", "campaign", "term", "content",
	"affiliate_id", "partner_id", "sub_id", "placement", "creative",
	"matchtype", "network", "target", "position",
	"loc_physical_ms", "loc_interest_ms",
}

// Visit describes where the visitor arrived from.
type Visit struct {
	Domain      string
	Query       map[string]string
	Referrer    string
	LandingPage string
	Device      string
	Platform    string
}

// MarketingParams merges tracking parameters with the answers disclosed so
// far. Every known key is present, blank when unknown.
func MarketingParams(form models.FormData, visit Visit) map[string]string {
	params := make(map[string]string, len(TrackingParams)+16)
	for _, k := range TrackingParams {
		params[k] = visit.Query[k]
	}

	params["lead_source_code__c"] = visit.Domain
	params["referrer"] = visit.Referrer
	params["landing_page"] = visit.LandingPage
	params["device"] = visit.Device
	params["platform"] = visit.Platform

	params["loan_amount"] = strconv.Itoa(form.LoanAmount)
	params["loan_purpose"] = form.LoanPurpose
	params["property_status"] = form.PropertyStatus
	params["employment_status"] = form.EmploymentStatus
	params["employment_pay_frequency"] = form.EmploymentFrequency
	params["annual_income__c"] = strconv.Itoa(form.AnnualIncome)
	params["engine_annual_income"] = strconv.Itoa(form.AnnualIncome)
	params["education_level"] = form.EducationLevel
	return params
}
