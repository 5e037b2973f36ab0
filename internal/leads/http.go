package leads

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"loan-intake/internal/common/errors"
	commonhttp "loan-intake/internal/common/http"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/common/validation"
)

// DefaultTimeout bounds every leads backend call.
const DefaultTimeout = 60 * time.Second

// Observer receives per-call timings.
type Observer interface {
	ObserveLeadsCall(ctx context.Context, operation, outcome string, duration time.Duration)
}

type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func (c *HTTPConfig) Validate() error {
	if c.BaseURL == "" || c.APIKey == "" {
		return fmt.Errorf("API configuration missing: base url and api key are required")
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}

type Dependencies struct {
	Logger   logger.Logger
	Observer Observer
}

// HTTPClient calls the leads backend over HTTP.
type HTTPClient struct {
	baseURL  string
	http     *commonhttp.Client
	logger   logger.Logger
	observer Observer
}

func NewHTTPClient(deps Dependencies, cfg HTTPConfig) (*HTTPClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &HTTPClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     commonhttp.NewClient(cfg.Timeout).WithHeader("x-api-key", cfg.APIKey),
		logger:   log,
		observer: deps.Observer,
	}, nil
}

var opDescriptions = map[Operation]struct{ progress, action string }{
	OpConnect: {"connecting user", "connect user"},
	OpVerify:  {"verifying code", "verify code"},
	OpCreate:  {"creating contact", "create contact"},
	OpManual:  {"verifying manually", "verify manually"},
	OpOffers:  {"submitting application", "submit application"},
}

// post sends body to /leads/{op} and decodes a 2xx reply into out. Non-2xx
// replies carrying a status envelope become LEADS_API_ERROR; anything else
// that fails to arrive becomes LEADS_NETWORK_ERROR.
func (c *HTTPClient) post(ctx context.Context, op Operation, body interface{}, out interface{ status() Status }) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		metrics.LeadsCalls.WithLabelValues(string(op), outcome).Inc()
		if c.observer != nil {
			c.observer.ObserveLeadsCall(ctx, string(op), outcome, time.Since(start))
		}
	}()

	desc := opDescriptions[op]
	resp, err := c.http.PostJSON(ctx, fmt.Sprintf("%s/leads/%s", c.baseURL, op), body)
	if err != nil {
		outcome = "network_error"
		c.logger.Warn("Leads call failed", map[string]interface{}{
			"operation": string(op),
			"error":     err,
		})
		return errors.NewLeadsNetworkError(desc.progress, err)
	}

	if !resp.OK() {
		outcome = "api_error"
		var env envelope
		if decodeErr := resp.Decode(&env); decodeErr != nil || env.Status == nil {
			return errors.NewLeadsNetworkError(desc.progress, fmt.Errorf("status %d without envelope", resp.StatusCode))
		}
		code := env.Status.Code
		if code == 0 {
			code = resp.StatusCode
		}
		c.logger.Info("Leads call rejected", map[string]interface{}{
			"operation":  string(op),
			"statusCode": code,
			"message":    env.Status.Message,
		})
		return errors.NewLeadsAPIError(string(op), code, env.Status.Message)
	}

	if err := resp.Decode(out); err != nil {
		outcome = "invalid_response"
		return errors.NewLeadsResponseInvalidError(desc.action, err)
	}
	if out.status().Code == 0 {
		outcome = "invalid_response"
		return errors.NewLeadsResponseInvalidError(desc.action, fmt.Errorf("response has no status"))
	}
	return nil
}

func (r *ConnectResponse) status() Status       { return r.Status }
func (r *CreateContactResponse) status() Status { return r.Status }
func (r *ManualResponse) status() Status        { return r.Status }
func (r *OffersResponse) status() Status        { return r.Status }

func (c *HTTPClient) ConnectBySms(ctx context.Context, req ConnectRequest) (*ConnectResponse, error) {
	phone, err := validation.FormatE164(req.Phone)
	if err != nil {
		return nil, err
	}
	body := connectBody{
		Email:                  req.Email,
		Phone:                  phone,
		DateOfBirth:            req.DateOfBirth,
		LoanAmount:             req.LoanAmount,
		LoanPurpose:            req.LoanPurpose,
		EmploymentStatus:       req.EmploymentStatus,
		EmploymentPayFrequency: payFrequency(req.EmploymentFrequency),
		EducationLevel:         req.EducationLevel,
		AnnualIncome:           req.AnnualIncome,
		PropertyStatus:         req.PropertyStatus,
		IPAddress:              req.IPAddress,
		MarketingParams:        req.MarketingParams,
	}
	if body.MarketingParams == nil {
		body.MarketingParams = map[string]string{}
	}

	var out ConnectResponse
	if err := c.post(ctx, OpConnect, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) VerifyCode(ctx context.Context, req VerifyRequest) (*ConnectResponse, error) {
	var out ConnectResponse
	if err := c.post(ctx, OpVerify, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateContact(ctx context.Context, req CreateContactRequest) (*CreateContactResponse, error) {
	var out CreateContactResponse
	if err := c.post(ctx, OpCreate, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) VerifyManually(ctx context.Context, req ManualRequest) (*ManualResponse, error) {
	var body manualBody
	body.OfferCode = req.OfferCode
	body.PersonalInfo.FirstName = req.FirstName
	body.PersonalInfo.LastName = req.LastName
	body.PersonalInfo.Email = req.Email
	body.AddressInfo.Street = req.Street
	body.AddressInfo.City = req.City
	body.AddressInfo.State = req.State
	body.AddressInfo.Zip = req.Zip

	var out ManualResponse
	if err := c.post(ctx, OpManual, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SubmitApplication(ctx context.Context, req OffersRequest) (*OffersResponse, error) {
	ssn, _ := strconv.Atoi(req.SsnLast4)
	body := offersBody{
		Email:                  req.Email,
		SensitiveLastFourSsn:   ssn,
		LoanAmount:             req.LoanAmount,
		LoanPurpose:            req.LoanPurpose,
		EmploymentStatus:       req.EmploymentStatus,
		EmploymentPayFrequency: payFrequency(req.EmploymentFrequency),
		EducationLevel:         req.EducationLevel,
		AnnualIncome:           req.AnnualIncome,
		PropertyStatus:         req.PropertyStatus,
		IPAddress:              req.IPAddress,
	}

	var out OffersResponse
	if err := c.post(ctx, OpOffers, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
