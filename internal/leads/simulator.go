package leads

import (
	"context"
	"regexp"
	"sync"
	"time"

	"loan-intake/internal/common/errors"
)

// Canned simulator values.
const (
	DefaultSimulatorDelay  = 800 * time.Millisecond
	SimulatedConnectionID  = "mock-spinwheel-123"
	SimulatedRecordID      = "101352502280"
	SimulatedFirstName     = "CHRISTY"
	SimulatedOfferID       = "1bd9e444-4ff1-4354-accb-0a30b1929217"
	SimulatedNotFoundOffer = "notfound"
)

var smsCodePattern = regexp.MustCompile(`^\d{6}$`)

// Simulator returns canned responses after a fixed delay. Failures can be
// scripted per operation for tests.
type Simulator struct {
	delay time.Duration

	mu       sync.Mutex
	calls    map[Operation]int
	failures map[Operation][]error
	decision Decision
}

func NewSimulator(delay time.Duration) *Simulator {
	return &Simulator{
		delay:    delay,
		calls:    make(map[Operation]int),
		failures: make(map[Operation][]error),
		decision: DecisionAccepted,
	}
}

// FailNext makes the next n calls to op return err.
func (s *Simulator) FailNext(op Operation, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failures[op] = append(s.failures[op], err)
	}
}

// SetDecision changes the contact creation decision.
func (s *Simulator) SetDecision(d Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decision = d
}

// Calls returns how many times op was invoked.
func (s *Simulator) Calls(op Operation) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Simulator) begin(ctx context.Context, op Operation) error {
	s.mu.Lock()
	s.calls[op]++
	var scripted error
	if queue := s.failures[op]; len(queue) > 0 {
		scripted, s.failures[op] = queue[0], queue[1:]
	}
	s.mu.Unlock()

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return errors.NewLeadsNetworkError(string(op), ctx.Err())
		case <-timer.C:
		}
	}
	return scripted
}

func missing(op Operation, msg string) error {
	return errors.NewLeadsAPIError(string(op), 400, msg)
}

func (s *Simulator) success(message string) *ConnectResponse {
	return &ConnectResponse{
		Status:       Status{Code: 200, Message: message},
		ConnectionID: SimulatedConnectionID,
		RecordID:     SimulatedRecordID,
	}
}

func (s *Simulator) ConnectBySms(ctx context.Context, req ConnectRequest) (*ConnectResponse, error) {
	if err := s.begin(ctx, OpConnect); err != nil {
		return nil, err
	}
	if req.Phone == "" || req.Email == "" || req.DateOfBirth == "" {
		return nil, missing(OpConnect, "Missing required fields")
	}
	return s.success("SMS code sent successfully"), nil
}

func (s *Simulator) VerifyCode(ctx context.Context, req VerifyRequest) (*ConnectResponse, error) {
	if err := s.begin(ctx, OpVerify); err != nil {
		return nil, err
	}
	if !smsCodePattern.MatchString(req.Code) {
		return nil, missing(OpVerify, "Invalid verification code")
	}
	if req.ConnectionID == "" || req.Email == "" || req.RecordID == "" {
		return nil, missing(OpVerify, "Missing required fields")
	}
	return s.success("Code verified successfully"), nil
}

func (s *Simulator) CreateContact(ctx context.Context, req CreateContactRequest) (*CreateContactResponse, error) {
	if err := s.begin(ctx, OpCreate); err != nil {
		return nil, err
	}
	if req.ConnectionID == "" || req.Email == "" || req.RecordID == "" {
		return nil, missing(OpCreate, "Missing required fields")
	}

	s.mu.Lock()
	decision := s.decision
	s.mu.Unlock()

	resp := &CreateContactResponse{
		ProviderStatus: "QUALIFIED",
		FirstName:      SimulatedFirstName,
		Decision:       decision,
		Status:         Status{Code: 202, Message: "Lead accepted"},
	}
	if decision == DecisionRejected {
		resp.ProviderStatus = "UNQUALIFIED"
		resp.Status.Message = "Lead rejected"
	}
	return resp, nil
}

func (s *Simulator) VerifyManually(ctx context.Context, req ManualRequest) (*ManualResponse, error) {
	if err := s.begin(ctx, OpManual); err != nil {
		return nil, err
	}
	if req.FirstName == "" || req.LastName == "" || req.Email == "" {
		return nil, missing(OpManual, "Missing required personal information")
	}
	if req.Street == "" || req.City == "" || req.State == "" || req.Zip == "" {
		return nil, missing(OpManual, "Missing required address information")
	}
	if req.OfferCode == SimulatedNotFoundOffer {
		return &ManualResponse{
			Qualification: Unqualified,
			Status:        Status{Code: 404, Message: "USER NOT FOUND"},
		}, nil
	}
	return &ManualResponse{
		Qualification: Qualified,
		Status:        Status{Code: 200, Message: "Found prospect"},
	}, nil
}

func (s *Simulator) SubmitApplication(ctx context.Context, req OffersRequest) (*OffersResponse, error) {
	if err := s.begin(ctx, OpOffers); err != nil {
		return nil, err
	}
	if req.Email == "" || req.SsnLast4 == "" || req.LoanAmount == 0 || req.LoanPurpose == "" || req.IPAddress == "" {
		return nil, missing(OpOffers, "Missing required fields")
	}
	return &OffersResponse{
		Status:  Status{Code: 200, Message: "Success"},
		OfferID: SimulatedOfferID,
	}, nil
}
