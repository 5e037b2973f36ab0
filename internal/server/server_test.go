package server

import (
	"bytes"
	"context"
	"encoding/json"
	stdliberrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"loan-intake/internal/analytics"
	"loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/intake"
	"loan-intake/internal/iplookup"
	"loan-intake/internal/leads"
	"loan-intake/internal/models"
	"loan-intake/internal/routes"
	"loan-intake/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

var fixedNow = time.Date(2024, 3, 20, 17, 0, 0, 0, time.UTC)

type staticLeads struct {
	client leads.Client
	err    error
}

func (s staticLeads) ForHost(string) (leads.Client, error) {
	return s.client, s.err
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	server   *Server
	handler  http.Handler
	sim      *leads.Simulator
	recorder *analytics.Recorder
	session  *storage.MemoryKV
	durable  *storage.MemoryKV
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, storage.NewMemoryKV(), storage.NewMemoryKV(), nil)
}

func newTestEnvWith(t *testing.T, session, durable *storage.MemoryKV, readiness map[string]Pinger) *testEnv {
	t.Helper()
	sim := leads.NewSimulator(0)
	rec := analytics.NewRecorder()
	srv := New(Dependencies{
		SessionKV:  session,
		DurableKV:  durable,
		Leads:      staticLeads{client: sim},
		Sink:       rec,
		IPResolver: iplookup.Static("203.0.113.7"),
		Logger:     logger.NewTestLogger(t),
		Now:        func() time.Time { return fixedNow },
		Readiness:  readiness,
	}, Options{})
	return &testEnv{server: srv, handler: srv.Routes(), sim: sim, recorder: rec, session: session, durable: durable}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) create(t *testing.T, body interface{}) sessionResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/sessions", body)
	require.Contains(t, []int{http.StatusCreated, http.StatusOK}, w.Code, w.Body.String())
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (e *testEnv) post(t *testing.T, sessionID, path string, body interface{}) (int, intake.Result) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/sessions/"+sessionID+path, body)
	var res intake.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return w.Code, res
}

func (e *testEnv) walkToContactInfo(t *testing.T, id string) {
	t.Helper()
	for _, body := range []map[string]interface{}{
		{},
		{"loanAmount": 5000},
		{"loanPurpose": "debt_consolidation"},
		{"propertyStatus": "rent"},
		{"employmentStatus": "employed"},
		{"employmentFrequency": "biweekly"},
		{"annualIncome": 60000},
		{"educationLevel": "bachelors"},
		{"email": "jane@example.com"},
		{"birthDate": "1990-05-01"},
	} {
		code, res := e.post(t, id, "/steps", body)
		require.Equal(t, http.StatusOK, code, res.Error)
	}
}

// ==========================
// Operational endpoints
// ==========================

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
}

func TestReady(t *testing.T) {
	ok := newTestEnvWith(t, storage.NewMemoryKV(), storage.NewMemoryKV(), map[string]Pinger{
		"redis": pingerFunc(func(context.Context) error { return nil }),
	})
	assert.Equal(t, http.StatusOK, ok.do(t, http.MethodGet, "/ready", nil).Code)

	down := newTestEnvWith(t, storage.NewMemoryKV(), storage.NewMemoryKV(), map[string]Pinger{
		"postgres": pingerFunc(func(context.Context) error { return stdliberrors.New("connection refused") }),
	})
	w := down.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "postgres")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, nil)

	w := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "intake_active_sessions")
}

func TestBusinessHours(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/v1/schedule/business-hours", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["businessHours"])
	assert.Equal(t, "America/Los_Angeles", body["timezone"])
}

// ==========================
// Sessions
// ==========================

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)
	resp := env.create(t, map[string]interface{}{
		"landingPage": "https://example.com/apply",
		"query":       map[string]string{"utm_source": "google"},
	})

	assert.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.VisitorID)
	assert.True(t, resp.Result.Success)
	assert.Equal(t, routes.Start, resp.Result.View.Route)
	assert.Equal(t, 12, resp.Result.View.TotalSteps)
	assert.Equal(t, 1, env.server.Registry().Len())

	w := env.do(t, http.MethodGet, "/v1/sessions/"+resp.SessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view intake.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, models.DefaultFormData(), view.FormData)
}

func TestCreateSession_ResumesLiveVisitor(t *testing.T) {
	env := newTestEnv(t)
	first := env.create(t, nil)

	second := env.create(t, map[string]interface{}{"visitorId": first.VisitorID})
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, 1, env.server.Registry().Len())
}

func TestCreateSession_RejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/sessions", map[string]interface{}{"visitorId": "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/v1/sessions", map[string]interface{}{"unexpected": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(errors.ErrCodeValidationFailed))
}

func TestCreateSession_LeadsClientUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.server.deps.Leads = staticLeads{err: stdliberrors.New("leads.sym.api_base_url missing")}

	w := env.do(t, http.MethodPost, "/v1/sessions", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), errors.GenericMessage)
}

func TestUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	code, res := env.post(t, "missing", "/steps", map[string]interface{}{})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, string(errors.ErrCodeSessionNotFound), res.ErrorCode)
}

func TestSubmitStep_SchemaValidation(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, nil).SessionID
	env.post(t, id, "/steps", map[string]interface{}{})
	env.post(t, id, "/steps", map[string]interface{}{"loanAmount": 5000})

	code, res := env.post(t, id, "/steps", map[string]interface{}{"loanPurpose": "vacation"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, string(errors.ErrCodeValidationFailed), res.ErrorCode)
	assert.Contains(t, res.ValidationErrors, "loanPurpose")
	assert.Equal(t, routes.LoanPurpose, res.View.Route)
}

func TestFullFlow_ThenHoldAfterRestart(t *testing.T) {
	env := newTestEnv(t)
	created := env.create(t, nil)
	id := created.SessionID
	env.walkToContactInfo(t, id)

	code, res := env.post(t, id, "/sms/connect", map[string]interface{}{"phone": "5551234567"})
	require.Equal(t, http.StatusOK, code, res.Error)
	assert.Equal(t, routes.VerifyPhone, res.View.Route)

	code, res = env.post(t, id, "/sms/verify", map[string]interface{}{"code": "123456"})
	require.Equal(t, http.StatusOK, code, res.Error)
	assert.Equal(t, routes.Success, res.View.Route)
	assert.Equal(t, leads.SimulatedFirstName, res.View.ContactFirstName)

	w := env.do(t, http.MethodGet, "/v1/sessions/"+id+"/schedule/slots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "availableSlots")

	restarted := newTestEnvWith(t, env.session, env.durable, nil)
	resumed := restarted.create(t, map[string]interface{}{"visitorId": created.VisitorID})
	assert.NotEqual(t, id, resumed.SessionID)
	assert.Equal(t, routes.Hold, resumed.Result.View.Route)
	assert.Equal(t, 30, resumed.Result.View.BlockDaysRemaining)
}

func TestRejectedContact_OffersRedirect(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, nil).SessionID
	env.walkToContactInfo(t, id)
	env.post(t, id, "/sms/connect", map[string]interface{}{"phone": "5551234567"})
	env.sim.SetDecision(leads.DecisionRejected)

	_, res := env.post(t, id, "/sms/verify", map[string]interface{}{"code": "123456"})
	require.Equal(t, routes.VerifySsn, res.View.Route)

	code, res := env.post(t, id, "/offers", map[string]interface{}{"ssnLast4": "12"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, res = env.post(t, id, "/offers", map[string]interface{}{"ssnLast4": "1234"})
	require.Equal(t, http.StatusOK, code, res.Error)
	assert.Contains(t, res.RedirectURL, leads.SimulatedOfferID)
	assert.Equal(t, models.StatusOffers, res.View.ApplicationStatus)

	code, res = env.post(t, id, "/offers", map[string]interface{}{"ssnLast4": "1234"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(errors.ErrCodeApplicationClosed), res.ErrorCode)
	assert.Equal(t, models.StatusOffers, res.View.ApplicationStatus)
}

func TestConnectFailure_BadGateway(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, nil).SessionID
	env.walkToContactInfo(t, id)
	env.sim.FailNext(leads.OpConnect, 1, errors.NewLeadsAPIError("connect", 400, "Phone number is not mobile"))

	code, res := env.post(t, id, "/sms/connect", map[string]interface{}{"phone": "5551234567"})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "Phone number is not mobile", res.Error)
	assert.Equal(t, 1, res.View.ContactAttempts)
}

func TestManual_UsesFormEmail(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, nil).SessionID
	env.walkToContactInfo(t, id)
	env.post(t, id, "/sms/connect", map[string]interface{}{"phone": "5551234567"})

	code, res := env.post(t, id, "/manual/request", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, res.View.ManualVerification)

	code, res = env.post(t, id, "/manual", map[string]interface{}{
		"firstName": "Jane",
		"lastName":  "Doe",
		"address1":  "1 Main St",
		"city":      "Austin",
		"state":     "TX",
		"zipCode":   "78701",
	})
	require.Equal(t, http.StatusOK, code, res.Error)
	assert.Equal(t, routes.Success, res.View.Route)
	assert.Equal(t, "Jane", res.View.ContactFirstName)
}

func TestNavigationEndpoints(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, nil).SessionID
	env.post(t, id, "/steps", map[string]interface{}{})
	env.post(t, id, "/steps", map[string]interface{}{"loanAmount": 5000})

	code, res := env.post(t, id, "/back", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, routes.LoanAmount, res.View.Route)

	code, res = env.post(t, id, "/back", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, res = env.post(t, id, "/routes/education", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, routes.LoanAmount, res.View.Route)

	code, res = env.post(t, id, "/reset", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, routes.Start, res.View.Route)
}

func TestSchedule_RequiresSuccess(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, nil).SessionID

	code, res := env.post(t, id, "/schedule", map[string]interface{}{"slot": "2024-03-20T17:30:00Z"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(errors.ErrCodeApplicationIncomplete), res.ErrorCode)

	code, _ = env.post(t, id, "/schedule", map[string]interface{}{"slot": "tomorrow"})
	assert.Equal(t, http.StatusBadRequest, code)
}

// ==========================
// Registry & helpers
// ==========================

func TestRegistry_EvictsIdleSessions(t *testing.T) {
	c := &clock{now: fixedNow}
	reg := NewRegistry(10*time.Minute, c.Now, logger.NewTestLogger(t))

	reg.Put(&Session{ID: "a", VisitorID: "va"})
	reg.Put(&Session{ID: "b", VisitorID: "vb"})

	c.Advance(8 * time.Minute)
	_, ok := reg.Get("a")
	require.True(t, ok)

	c.Advance(5 * time.Minute)
	assert.Equal(t, 1, reg.Evict())
	_, ok = reg.Get("b")
	assert.False(t, ok)
	_, ok = reg.ForVisitor("va")
	assert.True(t, ok)
}

func TestDeviceAndPlatform(t *testing.T) {
	tests := []struct {
		ua       string
		device   string
		platform string
	}{
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148", "mobile", "ios"},
		{"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)", "tablet", "ios"},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) Mobile", "mobile", "android"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", "desktop", "windows"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0)", "desktop", "macos"},
		{"curl/8.4.0", "desktop", "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.device, deviceType(tt.ua), tt.ua)
		assert.Equal(t, tt.platform, platform(tt.ua), tt.ua)
	}
}

func TestVisitFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://www.mysympleloan.com/v1/sessions?utm_source=bing&gclid=abc", nil)
	req.Header.Set("Referer", "https://bing.com")

	visit := visitFromRequest(req, createSessionRequest{
		LandingPage: "https://www.mysympleloan.com/apply",
		Query:       map[string]string{"utm_source": "google"},
	})
	assert.Equal(t, "msl", visit.Domain)
	assert.Equal(t, "google", visit.Query["utm_source"])
	assert.Equal(t, "abc", visit.Query["gclid"])
	assert.Equal(t, "https://bing.com", visit.Referrer)
	assert.Equal(t, "https://www.mysympleloan.com/apply", visit.LandingPage)
}
