package hubspot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "loan-intake/internal/common/errors"
	"loan-intake/internal/models"
)

type captured struct {
	path string
	body submission
}

func newServer(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&c.body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func newClient(t *testing.T, baseURL string) *FormsClient {
	t.Helper()
	c, err := NewFormsClient(Config{BaseURL: baseURL, PortalID: "12345"})
	require.NoError(t, err)
	return c
}

func fieldMap(fields []Field) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		out[f.Name] = f.Value
	}
	return out
}

func TestNewFormsClient_RequiresPortal(t *testing.T) {
	_, err := NewFormsClient(Config{BaseURL: "http://example.test"})
	assert.Error(t, err)
}

func TestSubmitBirthDateForm(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"inlineMessage":"Thanks"}`)
	client := newClient(t, srv.URL)

	resp, err := client.SubmitBirthDateForm(context.Background(), "a@b.com", "1990-05-01",
		PageContext{PageURI: "https://symplelending.com/birth-date"})
	require.NoError(t, err)
	assert.Equal(t, "Thanks", resp.InlineMessage)

	assert.Equal(t, "/12345/"+DefaultBirthDateFormID, got.path)
	fields := fieldMap(got.body.Fields)
	assert.Equal(t, "a@b.com", fields["email"])
	assert.Equal(t, "1990-05-01", fields["date_of_birth"])
	assert.Equal(t, "1990-05-01", fields["date_of_birth__c"])
	assert.Equal(t, "1990-05-01", fields["sensitive_date_of_birth"])
	assert.Equal(t, "https://symplelending.com/birth-date", got.body.Context.PageURI)
}

func TestSubmitPhoneForm(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{}`)
	client := newClient(t, srv.URL)

	_, err := client.SubmitPhoneForm(context.Background(), "a@b.com", "(555) 123-4567", true, false, PageContext{})
	require.NoError(t, err)

	assert.Equal(t, "/12345/"+DefaultPhoneFormID, got.path)
	fields := fieldMap(got.body.Fields)
	assert.Equal(t, "+15551234567", fields["phone"])
	assert.Equal(t, "+15551234567", fields["mobilephone"])
	assert.Equal(t, true, fields["LEGAL_CONSENT.subscription_type_283760521"])
	assert.Equal(t, false, fields["LEGAL_CONSENT.subscription_type_283760522"])
	assert.Equal(t, "Legitimate interest", fields["hs_legal_basis"])
}

func TestSubmitPhoneForm_RejectsShortPhone(t *testing.T) {
	client := newClient(t, "http://unused.test")

	_, err := client.SubmitPhoneForm(context.Background(), "a@b.com", "555", true, true, PageContext{})
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodePhoneFormatInvalid))
}

func TestSubmitScheduledCall(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{}`)
	client := newClient(t, srv.URL)
	slot := time.Date(2024, 3, 21, 16, 30, 0, 0, time.UTC)

	_, err := client.SubmitScheduledCall(context.Background(), "a@b.com", "Jane", "5551234567",
		slot, "America/Los_Angeles", PageContext{})
	require.NoError(t, err)

	fields := fieldMap(got.body.Fields)
	assert.Equal(t, "Jane", fields["firstname"])
	assert.Equal(t, "2024-03-21T16:30:00.000Z", fields["scheduled_time"])
	assert.Equal(t, "America/Los_Angeles", fields["timezone"])
	assert.Equal(t, "Scheduled", fields["call_status"])
}

func TestSubmitEmailForm_MarketingParams(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{}`)
	client := newClient(t, srv.URL)

	form := models.DefaultFormData()
	form.LoanPurpose = "debt_consolidation"
	params := MarketingParams(form, Visit{
		Domain: "sym",
		Query:  map[string]string{"utm_source": "google", "ignored": "x"},
		Device: "mobile",
	})

	_, err := client.SubmitEmailForm(context.Background(), "a@b.com", params, PageContext{})
	require.NoError(t, err)

	require.NotEmpty(t, got.body.Fields)
	assert.Equal(t, "email", got.body.Fields[0].Name)
	fields := fieldMap(got.body.Fields)
	assert.Equal(t, "google", fields["utm_source"])
	assert.Equal(t, "", fields["gclid"])
	assert.Equal(t, "sym", fields["lead_source_code__c"])
	assert.Equal(t, "5000", fields["loan_amount"])
	assert.Equal(t, "50000", fields["engine_annual_income"])
	assert.Equal(t, "debt_consolidation", fields["loan_purpose"])
	assert.NotContains(t, fields, "ignored")
}

func TestSubmitForm_ErrorStatus(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadRequest, `{"status":"error","message":"Invalid email"}`)
	client := newClient(t, srv.URL)

	_, err := client.SubmitBirthDateForm(context.Background(), "bad", "1990-05-01", PageContext{})
	require.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeExternalService))
	stdErr, _ := stderrors.AsStandard(err)
	assert.Contains(t, stdErr.Details, "Invalid email")
}
