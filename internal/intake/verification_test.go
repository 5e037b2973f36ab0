package intake

import (
	"context"
	"sync"
	"testing"
	"time"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/leads"
	"loan-intake/internal/models"
	"loan-intake/internal/routes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectBySms_Success(t *testing.T) {
	f := newFixture(t, 0)
	f.connect(t)

	v := f.o.View(context.Background())
	assert.Equal(t, models.StatusSmsCode, v.ApplicationStatus)
	assert.Equal(t, "(555) 123-4567", v.FormData.Phone)
	assert.Equal(t, 0, v.ContactAttempts)
	assert.False(t, v.Loading)
}

func TestConnectBySms_ThreeFailuresForceManualWithoutFourthCall(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.walkToContactInfo(t)
	f.sim.FailNext(leads.OpConnect, 3, networkErr(leads.OpConnect))

	update := models.FormUpdate{Phone: strp("5551234567")}
	for i := 1; i <= 2; i++ {
		res := f.o.ConnectBySms(ctx, update)
		require.False(t, res.Success)
		assert.Equal(t, errors.GenericMessage, res.Error)
		assert.Equal(t, routes.ContactInfo, res.View.Route)
		assert.Equal(t, i, res.View.ContactAttempts)
		assert.False(t, res.View.ManualVerification)
	}

	res := f.o.ConnectBySms(ctx, update)
	require.False(t, res.Success)
	assert.Equal(t, routes.VerifyPhone, res.View.Route)
	assert.True(t, res.View.ManualVerification)
	assert.Equal(t, 3, f.sim.Calls(leads.OpConnect))

	res = f.o.ConnectBySms(ctx, update)
	assert.False(t, res.Success)
	assert.Equal(t, 3, f.sim.Calls(leads.OpConnect), "no fourth attempt reaches the backend")

	res = f.o.ResendCode(ctx)
	assert.False(t, res.Success)
	assert.Equal(t, 3, f.sim.Calls(leads.OpConnect))
}

func TestConnectBySms_ValidatesContactFields(t *testing.T) {
	f := newFixture(t, 0)
	f.walkToContactInfo(t)

	res := f.o.ConnectBySms(context.Background(), models.FormUpdate{Phone: strp("555-12")})
	assert.False(t, res.Success)
	assert.Equal(t, "Please enter a valid 10-digit phone number", res.ValidationErrors["phone"])
	assert.Equal(t, 0, f.sim.Calls(leads.OpConnect))
	assert.Equal(t, 0, res.View.ContactAttempts)
}

func TestConnectBySms_BackendMessageSurfaces(t *testing.T) {
	f := newFixture(t, 0)
	f.walkToContactInfo(t)
	f.sim.FailNext(leads.OpConnect, 1, errors.NewLeadsAPIError("connect", 400, "Phone number is not mobile"))

	res := f.o.ConnectBySms(context.Background(), models.FormUpdate{Phone: strp("5551234567")})
	assert.False(t, res.Success)
	assert.Equal(t, "Phone number is not mobile", res.Error)
	assert.Equal(t, "Phone number is not mobile", res.View.Error)
}

func TestVerifyPhone_Accepted(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.connect(t)

	res := f.o.VerifyPhone(ctx, "123456")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, routes.Success, res.View.Route)
	assert.Equal(t, models.StatusSuccess, res.View.ApplicationStatus)
	assert.Equal(t, leads.SimulatedFirstName, res.View.ContactFirstName)
	assert.Equal(t, leads.SimulatedFirstName, f.store.ContactFirstName(ctx))

	_, ok := f.store.FormData(ctx)
	assert.False(t, ok, "form data is cleared after the outcome")

	rec := f.store.ApplicationData(ctx)
	require.NotNil(t, rec)
	assert.Equal(t, models.OutcomeSuccess, rec.Status)
	assert.Equal(t, "jane@example.com", rec.Email)
	assert.True(t, f.store.IsApplicationBlocked(ctx))

	res = f.o.Enter(ctx, routes.Start)
	assert.Equal(t, routes.Hold, res.View.Route)
	assert.Equal(t, 30, res.View.BlockDaysRemaining)
}

func TestVerifyPhone_CallerCancellationKeepsAttempts(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)
	f.connect(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(5*time.Millisecond, cancel)

	res := f.o.VerifyPhone(ctx, "123456")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, routes.Success, res.View.Route)
	assert.Equal(t, 0, res.View.VerificationAttempts)
	assert.Equal(t, models.StatusSuccess, res.View.ApplicationStatus)
}

func TestVerifyPhone_RejectedGoesToSsn(t *testing.T) {
	f := newFixture(t, 0)
	f.connect(t)
	f.sim.SetDecision(leads.DecisionRejected)

	res := f.o.VerifyPhone(context.Background(), "123456")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, routes.VerifySsn, res.View.Route)
}

func TestVerifyPhone_UnprocessableTreatedAsRejected(t *testing.T) {
	f := newFixture(t, 0)
	f.connect(t)
	f.sim.FailNext(leads.OpCreate, 1, errors.NewLeadsAPIError("create", 422, "Unprocessable"))

	res := f.o.VerifyPhone(context.Background(), "123456")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, routes.VerifySsn, res.View.Route)
	assert.Equal(t, 0, res.View.VerificationAttempts)
}

func TestVerifyPhone_FailuresForceManual(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.connect(t)
	f.sim.FailNext(leads.OpVerify, 3, errors.NewLeadsAPIError("verify", 400, "Invalid verification code"))

	for i := 1; i <= 3; i++ {
		res := f.o.VerifyPhone(ctx, "000000")
		require.False(t, res.Success)
		assert.Equal(t, "Invalid verification code", res.Error)
		assert.Equal(t, i, res.View.VerificationAttempts)
		assert.Equal(t, i >= 3, res.View.ManualVerification)
	}
	assert.Equal(t, 0, f.sim.Calls(leads.OpCreate))

	res := f.o.CancelManualVerification(ctx)
	require.True(t, res.Success)
	assert.False(t, res.View.ManualVerification)
	assert.Equal(t, 0, res.View.VerificationAttempts)
	assert.Equal(t, "", res.View.FormData.SmsCode)
}

func TestVerifyPhone_ContactErrorsCountTowardsManual(t *testing.T) {
	f := newFixture(t, 0)
	f.connect(t)
	f.sim.FailNext(leads.OpCreate, 3, errors.NewLeadsAPIError("create", 500, "Upstream failure"))

	var res Result
	for i := 0; i < 3; i++ {
		res = f.o.VerifyPhone(context.Background(), "123456")
		require.False(t, res.Success)
	}
	assert.True(t, res.View.ManualVerification)
	assert.Equal(t, routes.VerifyPhone, res.View.Route)
}

func TestVerifyPhone_RequiresCode(t *testing.T) {
	f := newFixture(t, 0)
	f.connect(t)

	res := f.o.VerifyPhone(context.Background(), "")
	assert.False(t, res.Success)
	assert.Contains(t, res.ValidationErrors, "smsCode")
	assert.Equal(t, 0, f.sim.Calls(leads.OpVerify))
}

func TestVerifyCode_MissingSession(t *testing.T) {
	f := newFixture(t, 0)
	f.walkToContactInfo(t)

	res := f.o.VerifyCode(context.Background(), "123456")
	assert.False(t, res.Success)
	assert.Equal(t, string(errors.ErrCodeVerificationMissing), res.ErrorCode)
	assert.Equal(t, "Missing required verification data", res.Error)
	assert.Equal(t, routes.Start, res.View.Route)
	assert.Equal(t, 0, res.View.VerificationAttempts)
	assert.Equal(t, 0, f.sim.Calls(leads.OpVerify))

	res = f.o.CreateContact(context.Background())
	assert.Equal(t, string(errors.ErrCodeVerificationMissing), res.ErrorCode)
	assert.Equal(t, 0, f.sim.Calls(leads.OpCreate))
}

func TestVerifyCodeThenCreateContact(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.connect(t)

	res := f.o.VerifyCode(ctx, "123456")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, routes.VerifyPhone, res.View.Route)

	res = f.o.CreateContact(ctx)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, routes.Success, res.View.Route)
}

func TestResendCode_ClearsCode(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.connect(t)
	f.sim.FailNext(leads.OpVerify, 1, errors.NewLeadsAPIError("verify", 400, "Invalid verification code"))
	f.o.VerifyPhone(ctx, "111111")

	res := f.o.ResendCode(ctx)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "", res.View.FormData.SmsCode)
	assert.Equal(t, 2, f.sim.Calls(leads.OpConnect))
	assert.Equal(t, routes.VerifyPhone, res.View.Route)
}

func TestReenterInfo(t *testing.T) {
	f := newFixture(t, 0)
	f.connect(t)

	res := f.o.ReenterInfo(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, routes.BirthDate, res.View.Route)
	assert.Equal(t, "", res.View.FormData.SmsCode)
}

func TestVerifyManually(t *testing.T) {
	complete := models.ManualVerification{
		FirstName: "Jane", LastName: "Doe", Address1: "1 Main St",
		City: "Austin", State: "TX", ZipCode: "73301",
	}

	t.Run("qualified", func(t *testing.T) {
		f := newFixture(t, 0)
		ctx := context.Background()
		f.connect(t)
		f.o.RequestManualVerification(ctx)

		res := f.o.VerifyManually(ctx, complete)
		require.True(t, res.Success, res.Error)
		assert.Equal(t, routes.Success, res.View.Route)
		assert.Equal(t, "Jane", res.View.ContactFirstName)
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t, 0)
		ctx := context.Background()
		f.connect(t)

		data := complete
		data.OfferCode = leads.SimulatedNotFoundOffer
		res := f.o.VerifyManually(ctx, data)
		assert.False(t, res.Success)
		assert.Equal(t, routes.Unsuccessful, res.View.Route)
		assert.Equal(t, models.StatusFailed, res.View.ApplicationStatus)
		assert.True(t, f.store.IsApplicationBlocked(ctx))
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t, 0)
		ctx := context.Background()
		f.connect(t)

		res := f.o.VerifyManually(ctx, models.ManualVerification{FirstName: "Jane"})
		assert.False(t, res.Success)
		assert.Contains(t, res.ValidationErrors, "lastName")
		assert.NotContains(t, res.ValidationErrors, "email", "email falls back to the form")
		assert.Equal(t, routes.VerifyPhone, res.View.Route)
		assert.Equal(t, 0, f.sim.Calls(leads.OpManual))
	})
}

func TestOperationsRejectedWhileLoading(t *testing.T) {
	ctx := context.Background()
	slow := newFixture(t, 300*time.Millisecond)
	slow.walkToContactInfo(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		slow.o.ConnectBySms(ctx, models.FormUpdate{Phone: strp("5551234567")})
	}()

	require.Eventually(t, func() bool { return slow.o.View(ctx).Loading }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Creating secure connection...", slow.o.View(ctx).LoadingMessage)

	res := slow.o.ResendCode(ctx)
	assert.Equal(t, string(errors.ErrCodeRequestInProgress), res.ErrorCode)
	res = slow.o.GoBack(ctx)
	assert.Equal(t, string(errors.ErrCodeRequestInProgress), res.ErrorCode)

	wg.Wait()
	v := slow.o.View(ctx)
	assert.False(t, v.Loading)
	assert.Equal(t, routes.VerifyPhone, v.Route)
	assert.Empty(t, v.Error)
	assert.Equal(t, 1, slow.sim.Calls(leads.OpConnect))
}
