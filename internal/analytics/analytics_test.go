package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"loan-intake/internal/common/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(ctx context.Context, eventType string, payload interface{}) (string, error) {
	args := m.Called(ctx, eventType, payload)
	return args.String(0), args.Error(1)
}

type failingSink struct{ err error }

func (f failingSink) RecordEvent(context.Context, Event) error          { return f.err }
func (f failingSink) Identify(context.Context, Identity) error          { return f.err }
func (f failingSink) SetPageContext(context.Context, PageContext) error { return f.err }

func TestTracker_StepFiresOnce(t *testing.T) {
	rec := NewRecorder()
	tr := NewTracker(rec, "visitor-1", logger.NewTestLogger(t))

	tr.TrackStep("email", nil)
	tr.TrackStep("email", nil)
	tr.TrackStep("birth-date", nil)
	tr.Wait()

	assert.ElementsMatch(t, []string{"step:email", "step:birth-date"}, rec.EventNames())

	tr.Reset()
	tr.TrackStep("email", nil)
	tr.Wait()
	assert.Len(t, rec.Events(), 3)
}

func TestTracker_IdentifyAndPage(t *testing.T) {
	rec := NewRecorder()
	tr := NewTracker(rec, "visitor-1", logger.NewTestLogger(t))

	tr.Identify(map[string]interface{}{"email": "a@b.com"})
	tr.SetPage("/email", "Email Address")
	tr.TrackError("sms_connect_failed", "bad phone", nil)
	tr.Wait()

	require.Len(t, rec.Identities(), 1)
	assert.Equal(t, "visitor-1", rec.Identities()[0].VisitorID)
	assert.Equal(t, "a@b.com", rec.Identities()[0].Properties["email"])

	require.Len(t, rec.Pages(), 1)
	assert.Equal(t, "/email", rec.Pages()[0].Path)

	require.Len(t, rec.Events(), 1)
	assert.Equal(t, "bad phone", rec.Events()[0].Error)
}

func TestTracker_SinkFailureIsSwallowed(t *testing.T) {
	tr := NewTracker(failingSink{err: errors.New("down")}, "visitor-1", logger.NewTestLogger(t))

	assert.NotPanics(t, func() {
		tr.TrackEvent("phone_verification_attempted", nil)
		tr.Wait()
	})
}

func TestSNSSink_Publishes(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishJSON", mock.Anything, "analytics.event", mock.MatchedBy(func(e Event) bool {
		return e.Name == "step:email" && e.VisitorID == "v"
	})).Return("msg-1", nil).Once()
	pub.On("PublishJSON", mock.Anything, "analytics.identify", mock.Anything).Return("", errors.New("throttled")).Once()

	sink := NewSNSSink(pub)
	require.NoError(t, sink.RecordEvent(context.Background(), Event{Name: "step:email", VisitorID: "v"}))
	assert.Error(t, sink.Identify(context.Background(), Identity{VisitorID: "v"}))

	pub.AssertExpectations(t)
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	m := Multi{a, failingSink{err: errors.New("down")}, b}

	err := m.RecordEvent(context.Background(), Event{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)

	require.NoError(t, Multi{a, b}.SetPageContext(context.Background(), PageContext{Path: "/"}))
}

func TestEvent_JSONShape(t *testing.T) {
	raw, err := json.Marshal(Event{Name: "step:email", FormStep: "email"})
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "step:email", m["event"])
	assert.Equal(t, "email", m["formStep"])
	assert.NotContains(t, m, "error")
}

func TestLogSink(t *testing.T) {
	sink := NewLogSink(logger.NewTestLogger(t))
	ctx := context.Background()
	assert.NoError(t, sink.RecordEvent(ctx, Event{Name: "x", Error: "e", FormStep: "s"}))
	assert.NoError(t, sink.Identify(ctx, Identity{Properties: map[string]interface{}{"email": "a"}}))
	assert.NoError(t, sink.SetPageContext(ctx, PageContext{Path: "/"}))
}
