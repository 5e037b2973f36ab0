package storage

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/models"
)

// Session scope keys.
const (
	KeyFormData         = "formData"
	KeyContactFirstName = "contactFirstName"
	KeyScheduledTime    = "scheduledTime"
	KeyUserIP           = "userIp"
)

// Durable scope keys.
const (
	KeyApplicationData   = "applicationData"
	KeyApplicationStatus = "applicationStatus"
)

// DefaultBlockWindow is the cooldown after a success or unsuccessful outcome.
const DefaultBlockWindow = 30 * 24 * time.Hour

const day = 24 * time.Hour

type StoreDependencies struct {
	Session KV
	Durable KV
	Logger  logger.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// BlockWindow defaults to DefaultBlockWindow.
	BlockWindow time.Duration
}

// Store exposes typed accessors over one visitor's session and durable
// scopes. Reads never fail: backend errors and malformed values are logged
// and reported as absent.
type Store struct {
	session     KV
	durable     KV
	logger      logger.Logger
	now         func() time.Time
	blockWindow time.Duration
	visitorID   string
}

func NewStore(deps StoreDependencies, visitorID string) *Store {
	s := &Store{
		session:     deps.Session,
		durable:     deps.Durable,
		logger:      deps.Logger,
		now:         deps.Now,
		blockWindow: deps.BlockWindow,
		visitorID:   visitorID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.blockWindow <= 0 {
		s.blockWindow = DefaultBlockWindow
	}
	if s.logger == nil {
		s.logger = logger.NewNoOpLogger()
	}
	return s
}

// VisitorID returns the visitor the store is bound to.
func (s *Store) VisitorID() string {
	return s.visitorID
}

// ==========================
// Raw access
// ==========================

func (s *Store) get(ctx context.Context, kv KV, scope, key string) (string, bool) {
	val, ok, err := kv.Get(ctx, s.visitorID, key)
	if err != nil {
		s.logger.Warn("State read failed, treating as absent", map[string]interface{}{
			"scope": scope,
			"key":   key,
			"error": err,
		})
		return "", false
	}
	return val, ok
}

func (s *Store) set(ctx context.Context, kv KV, scope, key, value string) error {
	if err := kv.Set(ctx, s.visitorID, key, value); err != nil {
		return errors.NewStorageUnavailableError(scope, err)
	}
	return nil
}

func (s *Store) del(ctx context.Context, kv KV, scope string, keys ...string) error {
	if err := kv.Delete(ctx, s.visitorID, keys...); err != nil {
		return errors.NewStorageUnavailableError(scope, err)
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, kv KV, scope, key string, v interface{}) bool {
	raw, ok := s.get(ctx, kv, scope, key)
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.logger.Warn("Malformed stored value, treating as absent", map[string]interface{}{
			"scope": scope,
			"key":   key,
			"error": err,
		})
		return false
	}
	return true
}

func (s *Store) setJSON(ctx context.Context, kv KV, scope, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.NewStorageUnavailableError(scope, err)
	}
	return s.set(ctx, kv, scope, key, string(raw))
}

// ==========================
// Form data (session)
// ==========================

// FormData returns the stored form and whether one was found.
func (s *Store) FormData(ctx context.Context) (models.FormData, bool) {
	var f models.FormData
	if !s.getJSON(ctx, s.session, "session", KeyFormData, &f) {
		return models.FormData{}, false
	}
	return f, true
}

func (s *Store) SetFormData(ctx context.Context, f models.FormData) error {
	return s.setJSON(ctx, s.session, "session", KeyFormData, f)
}

func (s *Store) ClearFormData(ctx context.Context) error {
	return s.del(ctx, s.session, "session", KeyFormData)
}

// ==========================
// Application status (durable)
// ==========================

func (s *Store) applicationStatus(ctx context.Context) models.ApplicationStatus {
	raw, _ := s.get(ctx, s.durable, "durable", KeyApplicationStatus)
	return models.ApplicationStatus(raw)
}

// ApplicationStatus returns the stored status, or StatusNone.
func (s *Store) ApplicationStatus(ctx context.Context) models.ApplicationStatus {
	return s.applicationStatus(ctx)
}

func (s *Store) setApplicationStatus(ctx context.Context, status models.ApplicationStatus) error {
	if status == models.StatusNone {
		return s.del(ctx, s.durable, "durable", KeyApplicationStatus)
	}
	return s.set(ctx, s.durable, "durable", KeyApplicationStatus, string(status))
}

func (s *Store) IsApplicationStarted(ctx context.Context) bool {
	return s.applicationStatus(ctx) == models.StatusStarted
}

func (s *Store) IsApplicationSmsCode(ctx context.Context) bool {
	return s.applicationStatus(ctx) == models.StatusSmsCode
}

func (s *Store) IsApplicationSuccessful(ctx context.Context) bool {
	return s.applicationStatus(ctx) == models.StatusSuccess
}

func (s *Store) IsApplicationFailed(ctx context.Context) bool {
	return s.applicationStatus(ctx) == models.StatusFailed
}

func (s *Store) IsApplicationPending(ctx context.Context) bool {
	return s.applicationStatus(ctx) == models.StatusPending
}

func (s *Store) IsApplicationOffers(ctx context.Context) bool {
	return s.applicationStatus(ctx) == models.StatusOffers
}

func (s *Store) SetApplicationStarted(ctx context.Context) error {
	return s.setApplicationStatus(ctx, models.StatusStarted)
}

func (s *Store) SetApplicationSmsCode(ctx context.Context) error {
	return s.setApplicationStatus(ctx, models.StatusSmsCode)
}

func (s *Store) SetApplicationSuccess(ctx context.Context) error {
	return s.setApplicationStatus(ctx, models.StatusSuccess)
}

func (s *Store) SetApplicationFailed(ctx context.Context) error {
	return s.setApplicationStatus(ctx, models.StatusFailed)
}

func (s *Store) SetApplicationPending(ctx context.Context) error {
	return s.setApplicationStatus(ctx, models.StatusPending)
}

func (s *Store) SetApplicationOffers(ctx context.Context) error {
	return s.setApplicationStatus(ctx, models.StatusOffers)
}

// ==========================
// Application record (durable)
// ==========================

// ApplicationData returns the stored record, or nil.
func (s *Store) ApplicationData(ctx context.Context) *models.ApplicationRecord {
	var rec models.ApplicationRecord
	if !s.getJSON(ctx, s.durable, "durable", KeyApplicationData, &rec) {
		return nil
	}
	return &rec
}

// SetApplicationData writes the record and then the status its outcome
// implies, so a reader never sees a status without its record.
func (s *Store) SetApplicationData(ctx context.Context, rec models.ApplicationRecord) error {
	if err := s.setJSON(ctx, s.durable, "durable", KeyApplicationData, rec); err != nil {
		return err
	}
	return s.setApplicationStatus(ctx, rec.Status.Status())
}

// ClearApplicationData removes the status first, then the record.
func (s *Store) ClearApplicationData(ctx context.Context) error {
	if err := s.del(ctx, s.durable, "durable", KeyApplicationStatus); err != nil {
		return err
	}
	return s.del(ctx, s.durable, "durable", KeyApplicationData)
}

// IsApplicationBlocked reports whether a success or unsuccessful record is
// still inside the cooldown window.
func (s *Store) IsApplicationBlocked(ctx context.Context) bool {
	rec := s.ApplicationData(ctx)
	if rec == nil || !rec.Status.Blocking() {
		return false
	}
	return s.elapsed(rec) < s.blockWindow
}

// BlockTimeRemaining returns the whole days left in the cooldown, rounded
// up. It is 0 when there is no record or the window has passed.
func (s *Store) BlockTimeRemaining(ctx context.Context) int {
	rec := s.ApplicationData(ctx)
	if rec == nil {
		return 0
	}
	remaining := s.blockWindow - s.elapsed(rec)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(float64(remaining) / float64(day)))
}

func (s *Store) elapsed(rec *models.ApplicationRecord) time.Duration {
	return s.now().Sub(time.UnixMilli(rec.Timestamp))
}

// NowMillis returns the store clock in epoch milliseconds.
func (s *Store) NowMillis() int64 {
	return s.now().UnixMilli()
}

// ==========================
// Small session fields
// ==========================

func (s *Store) UserIP(ctx context.Context) string {
	v, _ := s.get(ctx, s.session, "session", KeyUserIP)
	return v
}

func (s *Store) SetUserIP(ctx context.Context, ip string) error {
	return s.set(ctx, s.session, "session", KeyUserIP, ip)
}

func (s *Store) ContactFirstName(ctx context.Context) string {
	v, _ := s.get(ctx, s.session, "session", KeyContactFirstName)
	return v
}

func (s *Store) SetContactFirstName(ctx context.Context, name string) error {
	return s.set(ctx, s.session, "session", KeyContactFirstName, name)
}

// ScheduledTime returns the stored callback time and whether it is set.
func (s *Store) ScheduledTime(ctx context.Context) (time.Time, bool) {
	v, ok := s.get(ctx, s.session, "session", KeyScheduledTime)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		s.logger.Warn("Malformed stored value, treating as absent", map[string]interface{}{
			"scope": "session",
			"key":   KeyScheduledTime,
			"error": err,
		})
		return time.Time{}, false
	}
	return t, true
}

func (s *Store) SetScheduledTime(ctx context.Context, t time.Time) error {
	return s.set(ctx, s.session, "session", KeyScheduledTime, t.UTC().Format(time.RFC3339Nano))
}

// ClearAll removes every session and durable field for the visitor.
func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.del(ctx, s.session, "session",
		KeyFormData, KeyUserIP, KeyContactFirstName, KeyScheduledTime); err != nil {
		return err
	}
	return s.ClearApplicationData(ctx)
}
