package models

import "strings"

// ManualVerification is the identity data collected by the manual fallback.
type ManualVerification struct {
	OfferCode string `json:"offerCode,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Address1  string `json:"address1"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
}

// MissingFields lists the required fields that are blank.
func (m ManualVerification) MissingFields() []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"firstName", m.FirstName},
		{"lastName", m.LastName},
		{"email", m.Email},
		{"address1", m.Address1},
		{"city", m.City},
		{"state", m.State},
		{"zipCode", m.ZipCode},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// VerificationSession holds the identifiers returned by SMS connect.
type VerificationSession struct {
	ConnectionID string
	RecordID     string
}

// Active reports whether both identifiers are present.
func (v VerificationSession) Active() bool {
	return v.ConnectionID != "" && v.RecordID != ""
}
