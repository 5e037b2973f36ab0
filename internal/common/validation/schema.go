package validation

import (
	"fmt"
	"strings"

	"loan-intake/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error joins the individual messages.
func (r *ValidationResult) Error() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// StepUpdateSchema describes a partial FormData submission. Every property
// is optional; unknown properties are rejected.
func StepUpdateSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]interface{}{
			"email":               map[string]interface{}{"type": "string", "maxLength": 254},
			"phone":               map[string]interface{}{"type": "string", "maxLength": 20},
			"birthDate":           map[string]interface{}{"type": "string", "pattern": `^(\d{4}-\d{2}-\d{2})?$`},
			"smsConsent":          map[string]interface{}{"type": "boolean"},
			"promoSmsConsent":     map[string]interface{}{"type": "boolean"},
			"smsCode":             map[string]interface{}{"type": "string", "pattern": `^(\d{6})?$`},
			"ssnLast4":            map[string]interface{}{"type": "string", "pattern": `^(\d{4})?$`},
			"loanAmount":          map[string]interface{}{"type": "integer", "minimum": models.MinLoanAmount, "maximum": models.MaxLoanAmount},
			"loanPurpose":         enumOf(models.LoanPurposes),
			"propertyStatus":      enumOf(models.PropertyStatuses),
			"employmentStatus":    enumOf(models.EmploymentStatuses),
			"employmentFrequency": enumOf(models.EmploymentFrequencies),
			"annualIncome":        map[string]interface{}{"type": "integer", "minimum": 0},
			"educationLevel":      enumOf(models.EducationLevels),
		},
	}
}

// ManualVerificationSchema describes the manual fallback payload.
func ManualVerificationSchema() map[string]interface{} {
	str := map[string]interface{}{"type": "string", "minLength": 1}
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"firstName", "lastName", "email", "address1", "city", "state", "zipCode"},
		"properties": map[string]interface{}{
			"offerCode": map[string]interface{}{"type": "string"},
			"firstName": str,
			"lastName":  str,
			"email":     str,
			"address1":  str,
			"city":      str,
			"state":     map[string]interface{}{"type": "string", "pattern": `^[A-Za-z]{2}$`},
			"zipCode":   map[string]interface{}{"type": "string", "pattern": `^\d{5}(-\d{4})?$`},
		},
	}
}

func enumOf(values []string) map[string]interface{} {
	enum := make([]interface{}, 0, len(values)+1)
	enum = append(enum, "")
	for _, v := range values {
		enum = append(enum, v)
	}
	return map[string]interface{}{"type": "string", "enum": enum}
}

// ValidateInput validates a decoded JSON document against a schema.
func ValidateInput(input interface{}, schema map[string]interface{}) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(input),
	)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "(root)" {
			if prop, ok := desc.Details()["property"].(string); ok {
				field = prop
			}
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}
