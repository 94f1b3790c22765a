package license

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Wire shapes for the authority response. Pointer fields distinguish
// "absent" from zero values so validation is all-or-nothing.
type verificationEnvelope struct {
	Data *verificationPayload `json:"data" validate:"required"`
}

type verificationPayload struct {
	Status   *string          `json:"status" validate:"required,oneof=active expired"`
	Features *featuresPayload `json:"features" validate:"required"`
}

type featuresPayload struct {
	IsMultiOrgEnabled    *bool  `json:"isMultiOrgEnabled" validate:"required"`
	Projects             *Quota `json:"projects" validate:"required"`
	TwoFactorAuth        *bool  `json:"twoFactorAuth" validate:"required"`
	SSO                  *bool  `json:"sso" validate:"required"`
	Whitelabel           *bool  `json:"whitelabel" validate:"required"`
	RemoveBranding       *bool  `json:"removeBranding" validate:"required"`
	Contacts             *bool  `json:"contacts" validate:"required"`
	AI                   *bool  `json:"ai" validate:"required"`
	SAML                 *bool  `json:"saml" validate:"required"`
	SpamProtection       *bool  `json:"spamProtection" validate:"required"`
	AuditLogs            *bool  `json:"auditLogs" validate:"required"`
	MultiLanguageSurveys *bool  `json:"multiLanguageSurveys" validate:"required"`
	AccessControl        *bool  `json:"accessControl" validate:"required"`
	Quotas               *bool  `json:"quotas" validate:"required"`
}

// parseVerificationResponse decodes and validates a 2xx authority response
// body. It accepts nothing but the expected shape: a status in
// {active, expired} and a features object carrying every entitlement flag
// and the projects quota. Any deviation is a *SchemaError. Side-effect-free.
func parseVerificationResponse(body []byte) (*VerificationOutcome, error) {
	var envelope verificationEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &SchemaError{Reason: "response body is not valid JSON", Err: err}
	}

	if err := validate.Struct(&envelope); err != nil {
		return nil, &SchemaError{Reason: "response missing required fields", Err: err}
	}

	f := envelope.Data.Features
	return &VerificationOutcome{
		Status: VerificationStatus(*envelope.Data.Status),
		Features: FeatureSet{
			IsMultiOrgEnabled:    *f.IsMultiOrgEnabled,
			Projects:             *f.Projects,
			TwoFactorAuth:        *f.TwoFactorAuth,
			SSO:                  *f.SSO,
			Whitelabel:           *f.Whitelabel,
			RemoveBranding:       *f.RemoveBranding,
			Contacts:             *f.Contacts,
			AI:                   *f.AI,
			SAML:                 *f.SAML,
			SpamProtection:       *f.SpamProtection,
			AuditLogs:            *f.AuditLogs,
			MultiLanguageSurveys: *f.MultiLanguageSurveys,
			AccessControl:        *f.AccessControl,
			Quotas:               *f.Quotas,
		},
	}, nil
}
