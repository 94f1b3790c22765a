package license

import (
	"encoding/json"
	"fmt"
)

// Feature names for licensed capabilities, as consumed by feature gates.
const (
	FeatureMultiOrg             = "isMultiOrgEnabled"
	FeatureTwoFactorAuth        = "twoFactorAuth"
	FeatureSSO                  = "sso"
	FeatureWhitelabel           = "whitelabel"
	FeatureRemoveBranding       = "removeBranding"
	FeatureContacts             = "contacts"
	FeatureAI                   = "ai"
	FeatureSAML                 = "saml"
	FeatureSpamProtection       = "spamProtection"
	FeatureAuditLogs            = "auditLogs"
	FeatureMultiLanguageSurveys = "multiLanguageSurveys"
	FeatureAccessControl        = "accessControl"
	FeatureQuotas               = "quotas"
)

// Quota is a bounded-or-unbounded numeric entitlement. On the wire an
// unbounded quota is the JSON string "unlimited"; a bounded quota is a
// plain number.
type Quota struct {
	Limit     int
	Unlimited bool
}

// UnlimitedQuota returns the distinguished unbounded quota value.
func UnlimitedQuota() Quota {
	return Quota{Unlimited: true}
}

// Allows reports whether the quota admits the given usage count.
func (q Quota) Allows(count int) bool {
	return q.Unlimited || count < q.Limit
}

// MarshalJSON implements json.Marshaler.
func (q Quota) MarshalJSON() ([]byte, error) {
	if q.Unlimited {
		return json.Marshal("unlimited")
	}
	return json.Marshal(q.Limit)
}

// UnmarshalJSON implements json.Unmarshaler, accepting either a number or
// the string "unlimited".
func (q *Quota) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "unlimited" {
			return fmt.Errorf("quota: unknown sentinel %q", s)
		}
		*q = Quota{Unlimited: true}
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("quota: expected number or \"unlimited\": %w", err)
	}
	if n < 0 {
		return fmt.Errorf("quota: negative limit %d", n)
	}
	*q = Quota{Limit: n}
	return nil
}

// FeatureSet is the entitlement map decided by the license authority.
// Immutable once constructed; only parseVerificationResponse produces one
// from remote data.
type FeatureSet struct {
	IsMultiOrgEnabled    bool  `json:"isMultiOrgEnabled"`
	Projects             Quota `json:"projects"`
	TwoFactorAuth        bool  `json:"twoFactorAuth"`
	SSO                  bool  `json:"sso"`
	Whitelabel           bool  `json:"whitelabel"`
	RemoveBranding       bool  `json:"removeBranding"`
	Contacts             bool  `json:"contacts"`
	AI                   bool  `json:"ai"`
	SAML                 bool  `json:"saml"`
	SpamProtection       bool  `json:"spamProtection"`
	AuditLogs            bool  `json:"auditLogs"`
	MultiLanguageSurveys bool  `json:"multiLanguageSurveys"`
	AccessControl        bool  `json:"accessControl"`
	Quotas               bool  `json:"quotas"`
}

// Enabled reports whether the named boolean feature is unlocked. Unknown
// names are not licensed.
func (f *FeatureSet) Enabled(name string) bool {
	if f == nil {
		return false
	}
	switch name {
	case FeatureMultiOrg:
		return f.IsMultiOrgEnabled
	case FeatureTwoFactorAuth:
		return f.TwoFactorAuth
	case FeatureSSO:
		return f.SSO
	case FeatureWhitelabel:
		return f.Whitelabel
	case FeatureRemoveBranding:
		return f.RemoveBranding
	case FeatureContacts:
		return f.Contacts
	case FeatureAI:
		return f.AI
	case FeatureSAML:
		return f.SAML
	case FeatureSpamProtection:
		return f.SpamProtection
	case FeatureAuditLogs:
		return f.AuditLogs
	case FeatureMultiLanguageSurveys:
		return f.MultiLanguageSurveys
	case FeatureAccessControl:
		return f.AccessControl
	case FeatureQuotas:
		return f.Quotas
	default:
		return false
	}
}

// allFeaturesEnabled is the entitlement set granted when license enforcement
// is disabled by configuration (self-hosted open mode).
func allFeaturesEnabled() *FeatureSet {
	return &FeatureSet{
		IsMultiOrgEnabled:    true,
		Projects:             UnlimitedQuota(),
		TwoFactorAuth:        true,
		SSO:                  true,
		Whitelabel:           true,
		RemoveBranding:       true,
		Contacts:             true,
		AI:                   true,
		SAML:                 true,
		SpamProtection:       true,
		AuditLogs:            true,
		MultiLanguageSurveys: true,
		AccessControl:        true,
		Quotas:               true,
	}
}
