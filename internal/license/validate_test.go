package license

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validResponseBody(status string) []byte {
	return []byte(fmt.Sprintf(`{
		"data": {
			"status": %q,
			"features": {
				"isMultiOrgEnabled": true,
				"projects": 3,
				"twoFactorAuth": true,
				"sso": true,
				"whitelabel": false,
				"removeBranding": true,
				"contacts": true,
				"ai": false,
				"saml": true,
				"spamProtection": true,
				"auditLogs": true,
				"multiLanguageSurveys": false,
				"accessControl": true,
				"quotas": true
			}
		}
	}`, status))
}

func TestParseVerificationResponse(t *testing.T) {
	outcome, err := parseVerificationResponse(validResponseBody("active"))
	require.NoError(t, err)

	assert.Equal(t, StatusVerifiedActive, outcome.Status)
	assert.True(t, outcome.Features.IsMultiOrgEnabled)
	assert.Equal(t, Quota{Limit: 3}, outcome.Features.Projects)
	assert.False(t, outcome.Features.AI)
	assert.True(t, outcome.Features.SAML)
}

func TestParseVerificationResponseExpired(t *testing.T) {
	outcome, err := parseVerificationResponse(validResponseBody("expired"))
	require.NoError(t, err)
	assert.Equal(t, StatusVerifiedExpired, outcome.Status)
}

func TestParseVerificationResponseUnlimitedProjects(t *testing.T) {
	body := []byte(`{
		"data": {
			"status": "active",
			"features": {
				"isMultiOrgEnabled": true,
				"projects": "unlimited",
				"twoFactorAuth": true,
				"sso": true,
				"whitelabel": true,
				"removeBranding": true,
				"contacts": true,
				"ai": true,
				"saml": true,
				"spamProtection": true,
				"auditLogs": true,
				"multiLanguageSurveys": true,
				"accessControl": true,
				"quotas": true
			}
		}
	}`)

	outcome, err := parseVerificationResponse(body)
	require.NoError(t, err)
	assert.True(t, outcome.Features.Projects.Unlimited)
}

func TestParseVerificationResponseRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>nope</html>`},
		{name: "empty object", body: `{}`},
		{name: "missing data", body: `{"status": "active"}`},
		{name: "unknown status", body: `{"data": {"status": "suspended", "features": {}}}`},
		{name: "missing features", body: `{"data": {"status": "active"}}`},
		{
			name: "missing quota",
			body: `{"data": {"status": "active", "features": {
				"isMultiOrgEnabled": true, "twoFactorAuth": true, "sso": true,
				"whitelabel": true, "removeBranding": true, "contacts": true,
				"ai": true, "saml": true, "spamProtection": true, "auditLogs": true,
				"multiLanguageSurveys": true, "accessControl": true, "quotas": true}}}`,
		},
		{
			name: "missing boolean flag",
			body: `{"data": {"status": "active", "features": {
				"isMultiOrgEnabled": true, "projects": 1, "twoFactorAuth": true,
				"sso": true, "whitelabel": true, "removeBranding": true,
				"contacts": true, "ai": true, "saml": true, "spamProtection": true,
				"auditLogs": true, "multiLanguageSurveys": true, "accessControl": true}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := parseVerificationResponse([]byte(tt.body))
			require.Error(t, err)
			assert.Nil(t, outcome)

			var schemaErr *SchemaError
			assert.ErrorAs(t, err, &schemaErr)
		})
	}
}

// A validated outcome, re-serialized and re-validated, must come back
// unchanged.
func TestParseVerificationResponseIdempotent(t *testing.T) {
	first, err := parseVerificationResponse(validResponseBody("active"))
	require.NoError(t, err)

	reserialized, err := json.Marshal(map[string]interface{}{"data": first})
	require.NoError(t, err)

	second, err := parseVerificationResponse(reserialized)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
