package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formlens/internal/license"
)

type fakeService struct {
	result      license.LicenseResult
	invalidated bool
}

func (f *fakeService) Resolve(ctx context.Context) license.LicenseResult {
	return f.result
}

func (f *fakeService) Features(ctx context.Context) *license.FeatureSet {
	return f.result.Features
}

func (f *fakeService) InvalidateCache() {
	f.invalidated = true
}

func activeResult() license.LicenseResult {
	features := license.FeatureSet{SSO: true, Projects: license.Quota{Limit: 3}}
	return license.LicenseResult{
		Active:        true,
		Features:      &features,
		LastChecked:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		FallbackLevel: license.FallbackLive,
		Status:        license.ResultActive,
	}
}

func TestStatusEndpoint(t *testing.T) {
	handler := NewLicenseHandler(&fakeService{result: activeResult()}, nil)

	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp LicenseStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Active)
	assert.Equal(t, license.FallbackLive, resp.FallbackLevel)
	assert.Equal(t, license.ResultActive, resp.Status)
	require.NotNil(t, resp.Features)
	assert.True(t, resp.Features.SSO)
}

func TestStatusEndpointUnlicensed(t *testing.T) {
	handler := NewLicenseHandler(&fakeService{result: license.LicenseResult{
		Active:        false,
		FallbackLevel: license.FallbackDefault,
		Status:        license.ResultNoLicense,
	}}, nil)

	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp LicenseStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Active)
	assert.Equal(t, license.ResultNoLicense, resp.Status)
	assert.Nil(t, resp.Features)
}

func TestFeaturesEndpoint(t *testing.T) {
	handler := NewLicenseHandler(&fakeService{result: activeResult()}, nil)

	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/features", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var features license.FeatureSet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &features))
	assert.True(t, features.SSO)
	assert.Equal(t, license.Quota{Limit: 3}, features.Projects)
}

func TestFeaturesEndpointUnlicensed(t *testing.T) {
	handler := NewLicenseHandler(&fakeService{result: license.LicenseResult{
		Status:        license.ResultNoLicense,
		FallbackLevel: license.FallbackDefault,
	}}, nil)

	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/features", nil))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), "NO_LICENSE")
}

func TestInvalidateEndpoint(t *testing.T) {
	svc := &fakeService{result: activeResult()}
	handler := NewLicenseHandler(svc, nil)

	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invalidate", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, svc.invalidated)
}
