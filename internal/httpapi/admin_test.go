package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doJSON(t testing.TB, c *Controller, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	c, _, _ := newTestController(t)

	for _, token := range []string{"", "wrong-token"} {
		rec := doJSON(t, c, http.MethodGet, "/api/v1/admin/devices", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestAdminDeviceLifecycle(t *testing.T) {
	c, _, _ := newTestController(t)

	// Register.
	rec := doJSON(t, c, http.MethodPost, "/api/v1/admin/devices", testAdminToken, map[string]any{
		"point_id":    "point-9",
		"register_id": "reg-9",
		"token_plain": "recorder-token",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created deviceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.DeviceID)
	assert.True(t, created.Enabled)
	// Token material never appears in responses.
	assert.NotContains(t, rec.Body.String(), "recorder-token")
	assert.NotContains(t, strings.ToLower(rec.Body.String()), "token_hash")

	// List.
	rec = doJSON(t, c, http.MethodGet, "/api/v1/admin/devices", testAdminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []deviceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.DeviceID, listed[0].DeviceID)

	// Disable.
	rec = doJSON(t, c, http.MethodPatch, "/api/v1/admin/devices/"+created.DeviceID, testAdminToken, map[string]any{
		"is_enabled": false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated deviceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.False(t, updated.Enabled)
}

func TestAdminCreateDeviceValidation(t *testing.T) {
	c, _, _ := newTestController(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing token_plain", map[string]any{"point_id": "p", "register_id": "r"}},
		{"missing point_id", map[string]any{"register_id": "r", "token_plain": "t"}},
		{"malformed device_id", map[string]any{"point_id": "p", "register_id": "r", "token_plain": "t", "device_id": "not-a-uuid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, c, http.MethodPost, "/api/v1/admin/devices", testAdminToken, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAdminUpdateUnknownDevice(t *testing.T) {
	c, _, _ := newTestController(t)
	rec := doJSON(t, c, http.MethodPatch, "/api/v1/admin/devices/"+uuid.NewString(), testAdminToken, map[string]any{
		"is_enabled": true,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCreateDisabledDevice(t *testing.T) {
	c, _, _ := newTestController(t)
	rec := doJSON(t, c, http.MethodPost, "/api/v1/admin/devices", testAdminToken, map[string]any{
		"point_id":    "p",
		"register_id": "r",
		"token_plain": "t",
		"is_enabled":  false,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created deviceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.False(t, created.Enabled)
}
