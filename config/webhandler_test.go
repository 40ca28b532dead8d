package config

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigHandler_Get(t *testing.T) {
	configFile := createConfigFile(t, getBaseConfig())
	handler := ConfigHandler(configFile)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var rc RuntimeConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rc))
	assert.Equal(t, []int{0, 4095}, rc.Outputs["dac1"].Values)
	assert.True(t, rc.Outputs["dac0"].Buffered)
}

func TestConfigHandler_MethodNotAllowed(t *testing.T) {
	handler := ConfigHandler(createConfigFile(t, getBaseConfig()))

	req := httptest.NewRequest(http.MethodDelete, "/api/config", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestConfigHandler_SetValidation(t *testing.T) {
	tests := []struct {
		name         string
		payload      RuntimeConfig
		wantStatus   int
		wantErrorMsg string
		shouldModify bool
	}{
		{
			name: "Valid Update",
			payload: RuntimeConfig{Outputs: map[string]OutputConfig{
				"dac1": {Shutdown: true, Values: []int{100, 200}},
			}},
			wantStatus:   http.StatusOK,
			shouldModify: true,
		},
		{
			name: "Value Too Large",
			payload: RuntimeConfig{Outputs: map[string]OutputConfig{
				"dac1": {Values: []int{5000, 0}},
			}},
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "must be between 0 and 4095",
		},
		{
			name: "Too Many Values",
			payload: RuntimeConfig{Outputs: map[string]OutputConfig{
				"dac0": {Values: []int{1, 2}},
			}},
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "has 1 channels but 2 values",
		},
		{
			name: "Unknown Device",
			payload: RuntimeConfig{Outputs: map[string]OutputConfig{
				"nope": {Values: []int{1}},
			}},
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "unknown device(s) nope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile := createConfigFile(t, getBaseConfig())
			handler := ConfigHandler(configFile)

			body, _ := json.Marshal(tt.payload)
			req := httptest.NewRequest(http.MethodPost, "/api/config", bytes.NewBuffer(body))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantErrorMsg != "" {
				assert.Contains(t, w.Body.String(), tt.wantErrorMsg)
			}

			currentConfig, err := ReadConfig(configFile)
			require.NoError(t, err, "the file on disk must stay valid")

			dac1, _ := currentConfig.Device("dac1")
			if tt.shouldModify {
				assert.Equal(t, []int{100, 200}, dac1.Values)
				assert.True(t, dac1.Shutdown)
				assert.Equal(t, LibRpio, currentConfig.Hardware.GPIOLibrary, "hardware settings must be preserved")
			} else {
				assert.Equal(t, []int{0, 4095}, dac1.Values, "file should not be updated")
			}
		})
	}
}

func TestConfigHandler_InvalidJSON(t *testing.T) {
	handler := ConfigHandler(createConfigFile(t, getBaseConfig()))

	req := httptest.NewRequest(http.MethodPost, "/api/config", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request body")
}
