package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceloom/meetscribe/internal/config"
	"github.com/voiceloom/meetscribe/internal/models"
	"github.com/voiceloom/meetscribe/internal/session"
)

func newTestDaemon(t *testing.T) *daemon {
	t.Helper()
	mgr, err := models.NewManager(t.TempDir(), models.DefaultRegistry())
	require.NoError(t, err)
	return newDaemon(config.Default(), session.Backends{}, mgr, nil, nil)
}

func TestHandleSessionsListStartsEmpty(t *testing.T) {
	d := newTestDaemon(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)

	d.httpHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body["sessions"])
}

func TestHandleSessionStopUnknownSessionIs404(t *testing.T) {
	d := newTestDaemon(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/sessions/does-not-exist", nil)

	d.httpHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleModelsListsEveryRoleTierPair(t *testing.T) {
	d := newTestDaemon(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/models", nil)

	d.httpHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Models []struct {
			Role   string `json:"role"`
			Tier   string `json:"tier"`
			Cached bool   `json:"cached"`
		} `json:"models"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Models, 3*3)
	for _, m := range body.Models {
		assert.False(t, m.Cached)
	}
}

func TestHandleModelsRejectsNonGet(t *testing.T) {
	d := newTestDaemon(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/models", nil)

	d.httpHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
