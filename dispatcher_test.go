package offlinecache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin().serveManifest(DefaultManifest)
	a := newTestCache(t, origin, nil)

	reply, err := a.Dispatch(ctx, InstallEvent{})
	require.NoError(t, err)
	require.NotNil(t, reply.Report)
	assert.Nil(t, reply.Result)
	assert.Equal(t, "install", reply.Report.Event)

	reply, err = a.Dispatch(ctx, ActivateEvent{})
	require.NoError(t, err)
	require.NotNil(t, reply.Report)
	assert.Equal(t, "activate", reply.Report.Event)

	reply, err = a.Dispatch(ctx, FetchEvent{Request: newRequest(http.MethodGet, "/manifest.json")})
	require.NoError(t, err)
	require.NotNil(t, reply.Result)
	assert.Equal(t, StrategyCacheFirst, reply.Result.Strategy)
	assert.Equal(t, OutcomeCacheHit, reply.Result.Outcome)

	_, err = a.Dispatch(ctx, nil)
	assert.Error(t, err)
}

func TestResultCacheStatus(t *testing.T) {
	tests := []struct {
		result   Result
		expected string
	}{
		{Result{Strategy: StrategyCacheFirst, Outcome: OutcomeCacheHit}, "OfflineCache; hit"},
		{Result{Strategy: StrategyNetworkFirstNavigation, Outcome: OutcomeCacheHit}, "OfflineCache; hit; detail=network-unavailable"},
		{Result{Strategy: StrategyNetworkFirstAPI, Outcome: OutcomeOfflineError}, "OfflineCache; fwd=miss; detail=offline-error"},
	}
	for _, test := range tests {
		if s := test.result.CacheStatus().String(); s != test.expected {
			t.Fatalf("Got %q, expected %q", s, test.expected)
		}
	}
}

func TestRoutes(t *testing.T) {
	origin := newFakeOrigin().serveManifest(DefaultManifest)
	registry := newTestRegistry()
	a := newTestCache(t, origin, registry)
	handler := a.Routes()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, ControlPrefix+"/install", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var report Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, DefaultManifest, report.Done)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, ControlPrefix+"/activate", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, ControlPrefix+"/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var status statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, PhaseActivated, status.State.Phase)
	assert.True(t, status.State.Claimed)
	assert.Equal(t, a.Generations().Names(), status.Current)
	assert.Equal(t, []string{a.Generations().Static.Name()}, status.Generations)

	// everything else is intercepted
	origin.setOffline(true)
	origin.resetCalls()
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/styles/critical.css", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "asset /styles/critical.css", w.Body.String())
	assert.Zero(t, origin.callCount())

	// control endpoints are never sent to the origin
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, ControlPrefix+"/install", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Zero(t, origin.callCount())
}

func TestRoutesInstallFailure(t *testing.T) {
	origin := newFakeOrigin()
	origin.setOffline(true)
	a := newTestCache(t, origin, nil)

	w := httptest.NewRecorder()
	a.Routes().ServeHTTP(w, httptest.NewRequest(http.MethodPost, ControlPrefix+"/install", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), ErrInstallFailed.Error())
}
