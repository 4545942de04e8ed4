package geocoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func newTestGeocoder(t *testing.T, baseUrl string) Geocoder {
	t.Helper()
	limiter := rate.NewLimiter(rate.Inf, 1)
	return NewGoogleGeocoder(http.DefaultClient, limiter, "test-key", baseUrl, 3, zap.NewNop())
}

func TestResolve(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "1 Example Rd", r.URL.Query().Get("address"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":25.03,"lng":121.56}}}]}`))
	}))
	defer server.Close()

	geo := newTestGeocoder(t, server.URL)
	coords, err := geo.Resolve(context.Background(), "1 Example Rd")
	require.NoError(t, err)
	assert.InDelta(t, 25.03, coords.Lat, 0.0001)
	assert.InDelta(t, 121.56, coords.Lng, 0.0001)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestResolveZeroResultsDoesNotRetry(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer server.Close()

	geo := newTestGeocoder(t, server.URL)
	_, err := geo.Resolve(context.Background(), "nowhere at all")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestResolveRetriesServerErrors(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":1,"lng":2}}}]}`))
	}))
	defer server.Close()

	geo := newTestGeocoder(t, server.URL)
	coords, err := geo.Resolve(context.Background(), "1 Example Rd")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, coords.Lat, 0.0001)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestResolveEmptyAddress(t *testing.T) {
	geo := newTestGeocoder(t, "http://unused.invalid")
	_, err := geo.Resolve(context.Background(), "")
	require.Error(t, err)
}
