package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-data-pipeline/internal/observability"
)

const testToken = "test-token"

func testClient(baseURL string, timeout time.Duration) *Client {
	c := NewClient(testToken, timeout, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.baseURL = baseURL
	return c
}

func TestClient_LocateCountry_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/New Zealand.json", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "country", r.URL.Query().Get("types"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(response{Features: []feature{{
			Center:    []float64{172.8, -41.5},
			PlaceName: "New Zealand",
			Text:      "Aotearoa",
			Relevance: 1,
		}}}))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	loc, err := c.LocateCountry(context.Background(), "New Zealand")
	require.NoError(t, err)

	assert.Equal(t, -41.5, loc.Lat)
	assert.Equal(t, 172.8, loc.Lon)
	assert.Equal(t, "New Zealand", loc.PlaceName)
	assert.Equal(t, 1.0, loc.Confidence)
	assert.Equal(t, 1, testutil.CollectAndCount(c.metrics.GeocodeAPIDuration))
}

func TestClient_LocateCountry_FallsBackToText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"features":[{"center":[-71.5,-35.7],"text":"Chile","relevance":0.9}]}`))
	}))
	defer srv.Close()

	loc, err := testClient(srv.URL, 5*time.Second).LocateCountry(context.Background(), "Chile")
	require.NoError(t, err)

	assert.Equal(t, "Chile", loc.PlaceName)
	assert.Equal(t, 0.9, loc.Confidence)
}

func TestClient_LocateCountry_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	loc, err := testClient(srv.URL, 5*time.Second).LocateCountry(context.Background(), "Atlantis")

	require.NoError(t, err)
	assert.Zero(t, loc.Lat)
	assert.Zero(t, loc.Lon)
}

func TestClient_LocateCountry_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 5*time.Second).LocateCountry(context.Background(), "Chile")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_LocateCountry_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"features":`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 5*time.Second).LocateCountry(context.Background(), "Chile")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestClient_LocateCountry_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 50*time.Millisecond).LocateCountry(context.Background(), "Chile")

	require.Error(t, err)
}
