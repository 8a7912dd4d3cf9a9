package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brokerkit/fundmatch/internal/models"
)

func TestClient_Enabled(t *testing.T) {
	logger := zap.NewNop()
	assert.False(t, NewClient("", time.Second, 3, logger).Enabled())
	assert.True(t, NewClient("http://localhost:9000", time.Second, 3, logger).Enabled())
}

func TestClient_AnalyzeStatements(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/analyze", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req["statements"], 2)

		json.NewEncoder(w).Encode(models.BankAnalysisResult{
			AvgMonthlyRevenue: 40000,
			AnalysisSuccess:   true,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, 3, zap.NewNop())

	result, err := client.AnalyzeStatements(context.Background(), []string{"jan", "feb"})

	require.NoError(t, err)
	assert.True(t, result.AnalysisSuccess)
	assert.InDelta(t, 40000.0, result.AvgMonthlyRevenue, 0.01)
}

func TestClient_AnalyzeStatements_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(models.BankAnalysisResult{AnalysisSuccess: true})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, 3, zap.NewNop())
	client.retryCfg.BaseDelay = time.Millisecond

	result, err := client.AnalyzeStatements(context.Background(), []string{"jan"})

	require.NoError(t, err)
	assert.True(t, result.AnalysisSuccess)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_AnalyzeStatements_NoRetryOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "malformed payload", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, 3, zap.NewNop())

	_, err := client.AnalyzeStatements(context.Background(), []string{"jan"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_AnalyzeStatements_ExhaustsRetriesOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, 3, zap.NewNop())
	client.retryCfg.BaseDelay = time.Millisecond

	_, err := client.AnalyzeStatements(context.Background(), []string{"jan"})

	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}
