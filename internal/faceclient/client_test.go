package faceclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkipModeReturnsCannedDetection(t *testing.T) {
	c := New("http://unused", true)
	detections, err := c.DetectAndAnalyze(context.Background(), []byte{0x01})
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Greater(t, detections[0].Score, 0.3)
	assert.NotZero(t, detections[0].Landmarks)
}

func TestDetectRetriesWithThoroughMode(t *testing.T) {
	var modes []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Mode string `json:"mode"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		modes = append(modes, req.Mode)

		if req.Mode == ModeFast {
			_ = json.NewEncoder(w).Encode(map[string]any{"detections": []Detection{}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"detections": []Detection{
			{Score: 0.8, Landmarks: 68, Age: 31, Gender: "female"},
		}})
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	detections, err := c.DetectAndAnalyze(context.Background(), []byte("img"))
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "female", detections[0].Gender)
	assert.Equal(t, []string{ModeFast, ModeThorough}, modes)
}

func TestDetectDoesNotRetryWhenFastFindsFaces(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{"detections": []Detection{{Score: 0.9}}})
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	detections, err := c.DetectAndAnalyze(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Len(t, detections, 1)
	assert.Equal(t, 1, calls)
}

func TestDetectServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	_, err := c.DetectAndAnalyze(context.Background(), []byte("img"))
	assert.Error(t, err)
}

func TestWaitReadyWithHealthyService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	assert.True(t, c.WaitReady(context.Background()))
}
