package vision

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientDetectFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/faces", r.URL.Path)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, []byte("jpeg bytes"), body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"faces":[{"region":{"x":10,"y":20,"width":100,"height":100},"embedding":[0.1,0.2]}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	detections, err := client.DetectFaces(context.Background(), []byte("jpeg bytes"))
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, 10, detections[0].Region.X)
	assert.Equal(t, []float64{0.1, 0.2}, detections[0].Embedding)
}

func TestClientDetectFacesEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"faces":[]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	detections, err := client.DetectFaces(context.Background(), []byte("jpeg bytes"))
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestClientDetectEmotions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/emotions", r.URL.Path)
		_, _ = w.Write([]byte(`{"faces":[{"region":{"x":1,"y":2,"width":3,"height":4},"emotions":{"happy":0.9,"neutral":0.1}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	detections, err := client.DetectEmotions(context.Background(), []byte("jpeg bytes"))
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.InDelta(t, 0.9, detections[0].Emotions["happy"], 1e-9)
}

func TestClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.DetectFaces(context.Background(), []byte("jpeg bytes"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestClientContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, time.Second)
	_, err := client.DetectFaces(ctx, []byte("jpeg bytes"))
	require.Error(t, err)
}
