package ocr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVisionProvider(t *testing.T, handler http.HandlerFunc) *VisionServerProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := newVisionServerProvider(Config{VisionServerURL: server.URL})
	require.NoError(t, err)
	// Keep tests fast when the handler misbehaves.
	provider.httpClient.RetryMax = 0
	return provider
}

func TestVisionServerExtractBlocks(t *testing.T) {
	provider := newTestVisionProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ocr", r.URL.Path)

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		file.Close()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"image_width": 1000,
			"image_height": 1400,
			"ocr_result": "Exercise 1\nExercise 2",
			"ocr_boxes": [
				{"text": "Exercise 1", "x": 0.1, "y": 0.80, "w": 0.8, "h": 0.04},
				{"text": "Exercise 2", "x": 0.1, "y": 0.30, "w": 0.8, "h": 0.04},
				{"text": "", "x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}
			]
		}`))
	})

	blocks, err := provider.ExtractBlocks(context.Background(), []byte("fake-image"))
	require.NoError(t, err)

	// Empty boxes are dropped; positions are box vertical midpoints.
	require.Len(t, blocks, 2)
	assert.Equal(t, "Exercise 1", blocks[0].Text)
	assert.InDelta(t, 0.82, blocks[0].Y, 1e-9)
	assert.InDelta(t, 0.32, blocks[1].Y, 1e-9)
}

func TestVisionServerExtractBlocksServerError(t *testing.T) {
	provider := newTestVisionProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	_, err := provider.ExtractBlocks(context.Background(), []byte("fake-image"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestVisionServerExtractBlocksUnsuccessful(t *testing.T) {
	provider := newTestVisionProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "message": "no text found"}`))
	})

	_, err := provider.ExtractBlocks(context.Background(), []byte("fake-image"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text found")
}

func TestVisionServerExtractBlocksMalformedResponse(t *testing.T) {
	provider := newTestVisionProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := provider.ExtractBlocks(context.Background(), []byte("fake-image"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}
