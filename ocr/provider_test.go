package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderValidation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError string
	}{
		{
			name:        "unsupported provider",
			config:      Config{Provider: "carrier-pigeon"},
			expectError: "unsupported OCR provider",
		},
		{
			name:        "vision server without URL",
			config:      Config{Provider: "vision_server"},
			expectError: "missing required vision OCR server URL",
		},
		{
			name:        "google docai without processor",
			config:      Config{Provider: "google_docai", GoogleProjectID: "p", GoogleLocation: "eu"},
			expectError: "missing required Google Document AI configuration",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewProvider(tc.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expectError)
		})
	}
}

func TestNewProviderVisionServer(t *testing.T) {
	provider, err := NewProvider(Config{
		Provider:        "vision_server",
		VisionServerURL: "http://localhost:8080",
	})
	require.NoError(t, err)
	assert.IsType(t, &VisionServerProvider{}, provider)
}

func TestIsImageMIMEType(t *testing.T) {
	assert.True(t, isImageMIMEType("image/jpeg"))
	assert.True(t, isImageMIMEType("image/png"))
	assert.False(t, isImageMIMEType("application/pdf"))
	assert.False(t, isImageMIMEType("text/plain"))
}
