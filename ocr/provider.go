package ocr

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// Block is one line of recognized text together with its normalized vertical
// position on the page: 0 is the bottom of the page, 1 the top.
type Block struct {
	Text string  `json:"text"`
	Y    float64 `json:"y"`
}

// Provider defines the interface for positioned OCR extraction. Providers
// that cannot report geometry are of no use here; the downstream segmenter
// works purely on vertical positions.
type Provider interface {
	ExtractBlocks(ctx context.Context, imageContent []byte) ([]Block, error)
}

// Config holds the OCR provider configuration
type Config struct {
	// Provider type (e.g., "vision_server", "google_docai")
	Provider string

	// Vision OCR server settings
	VisionServerURL string

	// Google Document AI settings
	GoogleProjectID   string
	GoogleLocation    string
	GoogleProcessorID string
}

// NewProvider creates a new OCR provider based on configuration
func NewProvider(config Config) (Provider, error) {
	log.Info("Initializing OCR provider: ", config.Provider)

	switch config.Provider {
	case "vision_server":
		if config.VisionServerURL == "" {
			return nil, fmt.Errorf("missing required vision OCR server URL")
		}
		log.WithField("url", config.VisionServerURL).Info("Using vision OCR server provider")
		return newVisionServerProvider(config)

	case "google_docai":
		if config.GoogleProjectID == "" || config.GoogleLocation == "" || config.GoogleProcessorID == "" {
			return nil, fmt.Errorf("missing required Google Document AI configuration")
		}
		log.WithFields(logrus.Fields{
			"location":     config.GoogleLocation,
			"processor_id": config.GoogleProcessorID,
		}).Info("Using Google Document AI provider")
		return newGoogleDocAIProvider(config)

	default:
		return nil, fmt.Errorf("unsupported OCR provider: %s", config.Provider)
	}
}

// SetLogLevel sets the logging level for the OCR package
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}
