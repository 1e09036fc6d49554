package analysis

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// Classifier labels one page region. Given the cropped region image, the
// OCR text that falls inside it and the region's normalized bounds, it
// returns the backend's raw textual response, which is expected (but not
// guaranteed) to contain JSON.
type Classifier interface {
	Classify(ctx context.Context, region []byte, ocrText string, startY, endY float64) (string, error)

	// Available reports whether the backend can serve requests at all. The
	// orchestrator checks it once before the segment loop; a false answer
	// fails the whole analysis before any segment is attempted.
	Available(ctx context.Context) bool
}

// ClassifierConfig holds the classification backend configuration
type ClassifierConfig struct {
	// Selected backend
	Backend Backend

	// On-device settings (local model server)
	OnDeviceHost  string
	OnDeviceModel string

	// Cloud single-agent settings
	CloudProvider string // "openai" or "mistral"
	CloudModel    string
	CloudBaseURL  string // Optional, for OpenAI-compatible endpoints

	// Cloud multi-agent settings
	AgentServiceURL string
	AgentAPIKey     string
	AgentTimeout    int // Optional, defaults to 120 seconds

	// Prompt template for single-model backends (sprig-extended);
	// empty uses the default classification prompt
	Prompt string

	// TokenLimit caps the OCR text tokens included in the prompt
	// (0 = no limit)
	TokenLimit int

	// RequestsPerMinute rate-limits single-model backends (0 = unlimited)
	RequestsPerMinute float64
}

// NewClassifier creates a classification backend for the given selection.
func NewClassifier(config ClassifierConfig) (Classifier, error) {
	log.Info("Initializing classification backend: ", config.Backend)

	switch config.Backend {
	case BackendOnDevice:
		if config.OnDeviceModel == "" {
			return nil, fmt.Errorf("missing required on-device model name")
		}
		log.WithFields(logrus.Fields{
			"host":  config.OnDeviceHost,
			"model": config.OnDeviceModel,
		}).Info("Using on-device classification backend")
		return newLLMClassifier(config)

	case BackendCloudSingle:
		if config.CloudProvider == "" || config.CloudModel == "" {
			return nil, fmt.Errorf("missing required cloud LLM configuration")
		}
		log.WithFields(logrus.Fields{
			"provider": config.CloudProvider,
			"model":    config.CloudModel,
		}).Info("Using cloud single-agent classification backend")
		return newLLMClassifier(config)

	case BackendCloudMultiAgent:
		if config.AgentServiceURL == "" {
			return nil, fmt.Errorf("missing required agent service URL")
		}
		log.WithField("url", config.AgentServiceURL).Info("Using cloud multi-agent classification backend")
		return newAgentClassifier(config)

	default:
		return nil, fmt.Errorf("unsupported classification backend: %s", config.Backend)
	}
}

// SetLogLevel sets the logging level for the analysis package
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}
