package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"homework-analyzer/internal/constants"
)

const defaultOnDeviceHost = "http://127.0.0.1:11434"

// DefaultClassifyPrompt asks the model to label the region and answer with
// nothing but JSON. Models routinely ignore the "nothing but" part, which is
// why the extractor exists.
const DefaultClassifyPrompt = `You are analyzing a cropped region of a scanned homework page.
The region covers the vertical range {{printf "%.2f" .StartY}} to {{printf "%.2f" .EndY}} (0 = bottom of page, 1 = top of page).
The OCR text found in this region is:

{{.OCRText}}

Decide whether this region contains an exercise (a task the student must solve) or a lesson (explanatory material), and respond with ONLY a JSON object of this exact shape:
{"type":"exercise","exercise":{"exerciseNumber":"1a","type":"math","fullContent":"...","startY":{{printf "%.2f" .StartY}},"endY":{{printf "%.2f" .EndY}},"subject":"mathematics","inputMode":"canvas"}}
Use "lesson" and a "lesson" key instead when the region is explanatory material. Keep the startY and endY values given above. Do not add any prose around the JSON.`

// llmClassifier classifies regions with a single vision model, either a
// local model server (on-device backend) or a hosted provider (cloud
// single-agent backend).
type llmClassifier struct {
	backend    Backend
	provider   string
	model      string
	deviceHost string
	llm        llms.Model
	prompt     *template.Template
	tokenLimit int
}

func newLLMClassifier(config ClassifierConfig) (*llmClassifier, error) {
	logger := log.WithFields(logrus.Fields{
		"backend": config.Backend,
		"model":   classifierModelName(config),
	})
	logger.Info("Creating new LLM classifier")

	var model llms.Model
	var err error
	provider := strings.ToLower(config.CloudProvider)
	host := config.OnDeviceHost

	switch config.Backend {
	case BackendOnDevice:
		if host == "" {
			host = defaultOnDeviceHost
		}
		provider = "ollama"
		model, err = ollama.New(
			ollama.WithModel(config.OnDeviceModel),
			ollama.WithServerURL(host),
		)
	case BackendCloudSingle:
		switch provider {
		case "openai":
			model, err = createOpenAIModel(config)
		case "mistral":
			model, err = createMistralModel(config)
		default:
			return nil, fmt.Errorf("unsupported cloud LLM provider: %s", config.CloudProvider)
		}
	default:
		return nil, fmt.Errorf("backend %s is not a single-model backend", config.Backend)
	}
	if err != nil {
		logger.WithError(err).Error("Failed to create classification model client")
		return nil, fmt.Errorf("error creating classification model client: %w", err)
	}

	promptText := config.Prompt
	if promptText == "" {
		promptText = DefaultClassifyPrompt
	}
	prompt, err := template.New("classify").Funcs(sprig.FuncMap()).Parse(promptText)
	if err != nil {
		return nil, fmt.Errorf("error parsing classification prompt template: %w", err)
	}

	logger.Info("Successfully initialized LLM classifier")
	return &llmClassifier{
		backend:    config.Backend,
		provider:   provider,
		model:      classifierModelName(config),
		deviceHost: host,
		llm:        NewRateLimitedLLM(model, RateLimitConfig{RequestsPerMinute: config.RequestsPerMinute}),
		prompt:     prompt,
		tokenLimit: config.TokenLimit,
	}, nil
}

func classifierModelName(config ClassifierConfig) string {
	if config.Backend == BackendOnDevice {
		return config.OnDeviceModel
	}
	return config.CloudModel
}

// Classify renders the prompt for the region and sends it to the model
// together with the cropped image.
func (c *llmClassifier) Classify(ctx context.Context, region []byte, ocrText string, startY, endY float64) (string, error) {
	logger := log.WithFields(logrus.Fields{
		"backend":  c.backend,
		"provider": c.provider,
		"model":    c.model,
	})
	logger.Debug("Starting LLM region classification")

	truncated, err := truncateContentByTokens(ocrText, c.model, c.tokenLimit)
	if err != nil {
		return "", fmt.Errorf("error truncating OCR text: %w", err)
	}

	var promptBuffer bytes.Buffer
	err = c.prompt.Execute(&promptBuffer, map[string]interface{}{
		"OCRText": truncated,
		"StartY":  startY,
		"EndY":    endY,
	})
	if err != nil {
		return "", fmt.Errorf("error executing classification prompt template: %w", err)
	}

	// OpenAI and Mistral expect a base64 data URL, everything else takes
	// the raw bytes.
	var imagePart llms.ContentPart
	if c.provider == "openai" || c.provider == "mistral" {
		imagePart = llms.ImageURLPart("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(region))
	} else {
		imagePart = llms.BinaryPart("image/jpeg", region)
	}

	parts := []llms.ContentPart{
		imagePart,
		llms.TextPart(promptBuffer.String()),
	}

	logger.Debug("Sending request to classification model")
	completion, err := c.llm.GenerateContent(ctx, []llms.MessageContent{
		{
			Parts: parts,
			Role:  llms.ChatMessageTypeHuman,
		},
	})
	if err != nil {
		logger.WithError(err).Error("Failed to get response from classification model")
		return "", fmt.Errorf("error getting response from LLM: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("classification model returned no choices")
	}

	result := completion.Choices[0].Content
	logger.WithField("content_length", len(result)).Debug("Received classification response")
	return result, nil
}

// Available probes the local model server for the on-device backend. Hosted
// providers are assumed reachable; their network failures surface per
// segment instead.
func (c *llmClassifier) Available(ctx context.Context) bool {
	if c.backend != BackendOnDevice {
		return c.llm != nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.deviceHost, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("On-device model server is not reachable")
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// createOpenAIModel creates an OpenAI (or OpenAI-compatible) vision model client
func createOpenAIModel(config ClassifierConfig) (llms.Model, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		if config.CloudBaseURL == "" {
			return nil, fmt.Errorf("OpenAI API key is not set")
		}
		// OpenAI-compatible endpoints usually want a token header but do
		// not validate it.
		apiKey = constants.DummyAPIKey
	}

	opts := []openai.Option{
		openai.WithModel(config.CloudModel),
		openai.WithToken(apiKey),
	}
	if config.CloudBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.CloudBaseURL))
	}
	return openai.New(opts...)
}

// createMistralModel creates a Mistral vision model client
func createMistralModel(config ClassifierConfig) (llms.Model, error) {
	apiKey := os.Getenv("MISTRAL_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("Mistral API key is not set")
	}
	return mistral.New(
		mistral.WithModel(config.CloudModel),
		mistral.WithAPIKey(apiKey),
	)
}
