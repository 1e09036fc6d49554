package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"homework-analyzer/analysis"
	"homework-analyzer/ocr"
)

// Global Variables and Constants
var (

	// Logger
	log = logrus.New()

	// Environment Variables
	logLevel   = strings.ToLower(os.Getenv("LOG_LEVEL"))
	listenAddr = os.Getenv("LISTEN_ADDR")

	// OCR provider settings
	ocrProviderName   = os.Getenv("OCR_PROVIDER")
	visionServerURL   = os.Getenv("VISION_OCR_URL")
	googleProjectID   = os.Getenv("GOOGLE_PROJECT_ID")
	googleLocation    = os.Getenv("GOOGLE_LOCATION")
	googleProcessorID = os.Getenv("GOOGLE_PROCESSOR_ID")

	// Classification backend settings
	onDeviceModel     = os.Getenv("ON_DEVICE_MODEL")
	onDeviceModelHost = os.Getenv("ON_DEVICE_MODEL_HOST")
	cloudLlmProvider  = os.Getenv("CLOUD_LLM_PROVIDER")
	cloudLlmModel     = os.Getenv("CLOUD_LLM_MODEL")
	cloudLlmBaseURL   = os.Getenv("CLOUD_LLM_BASE_URL")
	openaiAPIKey      = os.Getenv("OPENAI_API_KEY")
	agentServiceURL   = os.Getenv("AGENT_SERVICE_URL")
	agentAPIKey       = os.Getenv("AGENT_SERVICE_API_KEY")

	// Default routing flags, overridable per request
	useAgenticAnalysis   = envBool("USE_AGENTIC_ANALYSIS")
	useCloudAnalysis     = envBool("USE_CLOUD_ANALYSIS")
	hasCloudSubscription = envBool("HAS_CLOUD_SUBSCRIPTION")

	// Tuning knobs
	tokenLimit        = envInt("TOKEN_LIMIT", 0)
	requestsPerMinute = envInt("LLM_REQUESTS_PER_MINUTE", 0)
	agentTimeout      = envInt("AGENT_TIMEOUT_SECONDS", 0)
	numWorkers        = envInt("ANALYSIS_WORKERS", 1)

	// Classification prompt template override
	classifyPromptText string
	templateMutex      sync.RWMutex
)

const classifyPromptPath = "prompts/classify_prompt.tmpl"

// App struct to hold dependencies
type App struct {
	Database *gorm.DB
	OCR      ocr.Provider
}

func main() {
	// Validate Environment Variables
	validateEnvVars()

	// Initialize logrus logger
	initLogger()

	// Initialize Database
	database := InitializeDB()

	// Load classification prompt override, if present
	loadTemplates()

	// Initialize OCR provider (optional; callers may supply their own blocks)
	var ocrProvider ocr.Provider
	if ocrProviderName != "" {
		var err error
		ocrProvider, err = ocr.NewProvider(ocr.Config{
			Provider:          ocrProviderName,
			VisionServerURL:   visionServerURL,
			GoogleProjectID:   googleProjectID,
			GoogleLocation:    googleLocation,
			GoogleProcessorID: googleProcessorID,
		})
		if err != nil {
			log.Fatalf("Failed to create OCR provider: %v", err)
		}
	}

	// Initialize App with dependencies
	app := &App{
		Database: database,
		OCR:      ocrProvider,
	}

	// Create a Gin router with default middleware (logger and recovery)
	router := gin.Default()

	// API routes
	api := router.Group("/api")
	{
		api.POST("/analyze", app.analyzeHandler)
		api.POST("/analyze/async", app.submitAnalyzeJobHandler)

		// Job endpoints
		api.GET("/jobs", getAllJobsHandler)
		api.GET("/jobs/:id", getJobStatusHandler)
		api.POST("/jobs/:id/cancel", cancelJobHandler)

		// Persisted analyses
		api.GET("/history", app.getHistoryHandler)

		// Prompt template management
		api.GET("/prompts", getPromptsHandler)
		api.POST("/prompts", updatePromptsHandler)

		// Effective default routing decision
		api.GET("/routing", func(c *gin.Context) {
			config := defaultRoutingConfig()
			c.JSON(http.StatusOK, gin.H{
				"config":  config,
				"backend": analysis.DecideBackend(config),
			})
		})
	}

	// Start analysis worker pool
	startWorkerPool(app, numWorkers)

	addr := listenAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infoln("Server started on ", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

// analyzePage runs the whole pipeline for one page: route, build the
// classifier, analyze. Shared by the synchronous handler and the job worker.
func (app *App) analyzePage(ctx context.Context, blocks []analysis.OCRBlock, img image.Image, routing analysis.RoutingConfig, onProgress analysis.ProgressFunc) (*analysis.AnalysisResult, analysis.Backend, error) {
	backend := analysis.DecideBackend(routing)

	classifier, err := analysis.NewClassifier(classifierConfig(backend))
	if err != nil {
		return nil, backend, fmt.Errorf("error creating classifier: %w", err)
	}

	analyzer := analysis.NewAnalyzer(classifier)
	result, err := analyzer.Analyze(ctx, blocks, img, onProgress)
	if err != nil {
		return nil, backend, err
	}
	return result, backend, nil
}

// classifierConfig assembles the classifier configuration for the selected
// backend from the environment and the current prompt template.
func classifierConfig(backend analysis.Backend) analysis.ClassifierConfig {
	templateMutex.RLock()
	prompt := classifyPromptText
	templateMutex.RUnlock()

	return analysis.ClassifierConfig{
		Backend:           backend,
		OnDeviceHost:      onDeviceModelHost,
		OnDeviceModel:     onDeviceModel,
		CloudProvider:     cloudLlmProvider,
		CloudModel:        cloudLlmModel,
		CloudBaseURL:      cloudLlmBaseURL,
		AgentServiceURL:   agentServiceURL,
		AgentAPIKey:       agentAPIKey,
		AgentTimeout:      agentTimeout,
		Prompt:            prompt,
		TokenLimit:        tokenLimit,
		RequestsPerMinute: float64(requestsPerMinute),
	}
}

// defaultRoutingConfig snapshots the server-side routing flags.
func defaultRoutingConfig() analysis.RoutingConfig {
	return analysis.RoutingConfig{
		UseAgenticAnalysis:     useAgenticAnalysis,
		HasCloudSubscription:   hasCloudSubscription,
		UseCloudAnalysis:       useCloudAnalysis,
		OnDeviceModelAvailable: onDeviceModel != "",
	}
}

// routingConfigFor applies per-request overrides on top of the defaults.
func routingConfigFor(overrides RoutingOverrides) analysis.RoutingConfig {
	config := defaultRoutingConfig()
	if overrides.UseAgenticAnalysis != nil {
		config.UseAgenticAnalysis = *overrides.UseAgenticAnalysis
	}
	if overrides.UseCloudAnalysis != nil {
		config.UseCloudAnalysis = *overrides.UseCloudAnalysis
	}
	if overrides.HasCloudSubscription != nil {
		config.HasCloudSubscription = *overrides.HasCloudSubscription
	}
	return config
}

func initLogger() {
	switch logLevel {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
		analysis.SetLogLevel(logrus.DebugLevel)
		ocr.SetLogLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
		if logLevel != "" {
			log.Fatalf("Invalid log level: '%s'.", logLevel)
		}
	}

	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// validateEnvVars ensures all necessary environment variables are set
func validateEnvVars() {
	if onDeviceModel == "" && cloudLlmModel == "" && agentServiceURL == "" {
		log.Fatal("Please configure at least one classification backend (ON_DEVICE_MODEL, CLOUD_LLM_MODEL or AGENT_SERVICE_URL).")
	}

	if cloudLlmModel != "" && cloudLlmProvider == "" {
		log.Fatal("Please set the CLOUD_LLM_PROVIDER environment variable.")
	}

	if cloudLlmProvider != "" && cloudLlmProvider != "openai" && cloudLlmProvider != "mistral" {
		log.Fatal("Please set the CLOUD_LLM_PROVIDER environment variable to 'openai' or 'mistral'.")
	}

	if cloudLlmProvider == "openai" && openaiAPIKey == "" && cloudLlmBaseURL == "" {
		log.Fatal("Please set the OPENAI_API_KEY environment variable for the OpenAI provider.")
	}

	if ocrProviderName == "vision_server" && visionServerURL == "" {
		log.Fatal("Please set the VISION_OCR_URL environment variable.")
	}
}

// loadTemplates loads the classification prompt override from disk, if one
// exists; otherwise the built-in default prompt is used.
func loadTemplates() {
	templateMutex.Lock()
	defer templateMutex.Unlock()

	content, err := os.ReadFile(classifyPromptPath)
	if err != nil {
		log.Debug("No classification prompt override found, using default")
		return
	}

	if _, err := template.New("classify").Funcs(sprig.FuncMap()).Parse(string(content)); err != nil {
		log.Fatalf("Invalid classification prompt template: %v", err)
	}
	classifyPromptText = string(content)
	log.Info("Loaded classification prompt override")
}

func envBool(key string) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && value
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("Invalid value for %s: %v", key, err)
	}
	return value
}
