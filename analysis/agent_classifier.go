package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

const defaultAgentTimeout = 120 * time.Second

// AgentTimeoutError indicates the agent service did not answer within the
// configured timeout.
type AgentTimeoutError struct {
	Timeout time.Duration
}

func (e *AgentTimeoutError) Error() string {
	return fmt.Sprintf("agent service timed out after %s", e.Timeout)
}

// AgentStatusError indicates the agent service answered with a non-200
// status. It carries the numeric code and the response body.
type AgentStatusError struct {
	Code int
	Body string
}

func (e *AgentStatusError) Error() string {
	return fmt.Sprintf("agent service returned status %d: %s", e.Code, e.Body)
}

// AgentTransportError indicates the request never produced an HTTP response.
type AgentTransportError struct {
	Err error
}

func (e *AgentTransportError) Error() string {
	return fmt.Sprintf("agent service transport error: %v", e.Err)
}

func (e *AgentTransportError) Unwrap() error {
	return e.Err
}

// agentRequest is the wire request for the multi-agent analysis service.
type agentRequest struct {
	Image   string  `json:"image"`
	OCRText string  `json:"ocrText"`
	StartY  float64 `json:"startY"`
	EndY    float64 `json:"endY"`
}

// bearerTransport wraps the base RoundTripper to add the Authorization header.
type bearerTransport struct {
	base  http.RoundTripper
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.token))
	return t.base.RoundTrip(reqClone)
}

// agentClassifier implements classification via the remote multi-agent
// analysis service.
type agentClassifier struct {
	baseURL    string
	timeout    time.Duration
	httpClient *retryablehttp.Client
}

func newAgentClassifier(config ClassifierConfig) (*agentClassifier, error) {
	logger := log.WithFields(logrus.Fields{
		"url": config.AgentServiceURL,
	})
	logger.Info("Creating new multi-agent classifier")

	timeout := defaultAgentTimeout
	if config.AgentTimeout > 0 {
		timeout = time.Duration(config.AgentTimeout) * time.Second
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 10 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = logger
	// Surface the final response instead of a generic "giving up" error so
	// AgentStatusError keeps the numeric code and body.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if config.AgentAPIKey != "" {
		client.HTTPClient.Transport = &bearerTransport{
			base:  http.DefaultTransport,
			token: config.AgentAPIKey,
		}
	}

	logger.Info("Successfully initialized multi-agent classifier")
	return &agentClassifier{
		baseURL:    config.AgentServiceURL,
		timeout:    timeout,
		httpClient: client,
	}, nil
}

// Classify sends the region to the agent service and returns the raw
// response body. The service answers with the whole-page JSON shape
// (summary/sections or exercises/lessons), which the decoder accepts
// directly.
func (c *agentClassifier) Classify(ctx context.Context, region []byte, ocrText string, startY, endY float64) (string, error) {
	logger := log.WithFields(logrus.Fields{
		"backend":   BackendCloudMultiAgent,
		"url":       c.baseURL,
		"data_size": len(region),
	})
	logger.Debug("Starting multi-agent classification")

	body, err := json.Marshal(agentRequest{
		Image:   base64.StdEncoding.EncodeToString(region),
		OCRText: ocrText,
		StartY:  startY,
		EndY:    endY,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal agent request: %w", err)
	}

	endpoint := c.baseURL + "/v1/analyze"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			logger.WithError(err).Error("Agent service request timed out")
			return "", &AgentTimeoutError{Timeout: c.timeout}
		}
		logger.WithError(err).Error("Agent service request failed")
		return "", &AgentTransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AgentTransportError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"response":    string(respBody),
		}).Error("Agent service returned non-200 status")
		return "", &AgentStatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	logger.WithField("content_length", len(respBody)).Debug("Received agent response")
	return string(respBody), nil
}

// Available probes the agent service health endpoint.
func (c *agentClassifier) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("Agent service is not reachable")
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// isTimeout reports whether the error is a network timeout.
func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
