package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// VisionServerProvider extracts positioned text via a vision OCR server
// that returns per-line bounding boxes.
type VisionServerProvider struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// newVisionServerProvider creates a new vision OCR server provider
func newVisionServerProvider(config Config) (*VisionServerProvider, error) {
	logger := log.WithFields(logrus.Fields{
		"url": config.VisionServerURL,
	})
	logger.Info("Creating new vision OCR server provider")

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 10 * time.Second
	client.Logger = logger
	// Surface the final response instead of a generic "giving up" error so
	// status failures keep their code and body.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	provider := &VisionServerProvider{
		baseURL:    config.VisionServerURL,
		httpClient: client,
	}

	logger.Info("Successfully initialized vision OCR server provider")
	return provider, nil
}

// ExtractBlocks sends the page image to the OCR server and converts the
// returned bounding boxes into positioned blocks.
func (p *VisionServerProvider) ExtractBlocks(ctx context.Context, imageContent []byte) ([]Block, error) {
	logger := log.WithFields(logrus.Fields{
		"provider":  "vision_server",
		"url":       p.baseURL,
		"data_size": len(imageContent),
	})
	logger.Debug("Starting vision OCR server processing")

	// Prepare multipart request body
	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	part, err := writer.CreateFormFile("file", "page.jpg")
	if err != nil {
		logger.WithError(err).Error("Failed to create form file")
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(imageContent)); err != nil {
		logger.WithError(err).Error("Failed to copy image content to form")
		return nil, fmt.Errorf("failed to copy image content: %w", err)
	}
	if err := writer.Close(); err != nil {
		logger.WithError(err).Error("Failed to close multipart writer")
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	endpoint := p.baseURL + "/ocr"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, &requestBody)
	if err != nil {
		logger.WithError(err).Error("Failed to create HTTP request")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	logger.Debug("Sending request to vision OCR server")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		logger.WithError(err).Error("Failed to send request to vision OCR server")
		return nil, fmt.Errorf("error sending request to vision OCR server: %w", err)
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.WithError(err).Error("Failed to read vision OCR server response body")
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"response":    string(respBodyBytes),
		}).Error("Vision OCR server returned non-200 status")
		return nil, fmt.Errorf("vision OCR server returned status %d: %s", resp.StatusCode, string(respBodyBytes))
	}

	var ocrResponse visionServerResponse
	if err := json.Unmarshal(respBodyBytes, &ocrResponse); err != nil {
		logger.WithError(err).WithField("response", string(respBodyBytes)).Error("Failed to parse vision OCR server response")
		return nil, fmt.Errorf("failed to parse vision OCR server response: %w", err)
	}

	if !ocrResponse.Success {
		logger.Error("Vision OCR server processing failed")
		return nil, fmt.Errorf("vision OCR server processing failed: %s", ocrResponse.Message)
	}

	blocks := boxesToBlocks(ocrResponse.Boxes)
	logger.WithFields(logrus.Fields{
		"num_boxes":    len(ocrResponse.Boxes),
		"num_blocks":   len(blocks),
		"image_width":  ocrResponse.ImageWidth,
		"image_height": ocrResponse.ImageHeight,
	}).Info("Successfully processed image with vision OCR server")

	return blocks, nil
}

// boxesToBlocks converts bounding boxes to positioned blocks. Box origins
// are normalized bottom-left; the block position is the vertical midpoint of
// the box. Boxes with empty text are dropped.
func boxesToBlocks(boxes []visionServerBox) []Block {
	blocks := make([]Block, 0, len(boxes))
	for _, box := range boxes {
		if box.Text == "" {
			continue
		}
		blocks = append(blocks, Block{
			Text: box.Text,
			Y:    box.Y + box.H/2,
		})
	}
	return blocks
}

// visionServerResponse represents the response from the vision OCR server
type visionServerResponse struct {
	Message     string            `json:"message"`
	ImageWidth  int               `json:"image_width"`
	ImageHeight int               `json:"image_height"`
	Boxes       []visionServerBox `json:"ocr_boxes"`
	Success     bool              `json:"success"`
}

// visionServerBox represents a text bounding box from the vision OCR server
type visionServerBox struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
}
