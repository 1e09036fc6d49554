package ocr

import (
	"context"
	"fmt"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// GoogleDocAIProvider extracts positioned text using Google Document AI
type GoogleDocAIProvider struct {
	projectID   string
	location    string
	processorID string
	client      *documentai.DocumentProcessorClient
}

func newGoogleDocAIProvider(config Config) (*GoogleDocAIProvider, error) {
	logger := log.WithFields(logrus.Fields{
		"location":     config.GoogleLocation,
		"processor_id": config.GoogleProcessorID,
	})
	logger.Info("Creating new Google Document AI provider")

	ctx := context.Background()
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.GoogleLocation)

	client, err := documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		logger.WithError(err).Error("Failed to create Document AI client")
		return nil, fmt.Errorf("error creating Document AI client: %w", err)
	}

	provider := &GoogleDocAIProvider{
		projectID:   config.GoogleProjectID,
		location:    config.GoogleLocation,
		processorID: config.GoogleProcessorID,
		client:      client,
	}

	logger.Info("Successfully initialized Google Document AI provider")
	return provider, nil
}

// ExtractBlocks runs the page image through Document AI and converts each
// paragraph into a positioned block.
func (p *GoogleDocAIProvider) ExtractBlocks(ctx context.Context, imageContent []byte) ([]Block, error) {
	logger := log.WithFields(logrus.Fields{
		"project_id":   p.projectID,
		"location":     p.location,
		"processor_id": p.processorID,
	})
	logger.Debug("Starting Document AI processing")

	mtype := mimetype.Detect(imageContent)
	logger.WithField("mime_type", mtype.String()).Debug("Detected file type")

	if !isImageMIMEType(mtype.String()) {
		logger.WithField("mime_type", mtype.String()).Error("Unsupported file type")
		return nil, fmt.Errorf("unsupported file type: %s", mtype.String())
	}

	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s", p.projectID, p.location, p.processorID)

	req := &documentaipb.ProcessRequest{
		Name: name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  imageContent,
				MimeType: mtype.String(),
			},
		},
	}

	logger.Debug("Sending request to Document AI")
	resp, err := p.client.ProcessDocument(ctx, req)
	if err != nil {
		logger.WithError(err).Error("Failed to process document")
		return nil, fmt.Errorf("error processing document: %w", err)
	}

	if resp == nil || resp.Document == nil {
		logger.Error("Received nil response or document from Document AI")
		return nil, fmt.Errorf("received nil response or document from Document AI")
	}

	if resp.Document.Error != nil {
		logger.WithField("error", resp.Document.Error.Message).Error("Document processing error")
		return nil, fmt.Errorf("document processing error: %s", resp.Document.Error.Message)
	}

	blocks := documentToBlocks(resp.Document)
	logger.WithFields(logrus.Fields{
		"page_count": len(resp.Document.GetPages()),
		"num_blocks": len(blocks),
	}).Info("Successfully processed document")

	return blocks, nil
}

// documentToBlocks flattens the document's paragraphs into positioned
// blocks. Document AI vertices are normalized with the origin at the top
// left, so the vertical axis is flipped to the bottom-origin convention.
func documentToBlocks(doc *documentaipb.Document) []Block {
	var blocks []Block
	for _, page := range doc.GetPages() {
		for _, para := range page.GetParagraphs() {
			vertices := para.GetLayout().GetBoundingPoly().GetNormalizedVertices()
			if len(vertices) < 4 {
				continue
			}

			text := anchorText(doc, para.GetLayout().GetTextAnchor())
			if text == "" {
				continue
			}

			midY := float64(vertices[0].GetY()+vertices[2].GetY()) / 2
			blocks = append(blocks, Block{
				Text: text,
				Y:    1 - midY,
			})
		}
	}
	return blocks
}

// anchorText resolves a text anchor against the document's full text.
func anchorText(doc *documentaipb.Document, anchor *documentaipb.Document_TextAnchor) string {
	var sb strings.Builder
	for _, segment := range anchor.GetTextSegments() {
		start := segment.GetStartIndex()
		end := segment.GetEndIndex()
		if start < 0 || end > int64(len(doc.Text)) || start >= end {
			continue
		}
		sb.WriteString(doc.Text[start:end])
	}
	return strings.TrimSpace(sb.String())
}

// isImageMIMEType checks if the given MIME type is a supported image type
func isImageMIMEType(mimeType string) bool {
	supportedTypes := map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
		"image/tiff": true,
		"image/bmp":  true,
	}
	return supportedTypes[mimeType]
}

// Close releases resources used by the provider
func (p *GoogleDocAIProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
