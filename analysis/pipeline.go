package analysis

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNoContent is returned when segmentation produced no segments, i.e.
	// the OCR input was empty. Callers must be able to tell "no content
	// detected" apart from "nothing found after analysis", so this is a
	// hard failure rather than an empty result.
	ErrNoContent = errors.New("no OCR content to analyze")

	// ErrBackendUnavailable is returned when the selected classification
	// backend cannot serve requests at all. It is checked once before any
	// segment is attempted.
	ErrBackendUnavailable = errors.New("classification backend is unavailable")
)

// ProgressFunc receives (completed, total) after each processed segment. It
// is advisory only: the pipeline calls it synchronously and ignores it for
// control flow.
type ProgressFunc func(completed, total int)

// Analyzer drives the page analysis pipeline: segmentation, merging,
// per-segment classification and aggregation.
type Analyzer struct {
	Classifier       Classifier
	GapThreshold     float64
	MinSegmentHeight float64
}

// NewAnalyzer creates an Analyzer with the default segmentation thresholds.
func NewAnalyzer(classifier Classifier) *Analyzer {
	return &Analyzer{
		Classifier:       classifier,
		GapThreshold:     DefaultGapThreshold,
		MinSegmentHeight: DefaultMinSegmentHeight,
	}
}

// Analyze splits the page into segments and classifies each one in order,
// strictly sequentially. Per-segment failures (backend errors, malformed
// responses) are logged and skipped; a single bad segment never aborts the
// whole analysis, its exercises are simply missing from the result. Only two
// failures reach the caller besides cancellation: ErrNoContent when the OCR
// input produced no segments, and ErrBackendUnavailable when the backend is
// down before any segment was attempted. On cancellation the accumulated
// exercises are discarded; a partial result is not a meaningful artifact.
func (a *Analyzer) Analyze(ctx context.Context, blocks []OCRBlock, img image.Image, onProgress ProgressFunc) (*AnalysisResult, error) {
	segments := MergeSegments(SegmentBlocks(blocks, a.GapThreshold), a.MinSegmentHeight)
	if len(segments) == 0 {
		return nil, ErrNoContent
	}
	log.WithField("segment_count", len(segments)).Info("Starting page analysis")

	if !a.Classifier.Available(ctx) {
		return nil, ErrBackendUnavailable
	}

	total := len(segments)
	var exercises []Exercise

	for i, segment := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		segLogger := log.WithFields(logrus.Fields{
			"segment": i + 1,
			"total":   total,
			"start_y": segment.StartY,
			"end_y":   segment.EndY,
		})

		decoded, err := a.analyzeSegment(ctx, segment, img, segLogger)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			segLogger.WithError(err).Warn("Segment analysis failed, skipping")
		} else {
			exercises = append(exercises, decoded...)
		}

		if onProgress != nil {
			onProgress(i+1, total)
		}
	}

	// Reading order: top of the page first, regardless of the order the
	// backends returned things in.
	sort.SliceStable(exercises, func(i, j int) bool {
		return exercises[i].StartY > exercises[j].StartY
	})

	log.WithField("exercise_count", len(exercises)).Info("Page analysis completed")
	return &AnalysisResult{Exercises: exercises}, nil
}

// analyzeSegment crops the segment's region, classifies it and decodes the
// response into exercises.
func (a *Analyzer) analyzeSegment(ctx context.Context, segment Segment, img image.Image, logger *logrus.Entry) ([]Exercise, error) {
	region, err := CropRegion(img, segment.StartY, segment.EndY, cropPadding)
	if err != nil {
		return nil, fmt.Errorf("error cropping segment region: %w", err)
	}

	raw, err := a.Classifier.Classify(ctx, region, segment.Text(), segment.StartY, segment.EndY)
	if err != nil {
		return nil, fmt.Errorf("error classifying segment: %w", err)
	}

	decoded, err := DecodeExercises(ExtractJSON(raw))
	if err != nil {
		return nil, fmt.Errorf("error decoding classification response: %w", err)
	}

	logger.WithField("exercise_count", len(decoded)).Debug("Segment analyzed")
	return decoded, nil
}
