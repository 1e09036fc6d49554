package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentBlocksEmptyInput(t *testing.T) {
	assert.Empty(t, SegmentBlocks(nil, DefaultGapThreshold))
	assert.Empty(t, SegmentBlocks([]OCRBlock{}, DefaultGapThreshold))
}

func TestSegmentBlocksSingleGroup(t *testing.T) {
	blocks := []OCRBlock{
		{Text: "line 1", Y: 0.50},
		{Text: "line 2", Y: 0.52},
		{Text: "line 3", Y: 0.54},
	}

	segments := SegmentBlocks(blocks, DefaultGapThreshold)
	require.Len(t, segments, 1)
	assert.InDelta(t, 0.45, segments[0].StartY, 1e-9)
	assert.InDelta(t, 0.59, segments[0].EndY, 1e-9)
	assert.Len(t, segments[0].Blocks, 3)
}

func TestSegmentBlocksSplitsOnGap(t *testing.T) {
	blocks := []OCRBlock{
		{Text: "bottom", Y: 0.10},
		{Text: "middle", Y: 0.50},
		{Text: "top", Y: 0.90},
	}

	segments := SegmentBlocks(blocks, DefaultGapThreshold)
	require.Len(t, segments, 3)

	// Interior boundaries sit at the midpoint of each oversized gap.
	assert.InDelta(t, 0.30, segments[0].EndY, 1e-9)
	assert.InDelta(t, 0.30, segments[1].StartY, 1e-9)
	assert.InDelta(t, 0.70, segments[1].EndY, 1e-9)
	assert.InDelta(t, 0.70, segments[2].StartY, 1e-9)
}

func TestSegmentBlocksSortsUnsortedInput(t *testing.T) {
	blocks := []OCRBlock{
		{Text: "top", Y: 0.90},
		{Text: "bottom", Y: 0.10},
		{Text: "middle", Y: 0.50},
	}

	segments := SegmentBlocks(blocks, DefaultGapThreshold)
	require.Len(t, segments, 3)
	assert.Equal(t, "bottom", segments[0].Blocks[0].Text)
	assert.Equal(t, "middle", segments[1].Blocks[0].Text)
	assert.Equal(t, "top", segments[2].Blocks[0].Text)
}

func TestSegmentBlocksCoverage(t *testing.T) {
	tests := []struct {
		name         string
		blocks       []OCRBlock
		gapThreshold float64
	}{
		{
			name: "full page of text",
			blocks: []OCRBlock{
				{Text: "a", Y: 0.03},
				{Text: "b", Y: 0.20},
				{Text: "c", Y: 0.45},
				{Text: "d", Y: 0.70},
				{Text: "e", Y: 0.97},
			},
			gapThreshold: DefaultGapThreshold,
		},
		{
			name: "dense cluster near the top",
			blocks: []OCRBlock{
				{Text: "a", Y: 0.96},
				{Text: "b", Y: 0.97},
				{Text: "c", Y: 0.98},
			},
			gapThreshold: DefaultGapThreshold,
		},
		{
			name: "large threshold never splits",
			blocks: []OCRBlock{
				{Text: "a", Y: 0.04},
				{Text: "b", Y: 0.50},
				{Text: "c", Y: 0.96},
			},
			gapThreshold: 0.99,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			segments := SegmentBlocks(tc.blocks, tc.gapThreshold)
			require.NotEmpty(t, segments)

			// Adjacent segments must tile the page with no gaps or
			// overlaps between them.
			for i := 0; i < len(segments); i++ {
				assert.Less(t, segments[i].StartY, segments[i].EndY)
				if i > 0 {
					assert.Equal(t, segments[i-1].EndY, segments[i].StartY)
				}
			}
			assert.GreaterOrEqual(t, segments[0].StartY, 0.0)
			assert.LessOrEqual(t, segments[len(segments)-1].EndY, 1.0)
		})
	}
}

func TestSegmentBlocksClampsToPage(t *testing.T) {
	blocks := []OCRBlock{
		{Text: "near bottom", Y: 0.02},
		{Text: "near top", Y: 0.99},
	}

	segments := SegmentBlocks(blocks, DefaultGapThreshold)
	require.Len(t, segments, 2)
	assert.Equal(t, 0.0, segments[0].StartY)
	assert.Equal(t, 1.0, segments[1].EndY)
}

func TestMergeSegmentsAbsorbsIntoSuccessor(t *testing.T) {
	segments := []Segment{
		{StartY: 0.0, EndY: 0.4, Blocks: []OCRBlock{{Text: "big low", Y: 0.2}}},
		{StartY: 0.4, EndY: 0.42, Blocks: []OCRBlock{{Text: "tiny", Y: 0.41}}},
		{StartY: 0.42, EndY: 1.0, Blocks: []OCRBlock{{Text: "big high", Y: 0.7}}},
	}

	merged := MergeSegments(segments, DefaultMinSegmentHeight)
	require.Len(t, merged, 2)

	// The tiny segment merges forward into its successor, not backward
	// into the large segment before it.
	assert.InDelta(t, 0.4, merged[1].StartY, 1e-9)
	assert.InDelta(t, 1.0, merged[1].EndY, 1e-9)
	require.Len(t, merged[1].Blocks, 2)
	assert.Equal(t, "tiny", merged[1].Blocks[0].Text)
	assert.Equal(t, "big high", merged[1].Blocks[1].Text)
	assert.InDelta(t, 0.4, merged[0].EndY, 1e-9)
}

func TestMergeSegmentsKeepsUndersizedLast(t *testing.T) {
	segments := []Segment{
		{StartY: 0.0, EndY: 0.98},
		{StartY: 0.98, EndY: 1.0},
	}

	merged := MergeSegments(segments, DefaultMinSegmentHeight)
	require.Len(t, merged, 2)
	assert.InDelta(t, 0.98, merged[1].StartY, 1e-9)
}

func TestMergeSegmentsMinHeightInvariant(t *testing.T) {
	blocks := []OCRBlock{
		{Text: "a", Y: 0.05},
		{Text: "b", Y: 0.30},
		{Text: "c", Y: 0.55},
		{Text: "d", Y: 0.80},
		{Text: "e", Y: 0.95},
	}

	segments := SegmentBlocks(blocks, DefaultGapThreshold)
	merged := MergeSegments(segments, DefaultMinSegmentHeight)

	for i, segment := range merged {
		if i == len(merged)-1 {
			continue // the last segment may stay undersized
		}
		assert.GreaterOrEqual(t, segment.Height(), DefaultMinSegmentHeight)
	}
}

func TestMergeSegmentsIdempotent(t *testing.T) {
	segments := []Segment{
		{StartY: 0.0, EndY: 0.02},
		{StartY: 0.02, EndY: 0.5},
		{StartY: 0.5, EndY: 0.51},
		{StartY: 0.51, EndY: 1.0},
	}

	once := MergeSegments(segments, DefaultMinSegmentHeight)
	twice := MergeSegments(once, DefaultMinSegmentHeight)
	assert.Equal(t, once, twice)
}

func TestSegmentText(t *testing.T) {
	segment := Segment{
		StartY: 0.0,
		EndY:   1.0,
		Blocks: []OCRBlock{
			{Text: "last line", Y: 0.1},
			{Text: "middle line", Y: 0.5},
			{Text: "first line", Y: 0.9},
		},
	}

	// Blocks are stored bottom-up; reading order is top-down.
	assert.Equal(t, "first line\nmiddle line\nlast line", segment.Text())
}
