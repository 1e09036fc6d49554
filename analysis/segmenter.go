package analysis

import "sort"

const (
	// DefaultGapThreshold is the minimum normalized vertical distance
	// between adjacent OCR blocks for them to be split into separate
	// segments.
	DefaultGapThreshold = 0.05

	// DefaultMinSegmentHeight is the minimum normalized height a segment
	// must have to survive merging.
	DefaultMinSegmentHeight = 0.03

	// segmentPadding extends the outermost segments beyond their first and
	// last blocks so content at the page edges is not clipped out of the
	// cropped region.
	segmentPadding = 0.05
)

// SegmentBlocks groups OCR blocks into contiguous page regions based on
// vertical gaps. Blocks may arrive unsorted; they are sorted ascending by Y
// (bottom of the page first) and split wherever the gap between neighbors
// exceeds gapThreshold. The midpoint of each oversized gap becomes the
// boundary between the two adjacent segments, so the segments tile the page
// with no dead zones between them: every pixel row belongs to exactly one
// segment. An empty block list yields an empty result; the caller must treat
// that as a hard failure, not as a page with zero exercises.
func SegmentBlocks(blocks []OCRBlock, gapThreshold float64) []Segment {
	if len(blocks) == 0 {
		return nil
	}
	if gapThreshold <= 0 {
		gapThreshold = DefaultGapThreshold
	}

	sorted := make([]OCRBlock, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Y < sorted[j].Y
	})

	groups := [][]OCRBlock{{sorted[0]}}
	var boundaries []float64
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Y - sorted[i-1].Y
		if gap > gapThreshold {
			boundaries = append(boundaries, sorted[i-1].Y+gap/2)
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], sorted[i])
	}

	segments := make([]Segment, len(groups))
	for i, group := range groups {
		start := group[0].Y - segmentPadding
		if i > 0 {
			start = boundaries[i-1]
		} else if start < 0 {
			start = 0
		}

		end := group[len(group)-1].Y + segmentPadding
		if i < len(boundaries) {
			end = boundaries[i]
		} else if end > 1 {
			end = 1
		}

		segments[i] = Segment{
			StartY: start,
			EndY:   end,
			Blocks: group,
		}
	}
	return segments
}

// MergeSegments collapses undersized segments into their successors in a
// single greedy left-to-right pass. A segment below minHeight that is not
// the last one is merged with the immediately following segment: block lists
// are concatenated and the bounds re-derived as [current.StartY, next.EndY].
// The pass never looks backward, so a tiny segment following a large one is
// absorbed by its successor, not its predecessor. The last segment is kept
// even when undersized because it has no successor to absorb it.
func MergeSegments(segments []Segment, minHeight float64) []Segment {
	if minHeight <= 0 {
		minHeight = DefaultMinSegmentHeight
	}

	merged := make([]Segment, 0, len(segments))
	for i := 0; i < len(segments); {
		current := segments[i]
		if current.Height() < minHeight && i+1 < len(segments) {
			next := segments[i+1]
			blocks := make([]OCRBlock, 0, len(current.Blocks)+len(next.Blocks))
			blocks = append(blocks, current.Blocks...)
			blocks = append(blocks, next.Blocks...)
			merged = append(merged, Segment{
				StartY: current.StartY,
				EndY:   next.EndY,
				Blocks: blocks,
			})
			i += 2
			continue
		}
		merged = append(merged, current)
		i++
	}
	return merged
}
