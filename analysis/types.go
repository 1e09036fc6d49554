package analysis

import "strings"

// OCRBlock is a single line of recognized text together with its normalized
// vertical position on the page. Y runs from 0 (bottom of the page) to 1
// (top of the page); larger values are higher up.
type OCRBlock struct {
	Text string  `json:"text"`
	Y    float64 `json:"y"`
}

// Segment is a contiguous vertical slice of the page. StartY is the lower
// edge and EndY the upper edge, both normalized; StartY < EndY always holds.
// Segments are ephemeral, created per analysis run and discarded afterwards.
type Segment struct {
	StartY float64
	EndY   float64
	Blocks []OCRBlock
}

// Height returns the normalized height of the segment.
func (s Segment) Height() float64 {
	return s.EndY - s.StartY
}

// Text joins the segment's OCR blocks into a single newline-separated string
// in reading order. Blocks are stored bottom-to-top (ascending Y), so the
// join walks them in reverse.
func (s Segment) Text() string {
	lines := make([]string, 0, len(s.Blocks))
	for i := len(s.Blocks) - 1; i >= 0; i-- {
		lines = append(lines, s.Blocks[i].Text)
	}
	return strings.Join(lines, "\n")
}

// Exercise is a single detected exercise (or lesson snippet) on the page.
// Exercises are immutable once constructed; the pipeline only appends and
// re-sorts, it never mutates a finalized exercise.
type Exercise struct {
	Number    string  `json:"exerciseNumber"`
	Kind      string  `json:"type"`
	Content   string  `json:"fullContent"`
	StartY    float64 `json:"startY"`
	EndY      float64 `json:"endY"`
	Subject   string  `json:"subject,omitempty"`
	InputMode string  `json:"inputMode"`
}

// AnalysisResult is the final output of a page analysis: exercises in
// document reading order, top of the page first.
type AnalysisResult struct {
	Exercises []Exercise `json:"exercises"`
}

// Backend identifies which classification backend an analysis run uses.
// It is a pure selection value, not a live connection.
type Backend string

const (
	BackendOnDevice        Backend = "on_device"
	BackendCloudSingle     Backend = "cloud_single_agent"
	BackendCloudMultiAgent Backend = "cloud_multi_agent"
)

// RoutingConfig is an immutable snapshot of the flags that drive backend
// selection. It is consumed once per routing decision.
type RoutingConfig struct {
	UseAgenticAnalysis     bool
	HasCloudSubscription   bool
	UseCloudAnalysis       bool
	OnDeviceModelAvailable bool
}
