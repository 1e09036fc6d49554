package analysis

import "strings"

// escapeRepairs is the fixed table of single-backslash sequences that
// classification models emit as math notation inside JSON strings. Each is
// rewritten to its double-escaped form so the JSON decoder does not choke on
// the stray backslash. The substitution is textual and best-effort: it can
// corrupt a legitimate double backslash that is already present, which is an
// accepted limitation of this repair.
var escapeRepairs = []struct {
	from string
	to   string
}{
	{`\(`, `\\(`},
	{`\)`, `\\)`},
	{`\[`, `\\[`},
	{`\]`, `\\]`},
	{`\frac`, `\\frac`},
	{`\sqrt`, `\\sqrt`},
	{`\times`, `\\times`},
	{`\div`, `\\div`},
	{`\pm`, `\\pm`},
	{`\cdot`, `\\cdot`},
	{`\le`, `\\le`},
	{`\ge`, `\\ge`},
	{`\neq`, `\\neq`},
	{`\infty`, `\\infty`},
	{`\sum`, `\\sum`},
	{`\int`, `\\int`},
	{`\pi`, `\\pi`},
}

// ExtractJSON isolates the JSON payload inside a free-form model response.
// An array (first '[' to last ']') is preferred over an object (first '{' to
// last '}'), except when the object pair strictly encloses the array pair:
// a page object with a sections list, or LaTeX '\[' math inside a string
// field, must not be sliced down to its inner brackets. Without any valid
// pair the input is returned unchanged and decoding fails at the next stage.
// ExtractJSON never fails itself, it only narrows and repairs.
func ExtractJSON(raw string) string {
	arrStart := strings.Index(raw, "[")
	arrEnd := strings.LastIndex(raw, "]")
	objStart := strings.Index(raw, "{")
	objEnd := strings.LastIndex(raw, "}")

	hasArr := arrStart != -1 && arrEnd > arrStart
	hasObj := objStart != -1 && objEnd > objStart

	var payload string
	switch {
	case hasArr && !(hasObj && objStart < arrStart && objEnd > arrEnd):
		payload = raw[arrStart : arrEnd+1]
	case hasObj:
		payload = raw[objStart : objEnd+1]
	default:
		return raw
	}

	return repairEscapes(payload)
}

// repairEscapes applies the fixed escape-repair table to the payload.
func repairEscapes(payload string) string {
	for _, repair := range escapeRepairs {
		payload = strings.ReplaceAll(payload, repair.from, repair.to)
	}
	return payload
}
