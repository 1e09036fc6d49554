package analysis

import (
	"encoding/json"
	"fmt"
)

// UnknownExerciseNumber is substituted when a backend omits the exercise
// number rather than failing the whole element.
const UnknownExerciseNumber = "Unknown"

// DefaultInputMode is substituted when a backend omits the input mode.
const DefaultInputMode = "canvas"

// rawExercise mirrors the wire shape of a single exercise. Required fields
// are pointers so that absence can be told apart from zero values: startY of
// 0 is a legitimate boundary, a missing startY is a hard decode failure.
type rawExercise struct {
	Number    *string  `json:"exerciseNumber"`
	Kind      *string  `json:"type"`
	Content   *string  `json:"fullContent"`
	StartY    *float64 `json:"startY"`
	EndY      *float64 `json:"endY"`
	Subject   *string  `json:"subject"`
	InputMode *string  `json:"inputMode"`
}

// rawWrapper is the single-item wrapper shape some backends return:
// {"type":"exercise","exercise":{...}} or {"type":"lesson","lesson":{...}}.
type rawWrapper struct {
	Type     string       `json:"type"`
	Exercise *rawExercise `json:"exercise"`
	Lesson   *rawExercise `json:"lesson"`
}

// rawPage is the whole-page shape the cloud agent service returns: a summary
// plus sections, or flat exercises/lessons lists.
type rawPage struct {
	Summary   string        `json:"summary"`
	Sections  []rawWrapper  `json:"sections"`
	Exercises []rawExercise `json:"exercises"`
	Lessons   []rawExercise `json:"lessons"`
}

// DecodeExercises converts sanitized JSON text into typed exercises. Three
// shapes are accepted: a bare array of exercise objects, a single-item
// wrapper, and a whole-page object with exercises and/or lessons lists.
// Missing exercise numbers and input modes get defaults; any other missing
// required field fails that element, and the element failure is returned to
// the caller who decides whether to skip the segment.
func DecodeExercises(jsonText string) ([]Exercise, error) {
	data := []byte(jsonText)

	var rawList []rawExercise
	if err := json.Unmarshal(data, &rawList); err == nil {
		// Bare array elements must declare their own kind.
		return finalizeAll(rawList, "")
	}

	var wrapper rawWrapper
	if err := json.Unmarshal(data, &wrapper); err == nil {
		if exercises, ok, err := decodeWrapper(wrapper); ok || err != nil {
			return exercises, err
		}
	}

	var page rawPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	return decodePage(page)
}

// decodeWrapper handles the single-item wrapper shape. The boolean reports
// whether the wrapper actually carried a payload; a JSON object without an
// exercise or lesson key unmarshals into rawWrapper without error, so the
// caller falls through to the page shape in that case.
func decodeWrapper(wrapper rawWrapper) ([]Exercise, bool, error) {
	var raw *rawExercise
	kind := wrapper.Type
	switch {
	case wrapper.Exercise != nil:
		raw = wrapper.Exercise
		if kind == "" {
			kind = "exercise"
		}
	case wrapper.Lesson != nil:
		raw = wrapper.Lesson
		if kind == "" {
			kind = "lesson"
		}
	default:
		return nil, false, nil
	}

	exercise, err := finalize(*raw, kind)
	if err != nil {
		return nil, true, err
	}
	return []Exercise{exercise}, true, nil
}

// decodePage handles the whole-page shape. Sections carrying an exercise or
// lesson payload decode like wrappers; sections without one (prose summaries
// and the like) are skipped rather than failing the page.
func decodePage(page rawPage) ([]Exercise, error) {
	var exercises []Exercise

	for _, section := range page.Sections {
		decoded, ok, err := decodeWrapper(section)
		if err != nil {
			return nil, err
		}
		if ok {
			exercises = append(exercises, decoded...)
		}
	}

	fromExercises, err := finalizeAll(page.Exercises, "exercise")
	if err != nil {
		return nil, err
	}
	exercises = append(exercises, fromExercises...)

	fromLessons, err := finalizeAll(page.Lessons, "lesson")
	if err != nil {
		return nil, err
	}
	exercises = append(exercises, fromLessons...)

	if len(exercises) == 0 {
		return nil, fmt.Errorf("response contained no exercises or lessons")
	}
	return exercises, nil
}

func finalizeAll(raws []rawExercise, fallbackKind string) ([]Exercise, error) {
	exercises := make([]Exercise, 0, len(raws))
	for i, raw := range raws {
		exercise, err := finalize(raw, fallbackKind)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		exercises = append(exercises, exercise)
	}
	return exercises, nil
}

// finalize validates one raw exercise and applies the field defaults.
func finalize(raw rawExercise, fallbackKind string) (Exercise, error) {
	if raw.Content == nil {
		return Exercise{}, fmt.Errorf("missing required field fullContent")
	}
	if raw.StartY == nil || raw.EndY == nil {
		return Exercise{}, fmt.Errorf("missing required boundary fields startY/endY")
	}

	kind := fallbackKind
	if raw.Kind != nil && *raw.Kind != "" {
		kind = *raw.Kind
	}
	if kind == "" {
		return Exercise{}, fmt.Errorf("missing required field type")
	}

	number := UnknownExerciseNumber
	if raw.Number != nil && *raw.Number != "" {
		number = *raw.Number
	}

	inputMode := DefaultInputMode
	if raw.InputMode != nil && *raw.InputMode != "" {
		inputMode = *raw.InputMode
	}

	exercise := Exercise{
		Number:    number,
		Kind:      kind,
		Content:   *raw.Content,
		StartY:    *raw.StartY,
		EndY:      *raw.EndY,
		InputMode: inputMode,
	}
	if raw.Subject != nil {
		exercise.Subject = *raw.Subject
	}
	return exercise, nil
}
