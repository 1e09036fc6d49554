package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeExercisesWrapperShape(t *testing.T) {
	decoded, err := DecodeExercises(`{"type":"exercise","exercise":{"type":"x","fullContent":"y","startY":0,"endY":1}}`)
	require.NoError(t, err)
	require.Len(t, decoded, 1)

	// Missing exercise number defaults instead of failing.
	assert.Equal(t, UnknownExerciseNumber, decoded[0].Number)
	assert.Equal(t, "x", decoded[0].Kind)
	assert.Equal(t, "y", decoded[0].Content)
	assert.Equal(t, 0.0, decoded[0].StartY)
	assert.Equal(t, 1.0, decoded[0].EndY)
	assert.Equal(t, DefaultInputMode, decoded[0].InputMode)
}

func TestDecodeExercisesFieldDefaults(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantNumber    string
		wantInputMode string
	}{
		{
			name:          "null exercise number",
			input:         `{"type":"exercise","exercise":{"exerciseNumber":null,"type":"math","fullContent":"solve","startY":0.2,"endY":0.4}}`,
			wantNumber:    UnknownExerciseNumber,
			wantInputMode: DefaultInputMode,
		},
		{
			name:          "explicit fields preserved",
			input:         `{"type":"exercise","exercise":{"exerciseNumber":"3b","type":"math","fullContent":"solve","startY":0.2,"endY":0.4,"inputMode":"keyboard"}}`,
			wantNumber:    "3b",
			wantInputMode: "keyboard",
		},
		{
			name:          "empty string exercise number",
			input:         `{"type":"exercise","exercise":{"exerciseNumber":"","type":"math","fullContent":"solve","startY":0.2,"endY":0.4}}`,
			wantNumber:    UnknownExerciseNumber,
			wantInputMode: DefaultInputMode,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decoded, err := DecodeExercises(tc.input)
			require.NoError(t, err)
			require.Len(t, decoded, 1)
			assert.Equal(t, tc.wantNumber, decoded[0].Number)
			assert.Equal(t, tc.wantInputMode, decoded[0].InputMode)
		})
	}
}

func TestDecodeExercisesHardFailures(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "missing content",
			input: `{"type":"exercise","exercise":{"type":"math","startY":0.2,"endY":0.4}}`,
		},
		{
			name:  "missing boundaries",
			input: `{"type":"exercise","exercise":{"type":"math","fullContent":"solve"}}`,
		},
		{
			name:  "missing kind in bare array",
			input: `[{"fullContent":"solve","startY":0.2,"endY":0.4}]`,
		},
		{
			name:  "not JSON at all",
			input: "the dog ate my homework",
		},
		{
			name:  "truncated JSON",
			input: `{"type":"exercise","exercise":{"type":"math","fullCont`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeExercises(tc.input)
			assert.Error(t, err)
		})
	}
}

func TestDecodeExercisesArrayShape(t *testing.T) {
	decoded, err := DecodeExercises(`[
		{"exerciseNumber":"1","type":"math","fullContent":"add","startY":0.6,"endY":0.9},
		{"exerciseNumber":"2","type":"grammar","fullContent":"conjugate","startY":0.1,"endY":0.5,"subject":"french"}
	]`)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, "1", decoded[0].Number)
	assert.Equal(t, "grammar", decoded[1].Kind)
	assert.Equal(t, "french", decoded[1].Subject)
}

func TestDecodeExercisesPageShape(t *testing.T) {
	decoded, err := DecodeExercises(`{
		"summary": "A math worksheet",
		"exercises": [
			{"exerciseNumber":"1","fullContent":"add","startY":0.6,"endY":0.9}
		],
		"lessons": [
			{"fullContent":"fractions explained","startY":0.1,"endY":0.5}
		]
	}`)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, "exercise", decoded[0].Kind)
	assert.Equal(t, "lesson", decoded[1].Kind)
	assert.Equal(t, UnknownExerciseNumber, decoded[1].Number)
}

func TestDecodeExercisesPageShapeWithSections(t *testing.T) {
	decoded, err := DecodeExercises(`{
		"summary": "Mixed page",
		"sections": [
			{"type":"exercise","exercise":{"exerciseNumber":"4","type":"math","fullContent":"multiply","startY":0.5,"endY":0.8}},
			{"type":"note"}
		]
	}`)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, "4", decoded[0].Number)
}

func TestDecodeExercisesLessonWrapper(t *testing.T) {
	decoded, err := DecodeExercises(`{"type":"lesson","lesson":{"fullContent":"the water cycle","startY":0.3,"endY":0.7,"subject":"science"}}`)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, "lesson", decoded[0].Kind)
	assert.Equal(t, "science", decoded[0].Subject)
}

func TestDecodeExercisesEmptyPage(t *testing.T) {
	_, err := DecodeExercises(`{"summary":"blank page"}`)
	assert.Error(t, err)
}
