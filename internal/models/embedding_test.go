package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/okulsight/attendance-api/pkg/errors"
)

func TestEmbeddingRoundTrip(t *testing.T) {
	original := Embedding{-0.123456789, 0.0, 1.5, 0.000001}

	encoded, err := EncodeEmbedding(original)
	require.NoError(t, err)
	require.NotNil(t, encoded)

	decoded, err := DecodeEmbedding(encoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestEncodeEmbeddingNil(t *testing.T) {
	encoded, err := EncodeEmbedding(nil)
	require.NoError(t, err)
	assert.Nil(t, encoded)
}

func TestDecodeEmbeddingEmpty(t *testing.T) {
	decoded, err := DecodeEmbedding(nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)

	empty := ""
	decoded, err = DecodeEmbedding(&empty)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodeEmbeddingCorrupt(t *testing.T) {
	corrupt := "{not an array"
	_, err := DecodeEmbedding(&corrupt)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDataCorruption))
}

func TestAttendanceStatusValid(t *testing.T) {
	for _, status := range []AttendanceStatus{AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused} {
		assert.True(t, status.Valid())
	}
	assert.False(t, AttendanceStatus("SLEEPING").Valid())
	assert.False(t, AttendanceStatus("present").Valid())
}

func TestEmotionSummarySerialize(t *testing.T) {
	var nilSummary *EmotionSummary
	blob, err := nilSummary.Serialize()
	require.NoError(t, err)
	assert.Nil(t, blob)

	summary := &EmotionSummary{
		IndividualResults: []FaceEmotion{{Emotions: map[string]float64{"happy": 1.0}, Dominant: "happy", DominantScore: 1.0}},
		ClassResult:       &ClassEmotion{FaceCount: 1, Emotions: map[string]float64{"happy": 1.0}, Dominant: "happy", DominantScore: 1.0},
	}
	blob, err = summary.Serialize()
	require.NoError(t, err)
	require.NotNil(t, blob)
	assert.Contains(t, *blob, `"dominant_emotion":"happy"`)
	assert.Contains(t, *blob, `"face_count":1`)
}

func TestMatchedStudents(t *testing.T) {
	matched := MatchedStudents([]MatchResult{
		{ProbeIndex: 0, StudentID: "s1", Distance: 0.3},
		{ProbeIndex: 1, Distance: 0.9},
		{ProbeIndex: 2, StudentID: "s1", Distance: 0.2},
	})
	assert.Len(t, matched, 1)
	_, ok := matched["s1"]
	assert.True(t, ok)
}
