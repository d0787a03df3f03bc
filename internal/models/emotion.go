package models

import (
	"encoding/json"
	"fmt"

	"github.com/okulsight/attendance-api/pkg/vision"
)

// EmotionCategories is the fixed category set reported by the affect
// extractor. Aggregation always covers every category, even when a face
// reports a zero score for it.
var EmotionCategories = []string{"angry", "disgust", "fear", "happy", "sad", "surprise", "neutral"}

// FaceEmotion is the analysed affect of a single detected face.
type FaceEmotion struct {
	Region        vision.Region      `json:"box"`
	Emotions      map[string]float64 `json:"emotions"`
	Dominant      string             `json:"dominant_emotion"`
	DominantScore float64            `json:"dominant_emotion_score"`
}

// ClassEmotion aggregates affect across all faces in the classroom photo.
type ClassEmotion struct {
	FaceCount     int                `json:"face_count"`
	Emotions      map[string]float64 `json:"emotions"`
	Dominant      string             `json:"dominant_emotion"`
	DominantScore float64            `json:"dominant_emotion_score"`
}

// EmotionSummary holds per-face detail plus the class aggregate. It is
// informational only and never influences attendance status.
type EmotionSummary struct {
	IndividualResults []FaceEmotion `json:"individual_results"`
	ClassResult       *ClassEmotion `json:"class_result"`
}

// Serialize renders the summary into the opaque blob stored on the session.
func (s *EmotionSummary) Serialize() (*string, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("serialize emotion summary: %w", err)
	}
	text := string(raw)
	return &text, nil
}
