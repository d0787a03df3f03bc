package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/okulsight/attendance-api/internal/models"
	appErrors "github.com/okulsight/attendance-api/pkg/errors"
	"github.com/okulsight/attendance-api/pkg/vision"
)

type emotionExtractor interface {
	DetectEmotions(ctx context.Context, image []byte) ([]vision.EmotionDetection, error)
}

// EmotionService turns per-face affect detections into a class-level summary.
// Attendance is primary and sentiment auxiliary: callers log a failed
// analysis and carry on without a summary.
type EmotionService struct {
	extractor emotionExtractor
	logger    *zap.Logger
}

// NewEmotionService constructs the service.
func NewEmotionService(extractor emotionExtractor, logger *zap.Logger) *EmotionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmotionService{extractor: extractor, logger: logger}
}

// Analyze runs the affect extractor over the photo and aggregates the result.
// A photo with no detectable faces yields a nil summary, not an error.
func (s *EmotionService) Analyze(ctx context.Context, image []byte) (*models.EmotionSummary, error) {
	detections, err := s.extractor.DetectEmotions(ctx, image)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "emotion analysis failed")
	}
	if len(detections) == 0 {
		return nil, nil
	}

	summary := &models.EmotionSummary{
		IndividualResults: make([]models.FaceEmotion, 0, len(detections)),
	}
	totals := make(map[string]float64, len(models.EmotionCategories))

	for _, detection := range detections {
		scores := make(map[string]float64, len(models.EmotionCategories))
		for _, category := range models.EmotionCategories {
			scores[category] = detection.Emotions[category]
		}
		dominant, dominantScore := dominantEmotion(scores)
		summary.IndividualResults = append(summary.IndividualResults, models.FaceEmotion{
			Region:        detection.Region,
			Emotions:      scores,
			Dominant:      dominant,
			DominantScore: dominantScore,
		})
		for category, score := range scores {
			totals[category] += score
		}
	}

	count := len(summary.IndividualResults)
	means := make(map[string]float64, len(totals))
	for category, total := range totals {
		means[category] = total / float64(count)
	}
	dominant, dominantScore := dominantEmotion(means)
	summary.ClassResult = &models.ClassEmotion{
		FaceCount:     count,
		Emotions:      means,
		Dominant:      dominant,
		DominantScore: dominantScore,
	}
	return summary, nil
}

// dominantEmotion returns the argmax over the fixed category order so ties
// resolve deterministically.
func dominantEmotion(scores map[string]float64) (string, float64) {
	dominant := ""
	best := 0.0
	for _, category := range models.EmotionCategories {
		if score, ok := scores[category]; ok && (dominant == "" || score > best) {
			dominant = category
			best = score
		}
	}
	return dominant, best
}
