package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/okulsight/attendance-api/pkg/errors"
	"github.com/okulsight/attendance-api/pkg/vision"
)

type mockEmotionExtractor struct {
	detections []vision.EmotionDetection
	err        error
}

func (m *mockEmotionExtractor) DetectEmotions(ctx context.Context, image []byte) ([]vision.EmotionDetection, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.detections, nil
}

func TestEmotionAnalyzeAggregatesClassMeans(t *testing.T) {
	extractor := &mockEmotionExtractor{detections: []vision.EmotionDetection{
		{Region: vision.Region{X: 1, Y: 2, Width: 10, Height: 10}, Emotions: map[string]float64{"happy": 0.8, "neutral": 0.2}},
		{Region: vision.Region{X: 20, Y: 2, Width: 10, Height: 10}, Emotions: map[string]float64{"happy": 0.4, "sad": 0.6}},
	}}
	svc := NewEmotionService(extractor, zap.NewNop())

	summary, err := svc.Analyze(context.Background(), []byte("photo"))
	require.NoError(t, err)
	require.NotNil(t, summary)
	require.Len(t, summary.IndividualResults, 2)

	assert.Equal(t, "happy", summary.IndividualResults[0].Dominant)
	assert.InDelta(t, 0.8, summary.IndividualResults[0].DominantScore, 1e-9)
	assert.Equal(t, "sad", summary.IndividualResults[1].Dominant)

	require.NotNil(t, summary.ClassResult)
	assert.Equal(t, 2, summary.ClassResult.FaceCount)
	assert.InDelta(t, 0.6, summary.ClassResult.Emotions["happy"], 1e-9)
	assert.InDelta(t, 0.3, summary.ClassResult.Emotions["sad"], 1e-9)
	assert.InDelta(t, 0.1, summary.ClassResult.Emotions["neutral"], 1e-9)
	assert.Equal(t, "happy", summary.ClassResult.Dominant)
}

func TestEmotionAnalyzeAllFacesSameEmotion(t *testing.T) {
	detections := make([]vision.EmotionDetection, 3)
	for i := range detections {
		detections[i] = vision.EmotionDetection{Emotions: map[string]float64{"happy": 1.0}}
	}
	svc := NewEmotionService(&mockEmotionExtractor{detections: detections}, zap.NewNop())

	summary, err := svc.Analyze(context.Background(), []byte("photo"))
	require.NoError(t, err)
	require.NotNil(t, summary.ClassResult)
	assert.InDelta(t, 1.0, summary.ClassResult.Emotions["happy"], 1e-9)
	assert.Equal(t, "happy", summary.ClassResult.Dominant)
	assert.InDelta(t, 1.0, summary.ClassResult.DominantScore, 1e-9)
}

func TestEmotionAnalyzeFillsMissingCategories(t *testing.T) {
	svc := NewEmotionService(&mockEmotionExtractor{detections: []vision.EmotionDetection{
		{Emotions: map[string]float64{"happy": 0.9}},
	}}, zap.NewNop())

	summary, err := svc.Analyze(context.Background(), []byte("photo"))
	require.NoError(t, err)
	require.Len(t, summary.IndividualResults, 1)

	// Every category is present in the per-face scores even when unreported.
	assert.Len(t, summary.IndividualResults[0].Emotions, 7)
	assert.Zero(t, summary.IndividualResults[0].Emotions["disgust"])
}

func TestEmotionAnalyzeNoFaces(t *testing.T) {
	svc := NewEmotionService(&mockEmotionExtractor{}, zap.NewNop())

	summary, err := svc.Analyze(context.Background(), []byte("photo"))
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestEmotionAnalyzeExtractorFailure(t *testing.T) {
	svc := NewEmotionService(&mockEmotionExtractor{err: errors.New("connection refused")}, zap.NewNop())

	summary, err := svc.Analyze(context.Background(), []byte("photo"))
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}
