package vision

import "context"

// Region locates a detected face within the source image.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FaceDetection is a single detected face with its identity embedding.
type FaceDetection struct {
	Region    Region    `json:"region"`
	Embedding []float64 `json:"embedding"`
}

// EmotionDetection is a single detected face with its emotion distribution.
type EmotionDetection struct {
	Region   Region             `json:"region"`
	Emotions map[string]float64 `json:"emotions"`
}

// FaceExtractor produces identity embeddings for every face in an image.
// An empty result means no faces were found; it is not an error.
type FaceExtractor interface {
	DetectFaces(ctx context.Context, image []byte) ([]FaceDetection, error)
}

// EmotionExtractor produces per-category emotion scores for every face in an image.
type EmotionExtractor interface {
	DetectEmotions(ctx context.Context, image []byte) ([]EmotionDetection, error)
}
