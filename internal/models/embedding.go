package models

import (
	"encoding/json"

	appErrors "github.com/okulsight/attendance-api/pkg/errors"
)

// Embedding is a fixed-length face feature vector produced by the
// external extractor. All stored and probe embeddings share one
// dimensionality; comparing vectors of different lengths is an input error.
type Embedding []float64

// EncodeEmbedding serializes an embedding into its stored text form.
// The JSON number encoding round-trips float64 values exactly.
func EncodeEmbedding(e Embedding) (*string, error) {
	if e == nil {
		return nil, nil
	}
	raw, err := json.Marshal([]float64(e))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode face embedding")
	}
	text := string(raw)
	return &text, nil
}

// DecodeEmbedding parses a stored embedding. A nil input yields a nil
// embedding. Malformed text is reported as DATA_CORRUPTION so callers can
// treat the record as having no reference instead of aborting.
func DecodeEmbedding(text *string) (Embedding, error) {
	if text == nil || *text == "" {
		return nil, nil
	}
	var values []float64
	if err := json.Unmarshal([]byte(*text), &values); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataCorruption.Code, appErrors.ErrDataCorruption.Status, appErrors.ErrDataCorruption.Message)
	}
	return Embedding(values), nil
}
