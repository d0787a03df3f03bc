package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okulsight/attendance-api/internal/models"
	appErrors "github.com/okulsight/attendance-api/pkg/errors"
)

func refs(pairs ...models.FaceReference) []models.FaceReference {
	return pairs
}

func TestFirstMatchWithinTolerance(t *testing.T) {
	m := NewMatcher(MatchPolicyFirst, 0.6)

	results, err := m.Match(
		[]models.Embedding{{0.0, 0.0}},
		refs(
			models.FaceReference{StudentID: "s1", Embedding: models.Embedding{0.5, 0.0}},
			models.FaceReference{StudentID: "s2", Embedding: models.Embedding{0.1, 0.0}},
		),
	)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// s2 is closer, but s1 comes first in roster order and is within tolerance.
	assert.Equal(t, "s1", results[0].StudentID)
	assert.InDelta(t, 0.5, results[0].Distance, 1e-9)
}

func TestNearestMatchWithinTolerance(t *testing.T) {
	m := NewMatcher(MatchPolicyNearest, 0.6)

	results, err := m.Match(
		[]models.Embedding{{0.0, 0.0}},
		refs(
			models.FaceReference{StudentID: "s1", Embedding: models.Embedding{0.5, 0.0}},
			models.FaceReference{StudentID: "s2", Embedding: models.Embedding{0.1, 0.0}},
		),
	)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s2", results[0].StudentID)
	assert.InDelta(t, 0.1, results[0].Distance, 1e-9)
}

func TestMatchToleranceBoundary(t *testing.T) {
	m := NewMatcher(MatchPolicyFirst, 0.6)

	// Distance exactly equal to the tolerance still counts as a match.
	results, err := m.Match(
		[]models.Embedding{{0.6, 0.0}},
		refs(models.FaceReference{StudentID: "s1", Embedding: models.Embedding{0.0, 0.0}}),
	)
	require.NoError(t, err)
	assert.Equal(t, "s1", results[0].StudentID)

	results, err = m.Match(
		[]models.Embedding{{0.61, 0.0}},
		refs(models.FaceReference{StudentID: "s1", Embedding: models.Embedding{0.0, 0.0}}),
	)
	require.NoError(t, err)
	assert.Empty(t, results[0].StudentID)
}

func TestMatchStudentClaimedOnce(t *testing.T) {
	for _, policy := range []string{MatchPolicyFirst, MatchPolicyNearest} {
		m := NewMatcher(policy, 0.6)

		// Two near-identical probes, one enrolled student.
		results, err := m.Match(
			[]models.Embedding{{0.0, 0.0}, {0.01, 0.0}},
			refs(models.FaceReference{StudentID: "s1", Embedding: models.Embedding{0.0, 0.0}}),
		)
		require.NoError(t, err)
		require.Len(t, results, 2)

		matchedCount := 0
		for _, r := range results {
			if r.StudentID != "" {
				matchedCount++
				assert.Equal(t, "s1", r.StudentID)
			}
		}
		assert.Equal(t, 1, matchedCount, "policy %s claimed the same student twice", policy)
	}
}

func TestMatchNoReferences(t *testing.T) {
	m := NewMatcher(MatchPolicyFirst, 0.6)

	results, err := m.Match([]models.Embedding{{0.0, 0.0}}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].StudentID)
}

func TestMatchDimensionMismatch(t *testing.T) {
	m := NewMatcher(MatchPolicyFirst, 0.6)

	_, err := m.Match(
		[]models.Embedding{{0.0, 0.0, 0.0}},
		refs(models.FaceReference{StudentID: "s1", Embedding: models.Embedding{0.0, 0.0}}),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestNewMatcherDefaults(t *testing.T) {
	assert.IsType(t, &firstMatchMatcher{}, NewMatcher("", 0))
	assert.IsType(t, &firstMatchMatcher{}, NewMatcher("bogus", 0.6))
	assert.IsType(t, &nearestMatcher{}, NewMatcher(MatchPolicyNearest, 0.6))
}
