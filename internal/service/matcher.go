package service

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/okulsight/attendance-api/internal/models"
	appErrors "github.com/okulsight/attendance-api/pkg/errors"
)

// DefaultTolerance is the maximum Euclidean distance between a probe and a
// reference embedding for the pair to count as the same person, in the
// extractor's native distance units.
const DefaultTolerance = 0.6

// Match policies selectable via FACE_MATCH_POLICY.
const (
	MatchPolicyFirst   = "first"
	MatchPolicyNearest = "nearest"
)

// Matcher assigns probe embeddings from a classroom photo to roster face
// references. Every probe yields one MatchResult; an empty StudentID means
// the face matched nobody. A student appears in at most one result.
type Matcher interface {
	Match(probes []models.Embedding, refs []models.FaceReference) ([]models.MatchResult, error)
}

// NewMatcher returns the matcher implementation for the configured policy.
// Unknown policies fall back to first-match.
func NewMatcher(policy string, tolerance float64) Matcher {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	switch policy {
	case MatchPolicyNearest:
		return &nearestMatcher{tolerance: tolerance}
	default:
		return &firstMatchMatcher{tolerance: tolerance}
	}
}

// firstMatchMatcher accepts, per probe, the first reference in roster order
// whose distance is within tolerance — not necessarily the closest one.
// This trades accuracy for a single pass and is the documented default;
// nearestMatcher is the drop-in alternative.
type firstMatchMatcher struct {
	tolerance float64
}

func (m *firstMatchMatcher) Match(probes []models.Embedding, refs []models.FaceReference) ([]models.MatchResult, error) {
	taken := make(map[string]struct{}, len(refs))
	results := make([]models.MatchResult, 0, len(probes))

	for i, probe := range probes {
		result := models.MatchResult{ProbeIndex: i, Distance: math.Inf(1)}
		for _, ref := range refs {
			if _, ok := taken[ref.StudentID]; ok {
				continue
			}
			d, err := euclidean(probe, ref.Embedding)
			if err != nil {
				return nil, err
			}
			if d < result.Distance {
				result.Distance = d
			}
			if d <= m.tolerance {
				result.StudentID = ref.StudentID
				result.Distance = d
				taken[ref.StudentID] = struct{}{}
				break
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// nearestMatcher accepts, per probe, the closest unmatched reference when it
// falls within tolerance.
type nearestMatcher struct {
	tolerance float64
}

func (m *nearestMatcher) Match(probes []models.Embedding, refs []models.FaceReference) ([]models.MatchResult, error) {
	taken := make(map[string]struct{}, len(refs))
	results := make([]models.MatchResult, 0, len(probes))

	for i, probe := range probes {
		result := models.MatchResult{ProbeIndex: i, Distance: math.Inf(1)}
		best := -1
		for j, ref := range refs {
			if _, ok := taken[ref.StudentID]; ok {
				continue
			}
			d, err := euclidean(probe, ref.Embedding)
			if err != nil {
				return nil, err
			}
			if d < result.Distance {
				result.Distance = d
				best = j
			}
		}
		if best >= 0 && result.Distance <= m.tolerance {
			result.StudentID = refs[best].StudentID
			taken[refs[best].StudentID] = struct{}{}
		}
		results = append(results, result)
	}
	return results, nil
}

func euclidean(a, b models.Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("embedding dimension mismatch: probe has %d values, reference has %d", len(a), len(b)))
	}
	return floats.Distance([]float64(a), []float64(b), 2), nil
}
