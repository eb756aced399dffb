// backend/src/scoring/scorer.go
package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/username/merchantguard/backend/src/logger"
	"github.com/username/merchantguard/backend/src/models"
)

var (
	// ErrScorerUnavailable means the model could not be loaded or produced no usable score.
	ErrScorerUnavailable = errors.New("fraud scorer unavailable")
	// ErrInternal flags a broken contract between the feature builder and the model.
	ErrInternal = errors.New("internal scoring error")
)

// DefaultThreshold is used when the artifact does not carry one.
const DefaultThreshold = 0.5

// Scorer wraps a loaded classifier. It is immutable after construction and safe
// for concurrent use.
type Scorer struct {
	kind       string
	version    string
	model      predictor
	calibrate  calibrator
	projection []int // artifact feature i reads builder feature projection[i]
	width      int
	threshold  float64
}

// LoadModel reads the artifact at path and builds a Scorer for vectors laid out
// as builderNames. Any failure wraps ErrScorerUnavailable.
func LoadModel(path string, builderNames []string) (*Scorer, error) {
	art, err := ReadArtifact(path)
	if err != nil {
		return nil, err
	}
	s, err := NewScorer(art, builderNames)
	if err != nil {
		return nil, err
	}
	logger.L.Info("Fraud model loaded", "path", path, "kind", s.kind, "version", s.version, "features", len(s.projection), "threshold", s.threshold)
	return s, nil
}

// NewScorer verifies an artifact and compiles it.
func NewScorer(art *ModelArtifact, builderNames []string) (*Scorer, error) {
	if art == nil {
		return nil, fmt.Errorf("%w: nil artifact", ErrScorerUnavailable)
	}
	if len(art.FeatureNames) == 0 {
		return nil, fmt.Errorf("%w: artifact lists no feature names", ErrScorerUnavailable)
	}

	builderIndex := make(map[string]int, len(builderNames))
	for i, name := range builderNames {
		builderIndex[name] = i
	}

	projection := make([]int, len(art.FeatureNames))
	artifactIndex := make(map[string]int, len(art.FeatureNames))
	for i, name := range art.FeatureNames {
		bi, ok := builderIndex[name]
		if !ok {
			return nil, fmt.Errorf("%w: model feature %q is not produced by the feature builder", ErrScorerUnavailable, name)
		}
		if _, dup := artifactIndex[name]; dup {
			return nil, fmt.Errorf("%w: model feature %q listed twice", ErrScorerUnavailable, name)
		}
		projection[i] = bi
		artifactIndex[name] = i
	}

	model, err := buildPredictor(art, artifactIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScorerUnavailable, err)
	}
	calibrate, err := newCalibrator(art.Output, art.Calibration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScorerUnavailable, err)
	}

	threshold := DefaultThreshold
	if art.Threshold != nil {
		threshold = *art.Threshold
		if !finite(threshold) || threshold < 0 || threshold > 1 {
			return nil, fmt.Errorf("%w: threshold %v outside [0, 1]", ErrScorerUnavailable, threshold)
		}
	}

	s := &Scorer{
		kind:       art.Kind,
		version:    art.Version,
		model:      model,
		calibrate:  calibrate,
		projection: projection,
		width:      len(builderNames),
		threshold:  threshold,
	}

	// Probe with an all-zero vector so a broken artifact fails at startup, not on the first request.
	if _, err := s.Score(models.FeatureVector{Names: builderNames, Values: make([]float64, len(builderNames))}); err != nil {
		return nil, fmt.Errorf("%w: probe prediction failed: %v", ErrScorerUnavailable, err)
	}
	return s, nil
}

// Score returns the calibrated fraud probability for a feature vector.
func (s *Scorer) Score(v models.FeatureVector) (models.FraudScore, error) {
	if v.Len() != s.width {
		return 0, fmt.Errorf("%w: feature vector has width %d, model expects %d", ErrInternal, v.Len(), s.width)
	}

	x := make([]float64, len(s.projection))
	for i, bi := range s.projection {
		x[i] = v.Values[bi]
	}

	p := s.calibrate(s.model.predict(x))
	if math.IsNaN(p) {
		return 0, fmt.Errorf("%w: model returned NaN", ErrScorerUnavailable)
	}
	return models.FraudScore(clamp01(p)), nil
}

// Threshold is the decision threshold above which a score counts as flagged.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Flagged reports whether score is at or above the threshold.
func (s *Scorer) Flagged(score models.FraudScore) bool { return float64(score) >= s.threshold }

func (s *Scorer) Kind() string    { return s.kind }
func (s *Scorer) Version() string { return s.version }
