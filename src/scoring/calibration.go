package scoring

import (
	"fmt"
	"math"
)

// Calibration methods for margin outputs.
const (
	CalibrationLogistic = "logistic"
	CalibrationPlatt    = "platt"
)

// CalibrationSpec selects how raw margins are mapped to probabilities.
// Platt scaling computes 1 / (1 + exp(A*m + B)).
type CalibrationSpec struct {
	Method string  `json:"method"`
	A      float64 `json:"a,omitempty"`
	B      float64 `json:"b,omitempty"`
}

// calibrator maps a raw model output into [0, 1]. It must be monotonic.
type calibrator func(raw float64) float64

func sigmoid(m float64) float64 {
	return 1 / (1 + math.Exp(-m))
}

func clamp01(p float64) float64 {
	return math.Max(0, math.Min(1, p))
}

// newCalibrator picks the calibration once, when the scorer is built.
func newCalibrator(output string, spec *CalibrationSpec) (calibrator, error) {
	switch output {
	case OutputProbability:
		if spec != nil {
			return nil, fmt.Errorf("calibration %q given for a probability output", spec.Method)
		}
		return clamp01, nil

	case OutputMargin, "":
		if spec == nil || spec.Method == "" || spec.Method == CalibrationLogistic {
			return sigmoid, nil
		}
		if spec.Method != CalibrationPlatt {
			return nil, fmt.Errorf("unknown calibration method %q", spec.Method)
		}
		if !finite(spec.A) || !finite(spec.B) {
			return nil, fmt.Errorf("platt parameters are not finite")
		}
		// A must be negative for the mapping to increase with the margin.
		if spec.A >= 0 {
			return nil, fmt.Errorf("platt parameter a must be negative, got %v", spec.A)
		}
		a, b := spec.A, spec.B
		return func(m float64) float64 {
			return 1 / (1 + math.Exp(a*m+b))
		}, nil

	default:
		return nil, fmt.Errorf("unknown output %q", output)
	}
}
