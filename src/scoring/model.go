// backend/src/scoring/model.go
package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Artifact kinds and output spaces understood by the loader.
const (
	KindLogistic     = "logistic"
	KindTreeEnsemble = "tree_ensemble"

	OutputMargin      = "margin"
	OutputProbability = "probability"
)

// ModelArtifact is the on-disk JSON form of a trained fraud classifier.
type ModelArtifact struct {
	Kind         string           `json:"kind"`
	Version      string           `json:"version"`
	FeatureNames []string         `json:"feature_names"`
	Output       string           `json:"output"`
	Threshold    *float64         `json:"threshold,omitempty"`
	Calibration  *CalibrationSpec `json:"calibration,omitempty"`

	// logistic
	Weights []float64 `json:"weights,omitempty"`
	Bias    float64   `json:"bias,omitempty"`

	// tree_ensemble; base_score is added in margin space
	BaseScore float64    `json:"base_score,omitempty"`
	Trees     []TreeNode `json:"trees,omitempty"`
}

// TreeNode is one node of an XGBoost-style JSON tree dump.
// Split nodes route to Yes when value < SplitCondition.
type TreeNode struct {
	NodeID         int        `json:"nodeid"`
	Split          string     `json:"split,omitempty"`
	SplitCondition float64    `json:"split_condition,omitempty"`
	Yes            int        `json:"yes,omitempty"`
	No             int        `json:"no,omitempty"`
	Missing        int        `json:"missing,omitempty"`
	Leaf           *float64   `json:"leaf,omitempty"`
	Children       []TreeNode `json:"children,omitempty"`
}

// ReadArtifact reads and decodes a model artifact without verifying it.
func ReadArtifact(path string) (*ModelArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read model artifact: %v", ErrScorerUnavailable, err)
	}
	var art ModelArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("%w: decode model artifact %s: %v", ErrScorerUnavailable, path, err)
	}
	return &art, nil
}

// predictor returns the raw model output for a vector already projected onto
// the artifact's feature order.
type predictor interface {
	predict(x []float64) float64
}

type logisticModel struct {
	weights []float64
	bias    float64
}

func (m *logisticModel) predict(x []float64) float64 {
	sum := m.bias
	for i, w := range m.weights {
		sum += w * x[i]
	}
	return sum
}

// flatNode is a tree node compiled to slice indices.
type flatNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	yes       int
	no        int
	missing   int
}

type treeEnsemble struct {
	base  float64
	trees [][]flatNode
}

func (m *treeEnsemble) predict(x []float64) float64 {
	sum := m.base
	for _, nodes := range m.trees {
		i := 0
		for !nodes[i].leaf {
			n := nodes[i]
			v := x[n.feature]
			switch {
			case math.IsNaN(v):
				i = n.missing
			case v < n.threshold:
				i = n.yes
			default:
				i = n.no
			}
		}
		sum += nodes[i].value
	}
	return sum
}

func buildPredictor(art *ModelArtifact, featureIndex map[string]int) (predictor, error) {
	switch art.Kind {
	case KindLogistic:
		if len(art.Weights) != len(art.FeatureNames) {
			return nil, fmt.Errorf("logistic model has %d weights for %d features", len(art.Weights), len(art.FeatureNames))
		}
		for i, w := range art.Weights {
			if !finite(w) {
				return nil, fmt.Errorf("weight %d is not finite", i)
			}
		}
		if !finite(art.Bias) {
			return nil, fmt.Errorf("bias is not finite")
		}
		return &logisticModel{weights: append([]float64(nil), art.Weights...), bias: art.Bias}, nil

	case KindTreeEnsemble:
		if len(art.Trees) == 0 {
			return nil, fmt.Errorf("tree ensemble has no trees")
		}
		if !finite(art.BaseScore) {
			return nil, fmt.Errorf("base_score is not finite")
		}
		ens := &treeEnsemble{base: art.BaseScore, trees: make([][]flatNode, 0, len(art.Trees))}
		for i := range art.Trees {
			nodes, err := compileTree(&art.Trees[i], featureIndex)
			if err != nil {
				return nil, fmt.Errorf("tree %d: %w", i, err)
			}
			ens.trees = append(ens.trees, nodes)
		}
		return ens, nil

	default:
		return nil, fmt.Errorf("unknown model kind %q", art.Kind)
	}
}

// compileTree flattens a nested tree into a slice rooted at index 0. Every split
// must reference its own children by node id, which rules out cycles.
func compileTree(root *TreeNode, featureIndex map[string]int) ([]flatNode, error) {
	var nodes []flatNode
	seen := map[int]bool{}

	var walk func(n *TreeNode) (int, error)
	walk = func(n *TreeNode) (int, error) {
		if seen[n.NodeID] {
			return 0, fmt.Errorf("duplicate node id %d", n.NodeID)
		}
		seen[n.NodeID] = true

		idx := len(nodes)
		nodes = append(nodes, flatNode{})

		if n.Leaf != nil {
			if len(n.Children) > 0 {
				return 0, fmt.Errorf("leaf node %d has children", n.NodeID)
			}
			if !finite(*n.Leaf) {
				return 0, fmt.Errorf("leaf node %d is not finite", n.NodeID)
			}
			nodes[idx] = flatNode{leaf: true, value: *n.Leaf}
			return idx, nil
		}

		feature, ok := featureIndex[n.Split]
		if !ok {
			return 0, fmt.Errorf("node %d splits on unknown feature %q", n.NodeID, n.Split)
		}
		if !finite(n.SplitCondition) {
			return 0, fmt.Errorf("node %d split condition is not finite", n.NodeID)
		}
		if len(n.Children) == 0 {
			return 0, fmt.Errorf("split node %d has no children", n.NodeID)
		}

		childIdx := make(map[int]int, len(n.Children))
		for i := range n.Children {
			ci, err := walk(&n.Children[i])
			if err != nil {
				return 0, err
			}
			childIdx[n.Children[i].NodeID] = ci
		}

		resolve := func(id int, branch string) (int, error) {
			ci, ok := childIdx[id]
			if !ok {
				return 0, fmt.Errorf("node %d %s branch references %d, which is not a child", n.NodeID, branch, id)
			}
			return ci, nil
		}
		yes, err := resolve(n.Yes, "yes")
		if err != nil {
			return 0, err
		}
		no, err := resolve(n.No, "no")
		if err != nil {
			return 0, err
		}
		// An omitted missing branch follows yes.
		missing := yes
		if n.Missing != 0 {
			if missing, err = resolve(n.Missing, "missing"); err != nil {
				return 0, err
			}
		}

		nodes[idx] = flatNode{feature: feature, threshold: n.SplitCondition, yes: yes, no: no, missing: missing}
		return idx, nil
	}

	if _, err := walk(root); err != nil {
		return nil, err
	}
	return nodes, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
