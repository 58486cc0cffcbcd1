package prediction

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aqicast/aqicast/internal/features"
)

// treeNode is either a split (Leaf == nil) or a leaf.
type treeNode struct {
	Feature   int      `json:"feature"`
	Threshold float64  `json:"threshold"`
	Left      int      `json:"left"`
	Right     int      `json:"right"`
	Leaf      *float64 `json:"leaf,omitempty"`
}

type tree struct {
	Nodes []treeNode `json:"nodes"`
}

// eval walks from the root; values below the threshold go left.
func (t *tree) eval(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf != nil {
			return *n.Leaf
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// validate checks that every split reads an existing feature and that child
// indexes point forward, so evaluation always terminates.
func (t *tree) validate(width int) error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Leaf != nil {
			continue
		}
		if n.Feature < 0 || n.Feature >= width {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		for _, c := range []int{n.Left, n.Right} {
			if c <= i || c >= len(t.Nodes) {
				return fmt.Errorf("node %d: child %d out of range", i, c)
			}
		}
	}
	return nil
}

// ensemble is a list of trees combined by sum (boosting) or mean (forest).
type ensemble struct {
	BaseScore float64 `json:"base_score"`
	Trees     []tree  `json:"trees"`
}

func (e *ensemble) validate(width int) error {
	if len(e.Trees) == 0 {
		return errors.New("ensemble has no trees")
	}
	for i := range e.Trees {
		if err := e.Trees[i].validate(width); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (e *ensemble) sum(x []float64) float64 {
	total := e.BaseScore
	for i := range e.Trees {
		total += e.Trees[i].eval(x)
	}
	return total
}

func (e *ensemble) mean(x []float64) float64 {
	var total float64
	for i := range e.Trees {
		total += e.Trees[i].eval(x)
	}
	return e.BaseScore + total/float64(len(e.Trees))
}

// flatWidth is the length of the flattened feature matrix the trees read.
const flatWidth = features.Rows * features.Width

// boostingArtifact holds one boosted ensemble per horizon, keyed by hours.
type boostingArtifact struct {
	Horizons map[string]*ensemble `json:"horizons"`
}

// GradientBoosting runs one boosted tree ensemble per horizon over the
// flattened feature matrix.
type GradientBoosting struct {
	models map[Horizon]*ensemble
}

func newGradientBoosting(a *boostingArtifact) (*GradientBoosting, error) {
	gb := &GradientBoosting{models: make(map[Horizon]*ensemble, len(Horizons))}
	for _, h := range Horizons {
		e, ok := a.Horizons[strconv.Itoa(int(h))]
		if !ok || e == nil {
			return nil, fmt.Errorf("missing %s ensemble", h)
		}
		if err := e.validate(flatWidth); err != nil {
			return nil, fmt.Errorf("%s: %w", h, err)
		}
		gb.models[h] = e
	}
	return gb, nil
}

// Predict implements Backend.
func (g *GradientBoosting) Predict(ctx context.Context, in Input) (Output, error) {
	if in.Matrix == nil {
		return nil, errors.New("missing feature matrix")
	}
	x := in.Matrix.Flatten()
	out := make(PerHorizon, len(g.models))
	for h, e := range g.models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[h] = e.sum(x)
	}
	return out, nil
}

// RandomForest averages a tree ensemble over the flattened feature matrix
// into a single next-period estimate.
type RandomForest struct {
	model *ensemble
}

func newRandomForest(e *ensemble) (*RandomForest, error) {
	if err := e.validate(flatWidth); err != nil {
		return nil, err
	}
	return &RandomForest{model: e}, nil
}

// Predict implements Backend.
func (f *RandomForest) Predict(_ context.Context, in Input) (Output, error) {
	if in.Matrix == nil {
		return nil, errors.New("missing feature matrix")
	}
	return Scalar(f.model.mean(in.Matrix.Flatten())), nil
}
