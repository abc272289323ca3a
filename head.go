package coarsehead

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// HeadParameters are the weight matrix (featureDim, classes) and bias vector
// (classes) of one linear classification layer. Inputs are read-only: the
// synthesizer never mutates the base parameters it is handed.
type HeadParameters struct {
	Weight tensor.Tensor
	Bias   tensor.Tensor
}

// Dims validates the shapes against each other and returns them.
func (p HeadParameters) Dims() (featureDim, classes int, err error) {
	if p.Weight == nil || p.Bias == nil {
		return 0, 0, &DimensionMismatchError{Detail: "head parameters require both weight and bias"}
	}
	wShape := p.Weight.Shape()
	if len(wShape) != 2 {
		return 0, 0, &DimensionMismatchError{Detail: "weight matrix must be 2-D (featureDim, classes)"}
	}
	featureDim, classes = wShape[0], wShape[1]
	if featureDim < 1 || classes < 1 {
		return 0, 0, &DimensionMismatchError{Detail: "weight matrix has a zero dimension"}
	}
	bShape := p.Bias.Shape()
	if len(bShape) != 1 || bShape[0] != classes {
		return 0, 0, &DimensionMismatchError{Detail: fmt.Sprintf(
			"bias must be a vector of length %d, got shape %v", classes, bShape)}
	}
	if _, ok := p.Weight.Data().([]float32); !ok {
		return 0, 0, &DimensionMismatchError{Detail: "weight matrix must have float32 backing"}
	}
	if _, ok := p.Bias.Data().([]float32); !ok {
		return 0, 0, &DimensionMismatchError{Detail: "bias vector must have float32 backing"}
	}
	return featureDim, classes, nil
}

// Synthesize builds the coarse head's parameters: column j of the result is
// the arithmetic mean of the base weight columns in sets[j], and likewise
// for the bias. Column order follows the order of sets, which is the
// declared category order. Pure function: same inputs, same output, inputs
// untouched.
func Synthesize(base HeadParameters, sets []ContributingSet) (HeadParameters, error) {
	featureDim, n, err := base.Dims()
	if err != nil {
		return HeadParameters{}, err
	}
	if len(sets) == 0 {
		return HeadParameters{}, &InvalidParameterError{Param: "sets", Value: 0,
			Detail: "at least one contributing set is required"}
	}

	wData := base.Weight.Data().([]float32)
	bData := base.Bias.Data().([]float32)

	c := len(sets)
	newW := make([]float32, featureDim*c)
	newB := make([]float32, c)

	for j, set := range sets {
		if len(set.Classes) == 0 {
			return HeadParameters{}, &EmptyContributingSetError{Category: set.Category}
		}
		for _, cls := range set.Classes {
			if cls < 0 || cls >= n {
				return HeadParameters{}, &DimensionMismatchError{Detail: fmt.Sprintf(
					"category %q references class %d outside [0, %d)", set.Category, cls, n)}
			}
		}

		inv := 1.0 / float64(len(set.Classes))
		for d := 0; d < featureDim; d++ {
			var sum float64
			for _, cls := range set.Classes {
				sum += float64(wData[d*n+cls])
			}
			newW[d*c+j] = float32(sum * inv)
		}
		var sum float64
		for _, cls := range set.Classes {
			sum += float64(bData[cls])
		}
		newB[j] = float32(sum * inv)
	}

	return HeadParameters{
		Weight: tensor.New(tensor.WithShape(featureDim, c), tensor.WithBacking(newW)),
		Bias:   tensor.New(tensor.WithShape(c), tensor.WithBacking(newB)),
	}, nil
}

// CoarseHead is the synthesized classification layer assembled on top of a
// frozen feature extractor. Its nodes carry fixed values and are never
// registered as learnables, so no training pass can touch them.
type CoarseHead struct {
	Graph  *gorgonia.ExprGraph
	Linear *gorgonia.Node // (featureDim, C)
	Bias   *gorgonia.Node // (1, C), kept 2-D for broadcasting

	categories []string
}

// NewCoarseHead wires synthesized parameters into g as frozen value nodes.
// The tensors are copied; the caller's parameters stay untouched.
func NewCoarseHead(g *gorgonia.ExprGraph, params HeadParameters, categories []string) (*CoarseHead, error) {
	featureDim, c, err := params.Dims()
	if err != nil {
		return nil, err
	}
	if len(categories) != c {
		return nil, &DimensionMismatchError{Detail: fmt.Sprintf(
			"%d category names for %d head columns", len(categories), c)}
	}

	wData := append([]float32(nil), params.Weight.Data().([]float32)...)
	bData := append([]float32(nil), params.Bias.Data().([]float32)...)

	wVal := tensor.New(tensor.WithShape(featureDim, c), tensor.WithBacking(wData))
	bVal := tensor.New(tensor.WithShape(1, c), tensor.WithBacking(bData))

	return &CoarseHead{
		Graph:      g,
		Linear:     gorgonia.NodeFromAny(g, wVal, gorgonia.WithName("Coarse_W")),
		Bias:       gorgonia.NodeFromAny(g, bVal, gorgonia.WithName("Coarse_b")),
		categories: append([]string(nil), categories...),
	}, nil
}

// Categories is the fixed output-index-to-name mapping of the head.
func (h *CoarseHead) Categories() []string {
	return append([]string(nil), h.categories...)
}

// Forward maps pooled features (batch, featureDim) to raw scores (batch, C).
// The activation turning scores into a distribution (softmax) is the
// caller's, same as the base model's inference path.
func (h *CoarseHead) Forward(features *gorgonia.Node) (*gorgonia.Node, error) {
	logits, err := gorgonia.Mul(features, h.Linear)
	if err != nil {
		return nil, err
	}
	return gorgonia.BroadcastAdd(logits, h.Bias, nil, []byte{0})
}

// ArgMax returns the winning category index per row of a (batch, C) score
// tensor, lowest index on ties. Enough for callers to compute accuracy and
// confusion counts over the coarse categories.
func ArgMax(scores tensor.Tensor) ([]int, error) {
	shape := scores.Shape()
	if len(shape) != 2 {
		return nil, &DimensionMismatchError{Detail: "scores must be 2-D (batch, categories)"}
	}
	data, ok := scores.Data().([]float32)
	if !ok {
		return nil, &DimensionMismatchError{Detail: "scores must have float32 backing"}
	}
	batch, c := shape[0], shape[1]
	out := make([]int, batch)
	for i := 0; i < batch; i++ {
		best := 0
		for j := 1; j < c; j++ {
			if data[i*c+j] > data[i*c+best] {
				best = j
			}
		}
		out[i] = best
	}
	return out, nil
}
