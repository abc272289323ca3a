package coarsehead

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// Ranker holds the all-pairs cosine similarity between the base classifier's
// fine-grained classes and, per class, a full ranking of all classes by
// descending similarity. Built once per base model and reused across every
// coarse-category definition; the O(N^2) matrix is the only sizeable
// artifact in the whole pipeline.
type Ranker struct {
	featureDim int
	classes    int
	sim        *mat.SymDense
	ranking    [][]int
}

// BuildRanker computes the similarity matrix and ranking from the base
// final-layer weights, shape (featureDim, N), one column per class. The
// input is read, never mutated.
//
// Zero-norm columns have no direction, so their similarity to every other
// class is 0; self-similarity is still 1 by convention so self always ranks
// first.
func BuildRanker(weight tensor.Tensor) (*Ranker, error) {
	shape := weight.Shape()
	if len(shape) != 2 {
		return nil, &DimensionMismatchError{Detail: "weight matrix must be 2-D (featureDim, N)"}
	}
	featureDim, n := shape[0], shape[1]
	if featureDim < 1 || n < 1 {
		return nil, &DimensionMismatchError{Detail: "weight matrix has a zero dimension"}
	}
	data, ok := weight.Data().([]float32)
	if !ok {
		return nil, &DimensionMismatchError{Detail: "weight matrix must have float32 backing"}
	}

	// Per-column L2 norms, accumulated in float64.
	norms := make([]float64, n)
	for j := 0; j < n; j++ {
		var sq float64
		for d := 0; d < featureDim; d++ {
			v := float64(data[d*n+j])
			sq += v * v
		}
		norms[j] = math.Sqrt(sq)
	}

	sim := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		sim.SetSym(i, i, 1.0)
		for j := i + 1; j < n; j++ {
			if norms[i] == 0 || norms[j] == 0 {
				sim.SetSym(i, j, 0)
				continue
			}
			var dot float64
			for d := 0; d < featureDim; d++ {
				dot += float64(data[d*n+i]) * float64(data[d*n+j])
			}
			sim.SetSym(i, j, dot/(norms[i]*norms[j]))
		}
	}

	ranking := make([][]int, n)
	for i := 0; i < n; i++ {
		others := make([]int, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				others = append(others, j)
			}
		}
		// Descending similarity, ascending index on ties. Self is
		// prepended unconditionally so duplicate columns cannot
		// displace it.
		sort.Slice(others, func(a, b int) bool {
			sa, sb := sim.At(i, others[a]), sim.At(i, others[b])
			if sa != sb {
				return sa > sb
			}
			return others[a] < others[b]
		})
		row := make([]int, 0, n)
		row = append(row, i)
		row = append(row, others...)
		ranking[i] = row
	}

	return &Ranker{featureDim: featureDim, classes: n, sim: sim, ranking: ranking}, nil
}

// Classes is the fine-grained class count N.
func (r *Ranker) Classes() int { return r.classes }

// FeatureDim is the feature dimension of the base final layer.
func (r *Ranker) FeatureDim() int { return r.featureDim }

// Similarity returns the cosine similarity between classes i and j.
func (r *Ranker) Similarity(i, j int) float64 { return r.sim.At(i, j) }

// Matrix exposes the similarity matrix. Callers must treat it as read-only.
func (r *Ranker) Matrix() *mat.SymDense { return r.sim }

// Ranking returns a copy of class i's full ranking, i first.
func (r *Ranker) Ranking(i int) []int {
	return append([]int(nil), r.ranking[i]...)
}

// Neighborhood returns the k classes most similar to seed, seed first.
func (r *Ranker) Neighborhood(seed, k int) ([]int, error) {
	if seed < 0 || seed >= r.classes {
		return nil, &InvalidParameterError{Param: "seed", Value: seed,
			Detail: "seed class index must be in [0, N)"}
	}
	if k < 1 || k > r.classes {
		return nil, &InvalidParameterError{Param: "k", Value: k,
			Detail: "neighborhood size must be in [1, N]"}
	}
	return append([]int(nil), r.ranking[seed][:k]...), nil
}
