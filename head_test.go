package coarsehead

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func baseHead(t *testing.T, featureDim, n int, wData, bData []float32) HeadParameters {
	t.Helper()
	p := HeadParameters{
		Weight: tensor.New(tensor.WithShape(featureDim, n), tensor.WithBacking(wData)),
		Bias:   tensor.New(tensor.WithShape(n), tensor.WithBacking(bData)),
	}
	_, _, err := p.Dims()
	require.NoError(t, err)
	return p
}

func TestSynthesizeSingletonIdentity(t *testing.T) {
	// Columns: (1,4), (2,5), (3,6).
	base := baseHead(t, 2, 3,
		[]float32{1, 2, 3, 4, 5, 6},
		[]float32{0.5, -1.5, 2.5})

	out, err := Synthesize(base, []ContributingSet{{Category: "solo", Classes: []int{1}}})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 1}, []int(out.Weight.Shape()))
	assert.Equal(t, []float32{2, 5}, out.Weight.Data().([]float32),
		"mean of one element must be exactly the original column")
	assert.Equal(t, []float32{-1.5}, out.Bias.Data().([]float32))
}

func TestSynthesizeAveraging(t *testing.T) {
	// Columns: (1,2,3) and (3,4,5); biases 1.0 and 3.0.
	base := baseHead(t, 3, 2,
		[]float32{1, 3, 2, 4, 3, 5},
		[]float32{1, 3})

	out, err := Synthesize(base, []ContributingSet{{Category: "both", Classes: []int{0, 1}}})
	require.NoError(t, err)

	assert.Equal(t, []float32{2, 3, 4}, out.Weight.Data().([]float32))
	assert.Equal(t, []float32{2}, out.Bias.Data().([]float32))
}

func TestSynthesizeEmptySetFails(t *testing.T) {
	base := baseHead(t, 2, 2, []float32{1, 2, 3, 4}, []float32{0, 0})

	out, err := Synthesize(base, []ContributingSet{
		{Category: "ok", Classes: []int{0}},
		{Category: "hollow", Classes: nil},
	})
	var empty *EmptyContributingSetError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "hollow", empty.Category)
	assert.Nil(t, out.Weight, "failed synthesis must not hand back partial output")
	assert.Nil(t, out.Bias)
}

func TestSynthesizeOrderFollowsDeclaration(t *testing.T) {
	base := baseHead(t, 2, 3,
		[]float32{1, 2, 3, 4, 5, 6},
		[]float32{10, 20, 30})

	out, err := Synthesize(base, []ContributingSet{
		{Category: "C", Classes: []int{2}},
		{Category: "A", Classes: []int{0}},
		{Category: "B", Classes: []int{1}},
	})
	require.NoError(t, err)

	// Output columns in declared order: original columns 2, 0, 1.
	assert.Equal(t, []float32{3, 1, 2, 6, 4, 5}, out.Weight.Data().([]float32))
	assert.Equal(t, []float32{30, 10, 20}, out.Bias.Data().([]float32))
}

func TestSynthesizeValidation(t *testing.T) {
	base := baseHead(t, 2, 2, []float32{1, 2, 3, 4}, []float32{0, 0})
	var mismatch *DimensionMismatchError

	_, err := Synthesize(base, []ContributingSet{{Category: "x", Classes: []int{2}}})
	require.ErrorAs(t, err, &mismatch, "class index beyond N")

	_, err = Synthesize(base, []ContributingSet{{Category: "x", Classes: []int{-1}}})
	assert.ErrorAs(t, err, &mismatch)

	badBias := HeadParameters{
		Weight: tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float32{1, 2, 3, 4})),
		Bias:   tensor.New(tensor.WithShape(3), tensor.WithBacking([]float32{0, 0, 0})),
	}
	_, err = Synthesize(badBias, []ContributingSet{{Category: "x", Classes: []int{0}}})
	assert.ErrorAs(t, err, &mismatch)

	var invalid *InvalidParameterError
	_, err = Synthesize(base, nil)
	assert.ErrorAs(t, err, &invalid)
}

func TestSynthesizeDoesNotMutateBase(t *testing.T) {
	wData := []float32{1, 2, 3, 4}
	bData := []float32{5, 6}
	base := baseHead(t, 2, 2, wData, bData)

	_, err := Synthesize(base, []ContributingSet{{Category: "x", Classes: []int{0, 1}}})
	require.NoError(t, err)

	assert.Equal(t, []float32{1, 2, 3, 4}, base.Weight.Data().([]float32))
	assert.Equal(t, []float32{5, 6}, base.Bias.Data().([]float32))
}

// The end-to-end scenario: 4 fine classes with columns (1,0), (0,1), (1,1),
// (-1,-1); embedding seed 0 with k=2 selects {0,2}; the synthesized column
// is their mean (1.0, 0.5).
func TestEndToEndEmbeddingDerivation(t *testing.T) {
	base := HeadParameters{
		Weight: specWeights(),
		Bias:   tensor.New(tensor.WithShape(4), tensor.WithBacking(make([]float32, 4))),
	}

	ranker, err := BuildRanker(base.Weight)
	require.NoError(t, err)

	sets, err := SelectContributingSets(
		EmbeddingSeedSelector{Ranker: ranker, K: 2},
		[]CoarseCategory{{Name: "rightish", SeedClass: 0}},
	)
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, sets[0].Classes)

	out, err := Synthesize(base, sets)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.0, 0.5}, out.Weight.Data().([]float32))
	assert.Equal(t, []float32{0}, out.Bias.Data().([]float32))
}

func TestCoarseHeadForward(t *testing.T) {
	params := HeadParameters{
		Weight: tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float32{
			1, 0,
			0, 1,
		})),
		Bias: tensor.New(tensor.WithShape(2), tensor.WithBacking([]float32{0.5, -0.5})),
	}

	g := gorgonia.NewGraph()
	head, err := NewCoarseHead(g, params, []string{"left", "right"})
	require.NoError(t, err)
	assert.Equal(t, []string{"left", "right"}, head.Categories())

	feats := tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float32{
		2, 0,
		0, 2,
	}))
	x := gorgonia.NodeFromAny(g, feats, gorgonia.WithName("x"))

	logits, err := head.Forward(x)
	require.NoError(t, err)

	machine := gorgonia.NewTapeMachine(g)
	defer machine.Close()
	require.NoError(t, machine.RunAll())

	assert.Equal(t, []float32{2.5, -0.5, 0.5, 1.5}, logits.Value().Data().([]float32))
}

func TestNewCoarseHeadCategoryCountMismatch(t *testing.T) {
	params := HeadParameters{
		Weight: tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float32{1, 0, 0, 1})),
		Bias:   tensor.New(tensor.WithShape(2), tensor.WithBacking([]float32{0, 0})),
	}
	var mismatch *DimensionMismatchError
	_, err := NewCoarseHead(gorgonia.NewGraph(), params, []string{"only-one"})
	assert.ErrorAs(t, err, &mismatch)
}

func TestArgMax(t *testing.T) {
	scores := tensor.New(tensor.WithShape(3, 3), tensor.WithBacking([]float32{
		0.1, 0.7, 0.2,
		0.5, 0.5, 0.0, // tie: lowest index wins
		0.0, 0.1, 0.9,
	}))
	got, err := ArgMax(scores)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 2}, got)

	var mismatch *DimensionMismatchError
	_, err = ArgMax(tensor.New(tensor.WithShape(3), tensor.WithBacking([]float32{1, 2, 3})))
	assert.ErrorAs(t, err, &mismatch)
}
