package coarsehead

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/nlpodyssey/cybertron/pkg/tasks"
	"github.com/nlpodyssey/cybertron/pkg/tasks/textencoding"
	"gorgonia.org/tensor"
)

// FeatureExtractor is how this package sees the frozen base network: an
// opaque function from raw inputs to pooled feature vectors, shape
// (batch, featureDim). Nothing here ever updates the extractor.
type FeatureExtractor interface {
	Features(ctx context.Context, inputs []string) (tensor.Tensor, error)
}

// TextEncoder wraps a Cybertron text encoding model as the feature
// extractor. First use downloads the model into modelsDir.
type TextEncoder struct {
	iface textencoding.Interface
}

const defaultEncoderModel = "sentence-transformers/all-MiniLM-L6-v2"

// NewTextEncoder loads the named model, defaulting to MiniLM which is small
// enough for quick runs.
func NewTextEncoder(modelsDir, modelName string) (*TextEncoder, error) {
	if modelsDir == "" {
		modelsDir = "./models"
	}
	if modelName == "" {
		modelName = defaultEncoderModel
	}

	m, err := tasks.Load[textencoding.Interface](&tasks.Config{
		ModelsDir: modelsDir,
		ModelName: modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", modelName, err)
	}
	return &TextEncoder{iface: m}, nil
}

// Features encodes each input to its pooled sentence vector and stacks the
// results into a (batch, featureDim) tensor.
func (e *TextEncoder) Features(ctx context.Context, inputs []string) (tensor.Tensor, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs to encode")
	}

	var all []float32
	dim := 0
	for _, text := range inputs {
		result, err := e.iface.Encode(ctx, text, 0)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", text, err)
		}
		data := result.Vector.Data().F64()
		if dim == 0 {
			dim = len(data)
		}
		for _, v := range data {
			all = append(all, float32(v))
		}
	}

	return tensor.New(tensor.WithShape(len(inputs), dim), tensor.WithBacking(all)), nil
}

// MockEncoder is a stand-in extractor for tests and offline demos. Each
// input string hashes to a fixed pseudo-random vector, so identical inputs
// always map to identical features.
type MockEncoder struct {
	Dim int
}

func (m *MockEncoder) Features(_ context.Context, inputs []string) (tensor.Tensor, error) {
	if m.Dim < 1 {
		return nil, fmt.Errorf("mock encoder dimension must be positive")
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs to encode")
	}

	data := make([]float32, len(inputs)*m.Dim)
	for b, text := range inputs {
		hash := md5.Sum([]byte(text))
		seed := int64(binary.BigEndian.Uint64(hash[:8]))
		r := rand.New(rand.NewSource(seed))
		for d := 0; d < m.Dim; d++ {
			data[b*m.Dim+d] = r.Float32()*2 - 1
		}
	}

	return tensor.New(tensor.WithShape(len(inputs), m.Dim), tensor.WithBacking(data)), nil
}
