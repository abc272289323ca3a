package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"coarsehead"
)

// The demo derives a coarse classifier from a fine-grained one without any
// training step. The fine-grained head is a label-embedding classifier: each
// class column is the encoder's vector for the class label, so with a real
// encoder the base model is a working zero-shot classifier and the derived
// coarse head inherits that behavior.
func main() {
	var (
		configPath = flag.String("config", "cmd/coarsehead/config.yaml", "taxonomy/vocabulary/policy config")
		useReal    = flag.Bool("real", false, "use a Cybertron encoder instead of the mock")
		modelsDir  = flag.String("models-dir", "./models", "model download directory")
		modelName  = flag.String("model", "", "encoder model name (default MiniLM)")
		mockDim    = flag.Int("mock-dim", 64, "feature dimension of the mock encoder")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := context.Background()

	cfg, err := coarsehead.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	tax, vocab, err := cfg.Build()
	if err != nil {
		log.Fatal().Err(err).Msg("build taxonomy and vocabulary")
	}
	log.Info().Int("fine_classes", vocab.N()).Int("coarse_categories", len(cfg.Categories)).
		Str("policy", string(cfg.Policy)).Msg("configuration loaded")

	var encoder coarsehead.FeatureExtractor
	if *useReal {
		enc, err := coarsehead.NewTextEncoder(*modelsDir, *modelName)
		if err != nil {
			log.Fatal().Err(err).Msg("load encoder")
		}
		encoder = enc
	} else {
		encoder = &coarsehead.MockEncoder{Dim: *mockDim}
	}

	base, err := labelEmbeddingHead(ctx, encoder, cfg.Labels())
	if err != nil {
		log.Fatal().Err(err).Msg("build base head")
	}
	featureDim, n, _ := base.Dims()
	log.Info().Int("feature_dim", featureDim).Int("classes", n).Msg("base final layer ready")

	// The ranker is computed once per base model and shared by every
	// category definition against it.
	ranker, err := coarsehead.BuildRanker(base.Weight)
	if err != nil {
		log.Fatal().Err(err).Msg("build similarity ranker")
	}

	selector, err := coarsehead.NewSelector(cfg.Policy, tax, vocab, ranker, cfg.K)
	if err != nil {
		log.Fatal().Err(err).Msg("configure selector")
	}
	sets, err := coarsehead.SelectContributingSets(selector, cfg.Categories)
	if err != nil {
		log.Fatal().Err(err).Msg("select contributing classes")
	}
	labels := cfg.Labels()
	for _, set := range sets {
		names := make([]string, len(set.Classes))
		for i, cls := range set.Classes {
			names[i] = labels[cls]
		}
		log.Info().Str("category", set.Category).Strs("classes", names).Msg("contributing set")
	}

	synthesized, err := coarsehead.Synthesize(base, sets)
	if err != nil {
		log.Fatal().Err(err).Msg("synthesize coarse head")
	}

	inputs := flag.Args()
	if len(inputs) == 0 {
		inputs = labels // classify the fine labels themselves
	}
	features, err := encoder.Features(ctx, inputs)
	if err != nil {
		log.Fatal().Err(err).Msg("encode inputs")
	}

	g := gorgonia.NewGraph()
	head, err := coarsehead.NewCoarseHead(g, synthesized, cfg.CategoryNames())
	if err != nil {
		log.Fatal().Err(err).Msg("assemble coarse head")
	}

	x := gorgonia.NodeFromAny(g, features, gorgonia.WithName("Inputs"))
	logits, err := head.Forward(x)
	if err != nil {
		log.Fatal().Err(err).Msg("forward")
	}
	probs, err := gorgonia.SoftMax(logits)
	if err != nil {
		log.Fatal().Err(err).Msg("softmax")
	}

	machine := gorgonia.NewTapeMachine(g)
	defer machine.Close()
	if err := machine.RunAll(); err != nil {
		log.Fatal().Err(err).Msg("run inference")
	}

	winners, err := coarsehead.ArgMax(probs.Value().(tensor.Tensor))
	if err != nil {
		log.Fatal().Err(err).Msg("argmax")
	}
	categories := head.Categories()
	probData := probs.Value().Data().([]float32)
	c := len(categories)
	for i, input := range inputs {
		log.Info().Str("input", input).
			Str("category", categories[winners[i]]).
			Float32("probability", probData[i*c+winners[i]]).
			Msg("classified")
	}
}

// labelEmbeddingHead builds a synthetic fine-grained final layer whose class
// columns are the encoder's vectors for the class labels, bias zero. Stands
// in for a trained classifier's final layer; the derivation pipeline only
// ever sees the parameters.
func labelEmbeddingHead(ctx context.Context, enc coarsehead.FeatureExtractor, labels []string) (coarsehead.HeadParameters, error) {
	feats, err := enc.Features(ctx, labels)
	if err != nil {
		return coarsehead.HeadParameters{}, err
	}

	shape := feats.Shape()
	n, dim := shape[0], shape[1]
	rows := feats.Data().([]float32)

	// (N, dim) rows -> (dim, N) columns
	w := make([]float32, dim*n)
	for i := 0; i < n; i++ {
		for d := 0; d < dim; d++ {
			w[d*n+i] = rows[i*dim+d]
		}
	}

	return coarsehead.HeadParameters{
		Weight: tensor.New(tensor.WithShape(dim, n), tensor.WithBacking(w)),
		Bias:   tensor.New(tensor.WithShape(n), tensor.WithBacking(make([]float32, n))),
	}, nil
}
