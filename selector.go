package coarsehead

import (
	"fmt"
	"sort"
)

// Policy selects how coarse categories gather their fine-grained classes.
type Policy string

const (
	// PolicyClosure takes every class whose taxonomy concept is a
	// descendant of the category's concept.
	PolicyClosure Policy = "closure"
	// PolicySemanticSeed takes the k classes whose taxonomy concepts have
	// the highest path similarity to the category's seed concept.
	PolicySemanticSeed Policy = "semantic-seed"
	// PolicyEmbeddingSeed takes the k classes ranked most similar to the
	// category's seed class by final-layer cosine similarity.
	PolicyEmbeddingSeed Policy = "embedding-seed"
)

// CoarseCategory is one named slot of the new head. Declaration order is
// significant: it fixes the output-index-to-category mapping.
type CoarseCategory struct {
	Name string `yaml:"name"`
	// Concept is the taxonomy concept name used by the closure and
	// semantic-seed policies. Defaults to Name when empty.
	Concept string `yaml:"concept"`
	// SeedClass is the fine-grained class index used by the
	// embedding-seed policy.
	SeedClass int `yaml:"seed_class"`
}

func (c CoarseCategory) conceptName() string {
	if c.Concept != "" {
		return c.Concept
	}
	return c.Name
}

// ContributingSet is the resolved outcome of selection for one category:
// the fine-grained class indices whose parameters will be averaged.
type ContributingSet struct {
	Category string
	Classes  []int
}

// Selector resolves a single coarse category to its contributing classes.
// The three policies all implement it; pick one at run time via NewSelector.
type Selector interface {
	SelectCategory(cat CoarseCategory) ([]int, error)
}

// SelectContributingSets runs the selector over every category, preserving
// declaration order and rejecting empty results. Sets for different
// categories may overlap; semantically adjacent categories are allowed to
// share classes and nothing deduplicates across them.
func SelectContributingSets(s Selector, categories []CoarseCategory) ([]ContributingSet, error) {
	if len(categories) == 0 {
		return nil, &InvalidParameterError{Param: "categories", Value: 0,
			Detail: "at least one coarse category is required"}
	}
	out := make([]ContributingSet, 0, len(categories))
	for _, cat := range categories {
		classes, err := s.SelectCategory(cat)
		if err != nil {
			return nil, err
		}
		if len(classes) == 0 {
			return nil, &EmptyContributingSetError{Category: cat.Name}
		}
		out = append(out, ContributingSet{Category: cat.Name, Classes: classes})
	}
	return out, nil
}

// ClosureSelector implements PolicyClosure over a taxonomy and the base
// classifier's label vocabulary.
type ClosureSelector struct {
	Taxonomy *Taxonomy
	Vocab    *Vocabulary
}

func (s ClosureSelector) SelectCategory(cat CoarseCategory) ([]int, error) {
	closure, err := s.Taxonomy.Descendants(cat.conceptName())
	if err != nil {
		return nil, err
	}
	return s.Vocab.MapToDomainIDs(closure), nil
}

// SemanticSeedSelector implements PolicySemanticSeed. The seed's own class,
// if present in the vocabulary, always ranks first: an exact concept match
// scores the maximal path similarity 1.0.
type SemanticSeedSelector struct {
	Taxonomy *Taxonomy
	Vocab    *Vocabulary
	K        int
}

func (s SemanticSeedSelector) SelectCategory(cat CoarseCategory) ([]int, error) {
	n := s.Vocab.N()
	if s.K < 1 || s.K > n {
		return nil, &InvalidParameterError{Param: "k", Value: s.K,
			Detail: "neighborhood size must be in [1, N]"}
	}
	seedID, err := s.Taxonomy.Resolve(cat.conceptName())
	if err != nil {
		return nil, err
	}

	sims := make([]float64, n)
	for i := 0; i < n; i++ {
		sims[i], err = s.Taxonomy.PathSimilarity(seedID, s.Vocab.ConceptID(i))
		if err != nil {
			return nil, err
		}
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	// Same order as the embedding ranking: descending similarity,
	// ascending index on ties.
	sort.Slice(idx, func(a, b int) bool {
		if sims[idx[a]] != sims[idx[b]] {
			return sims[idx[a]] > sims[idx[b]]
		}
		return idx[a] < idx[b]
	})
	return idx[:s.K], nil
}

// EmbeddingSeedSelector implements PolicyEmbeddingSeed on a precomputed
// Ranker. The Ranker is built once per base model by the caller and shared
// across category definitions.
type EmbeddingSeedSelector struct {
	Ranker *Ranker
	K      int
}

func (s EmbeddingSeedSelector) SelectCategory(cat CoarseCategory) ([]int, error) {
	return s.Ranker.Neighborhood(cat.SeedClass, s.K)
}

// NewSelector builds the selector for the chosen policy. Dependencies not
// used by the policy may be nil.
func NewSelector(policy Policy, tax *Taxonomy, vocab *Vocabulary, ranker *Ranker, k int) (Selector, error) {
	switch policy {
	case PolicyClosure:
		if tax == nil || vocab == nil {
			return nil, fmt.Errorf("closure policy requires a taxonomy and a vocabulary")
		}
		return ClosureSelector{Taxonomy: tax, Vocab: vocab}, nil
	case PolicySemanticSeed:
		if tax == nil || vocab == nil {
			return nil, fmt.Errorf("semantic-seed policy requires a taxonomy and a vocabulary")
		}
		return SemanticSeedSelector{Taxonomy: tax, Vocab: vocab, K: k}, nil
	case PolicyEmbeddingSeed:
		if ranker == nil {
			return nil, fmt.Errorf("embedding-seed policy requires a similarity ranker")
		}
		return EmbeddingSeedSelector{Ranker: ranker, K: k}, nil
	default:
		return nil, fmt.Errorf("unknown selection policy %q", policy)
	}
}
