package coarsehead

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func animalTaxonomy(t *testing.T) *Taxonomy {
	t.Helper()
	tax, err := NewTaxonomy([]Concept{
		{ID: "animal", Name: "animal"},
		{ID: "dog", Name: "dog", Hypernyms: []string{"animal"}},
		{ID: "puppy", Name: "puppy", Hypernyms: []string{"dog"}},
		{ID: "terrier", Name: "terrier", Hypernyms: []string{"dog"}},
		{ID: "cat", Name: "cat", Hypernyms: []string{"animal"}},
	})
	require.NoError(t, err)
	return tax
}

func TestDescendantsClosure(t *testing.T) {
	tax := animalTaxonomy(t)

	closure, err := tax.Descendants("dog")
	require.NoError(t, err)

	assert.Equal(t, map[string]struct{}{
		"dog": {}, "puppy": {}, "terrier": {},
	}, closure)
	assert.NotContains(t, closure, "cat")
}

func TestDescendantsUnknownName(t *testing.T) {
	tax := animalTaxonomy(t)

	_, err := tax.Descendants("unicorn")
	var notFound *ConceptNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "unicorn", notFound.Name)
}

func TestTaxonomyValidation(t *testing.T) {
	_, err := NewTaxonomy([]Concept{{ID: "a"}, {ID: "a"}})
	assert.Error(t, err, "duplicate ids must be rejected")

	_, err = NewTaxonomy([]Concept{{ID: "a", Hypernyms: []string{"ghost"}}})
	assert.Error(t, err, "undeclared hypernym must be rejected")

	_, err = NewTaxonomy([]Concept{{ID: ""}})
	assert.Error(t, err, "empty id must be rejected")
}

func TestTaxonomyForwardReference(t *testing.T) {
	// Child declared before its parent.
	tax, err := NewTaxonomy([]Concept{
		{ID: "terrier", Hypernyms: []string{"dog"}},
		{ID: "dog"},
	})
	require.NoError(t, err)

	closure, err := tax.Descendants("dog")
	require.NoError(t, err)
	assert.Contains(t, closure, "terrier")
}

func TestPathSimilarity(t *testing.T) {
	tax := animalTaxonomy(t)

	self, err := tax.PathSimilarity("dog", "dog")
	require.NoError(t, err)
	assert.Equal(t, 1.0, self, "self similarity is the maximum")

	ab, err := tax.PathSimilarity("puppy", "terrier")
	require.NoError(t, err)
	ba, err := tax.PathSimilarity("terrier", "puppy")
	require.NoError(t, err)
	assert.Equal(t, ab, ba, "path similarity is symmetric")
	assert.Equal(t, 1.0/3.0, ab, "puppy-dog-terrier is two hops")

	near, err := tax.PathSimilarity("puppy", "dog")
	require.NoError(t, err)
	far, err := tax.PathSimilarity("puppy", "cat")
	require.NoError(t, err)
	assert.Greater(t, near, far)

	_, err = tax.PathSimilarity("dog", "ghost")
	var notFound *ConceptNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestPathSimilarityDisconnected(t *testing.T) {
	tax, err := NewTaxonomy([]Concept{{ID: "a"}, {ID: "b"}})
	require.NoError(t, err)

	sim, err := tax.PathSimilarity("a", "b")
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestVocabularyMapToDomainIDs(t *testing.T) {
	vocab, err := NewVocabulary([]string{"terrier", "cat", "puppy", "terrier"})
	require.NoError(t, err)
	require.Equal(t, 4, vocab.N())

	ids := vocab.MapToDomainIDs(map[string]struct{}{"terrier": {}, "puppy": {}})
	assert.Equal(t, []int{0, 2, 3}, ids, "ascending index order")

	assert.Empty(t, vocab.MapToDomainIDs(map[string]struct{}{"bird": {}}))
}

func TestVocabularyValidation(t *testing.T) {
	_, err := NewVocabulary(nil)
	assert.Error(t, err)

	_, err = NewVocabulary([]string{"dog", ""})
	assert.Error(t, err)
}
