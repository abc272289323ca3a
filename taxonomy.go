package coarsehead

import "fmt"

// Concept is one node of the is-a taxonomy. Hypernyms lists the ids of its
// parents ("terrier" lists "dog"). A name may be shared by several concepts;
// the first declaration is the primary sense.
type Concept struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Hypernyms []string `yaml:"hypernyms"`
}

// Taxonomy wraps a hypernym/hyponym lexical graph and answers descendant and
// path-similarity queries. Built once, immutable afterwards.
type Taxonomy struct {
	byName    map[string][]string
	hypernyms map[string][]string
	hyponyms  map[string][]string
}

// NewTaxonomy builds the index from a flat concept list. Hypernym references
// may point forward; every referenced id must be declared somewhere in the
// list.
func NewTaxonomy(concepts []Concept) (*Taxonomy, error) {
	t := &Taxonomy{
		byName:    make(map[string][]string, len(concepts)),
		hypernyms: make(map[string][]string, len(concepts)),
		hyponyms:  make(map[string][]string, len(concepts)),
	}

	for _, c := range concepts {
		if c.ID == "" {
			return nil, fmt.Errorf("taxonomy concept with empty id")
		}
		if _, dup := t.hypernyms[c.ID]; dup {
			return nil, fmt.Errorf("duplicate taxonomy concept id %q", c.ID)
		}
		name := c.Name
		if name == "" {
			name = c.ID
		}
		t.byName[name] = append(t.byName[name], c.ID)
		t.hypernyms[c.ID] = append([]string(nil), c.Hypernyms...)
	}

	for _, c := range concepts {
		for _, parent := range c.Hypernyms {
			if _, ok := t.hypernyms[parent]; !ok {
				return nil, fmt.Errorf("concept %q references undeclared hypernym %q", c.ID, parent)
			}
			t.hyponyms[parent] = append(t.hyponyms[parent], c.ID)
		}
	}

	return t, nil
}

// Resolve maps a surface name to its primary-sense concept id.
func (t *Taxonomy) Resolve(name string) (string, error) {
	ids, ok := t.byName[name]
	if !ok || len(ids) == 0 {
		return "", &ConceptNotFoundError{Name: name}
	}
	return ids[0], nil
}

// Contains reports whether id is a declared concept.
func (t *Taxonomy) Contains(id string) bool {
	_, ok := t.hypernyms[id]
	return ok
}

// Descendants resolves name and returns the transitive hyponym closure,
// including the resolved concept itself.
func (t *Taxonomy) Descendants(name string) (map[string]struct{}, error) {
	root, err := t.Resolve(name)
	if err != nil {
		return nil, err
	}

	closure := map[string]struct{}{root: {}}
	queue := []string{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range t.hyponyms[id] {
			if _, seen := closure[child]; seen {
				continue
			}
			closure[child] = struct{}{}
			queue = append(queue, child)
		}
	}
	return closure, nil
}

// PathSimilarity is 1/(1+d) where d is the shortest path between the two
// concepts over is-a edges. Identical concepts score 1.0, the maximum.
// Concepts with no connecting path score 0 so they can never outrank a
// connected concept in a neighborhood.
func (t *Taxonomy) PathSimilarity(idA, idB string) (float64, error) {
	if !t.Contains(idA) {
		return 0, &ConceptNotFoundError{Name: idA}
	}
	if !t.Contains(idB) {
		return 0, &ConceptNotFoundError{Name: idB}
	}
	if idA == idB {
		return 1.0, nil
	}

	// BFS treating hypernym links as undirected.
	dist := map[string]int{idA: 0}
	queue := []string{idA}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range append(append([]string(nil), t.hypernyms[id]...), t.hyponyms[id]...) {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[id] + 1
			if next == idB {
				return 1.0 / float64(1+dist[next]), nil
			}
			queue = append(queue, next)
		}
	}
	return 0, nil
}

// Vocabulary is the fixed lookup table from fine-grained class index to the
// taxonomy concept id the base classifier's label set associates with it.
// Supplied once at load time, size N, never rebuilt per query.
type Vocabulary struct {
	concepts []string
}

// NewVocabulary validates and freezes the index-to-concept table.
func NewVocabulary(conceptIDs []string) (*Vocabulary, error) {
	if len(conceptIDs) == 0 {
		return nil, fmt.Errorf("vocabulary must map at least one class")
	}
	for i, id := range conceptIDs {
		if id == "" {
			return nil, fmt.Errorf("vocabulary entry %d has empty concept id", i)
		}
	}
	return &Vocabulary{concepts: append([]string(nil), conceptIDs...)}, nil
}

// N is the fine-grained class count.
func (v *Vocabulary) N() int { return len(v.concepts) }

// ConceptID returns the concept associated with fine class i.
func (v *Vocabulary) ConceptID(i int) string { return v.concepts[i] }

// MapToDomainIDs returns, in ascending order, every fine class index whose
// associated concept appears in conceptIDs.
func (v *Vocabulary) MapToDomainIDs(conceptIDs map[string]struct{}) []int {
	var out []int
	for i, id := range v.concepts {
		if _, ok := conceptIDs[id]; ok {
			out = append(out, i)
		}
	}
	return out
}
