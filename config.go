package coarsehead

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// VocabEntry ties one fine-grained class label to its taxonomy concept id.
// Slice position is the class index, so order matters.
type VocabEntry struct {
	Label   string `yaml:"label"`
	Concept string `yaml:"concept"`
}

// Config is the declarative surface consumed by the demo binary: the
// taxonomy, the base classifier's label vocabulary, and the coarse-category
// definition. The library APIs take the built values, not this struct.
type Config struct {
	Taxonomy   []Concept        `yaml:"taxonomy"`
	Vocabulary []VocabEntry     `yaml:"vocabulary"`
	Policy     Policy           `yaml:"policy"`
	K          int              `yaml:"k"`
	Categories []CoarseCategory `yaml:"categories"`
}

// LoadConfig reads and decodes a YAML config file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Labels returns the fine-grained class labels in index order.
func (c *Config) Labels() []string {
	out := make([]string, len(c.Vocabulary))
	for i, e := range c.Vocabulary {
		out[i] = e.Label
	}
	return out
}

// CategoryNames returns the coarse category names in declared order.
func (c *Config) CategoryNames() []string {
	out := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		out[i] = cat.Name
	}
	return out
}

// Build validates the config and constructs the taxonomy and vocabulary.
// Every vocabulary concept must exist in the taxonomy when a taxonomy-based
// policy is configured.
func (c *Config) Build() (*Taxonomy, *Vocabulary, error) {
	if len(c.Categories) == 0 {
		return nil, nil, fmt.Errorf("config declares no coarse categories")
	}

	tax, err := NewTaxonomy(c.Taxonomy)
	if err != nil {
		return nil, nil, err
	}

	conceptIDs := make([]string, len(c.Vocabulary))
	for i, e := range c.Vocabulary {
		conceptIDs[i] = e.Concept
	}
	vocab, err := NewVocabulary(conceptIDs)
	if err != nil {
		return nil, nil, err
	}

	if c.Policy == PolicyClosure || c.Policy == PolicySemanticSeed {
		for i, e := range c.Vocabulary {
			if !tax.Contains(e.Concept) {
				return nil, nil, fmt.Errorf("vocabulary entry %d (%q) references concept %q not in the taxonomy",
					i, e.Label, e.Concept)
			}
		}
	}

	return tax, vocab, nil
}
