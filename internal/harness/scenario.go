package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/nestq/internal/engine"
	"github.com/roach88/nestq/internal/mapping"
)

// Scenario defines a conformance test scenario: a mapping, the documents to
// index and the queries to run against them.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Mapping is a path to a mapping file, relative to the scenario file,
	// or an inline mapping with a properties tree.
	Mapping yaml.Node `yaml:"mapping"`

	// Documents are indexed in order before any step runs.
	Documents []SourceDoc `yaml:"documents"`

	// Steps run in order against the indexed documents.
	Steps []Step `yaml:"steps"`

	// dir is the directory the scenario was loaded from.
	dir string
}

// SourceDoc is one document to index.
type SourceDoc struct {
	ID     string         `yaml:"_id"`
	Source map[string]any `yaml:"_source"`
}

// Step compiles and runs one query.
type Step struct {
	Name string `yaml:"name"`

	// Query is CUE text or an inline YAML object.
	Query yaml.Node `yaml:"query"`

	// Size overrides the request size when positive.
	Size int `yaml:"size,omitempty"`

	Expect Expect `yaml:"expect"`
}

// Expect lists what a step must produce. Unset fields are not checked.
type Expect struct {
	Hits           []string            `yaml:"hits,omitempty"`
	Total          *int                `yaml:"total,omitempty"`
	Scores         map[string]float64  `yaml:"scores,omitempty"`
	MatchedQueries map[string][]string `yaml:"matched_queries,omitempty"`
	Explain        string              `yaml:"explain,omitempty"`
	Error          string              `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	scenario.dir = filepath.Dir(path)
	return scenario, nil
}

// ParseScenario parses scenario YAML. Relative mapping paths resolve
// against the working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	switch s.Mapping.Kind {
	case yaml.ScalarNode, yaml.MappingNode:
	case 0:
		return fmt.Errorf("mapping is required")
	default:
		return fmt.Errorf("mapping must be a file path or a mapping object")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Documents))
	for i, doc := range s.Documents {
		if doc.ID == "" {
			return fmt.Errorf("documents[%d]: _id is required", i)
		}
		if seen[doc.ID] {
			return fmt.Errorf("documents[%d]: duplicate _id %q", i, doc.ID)
		}
		seen[doc.ID] = true
		if doc.Source == nil {
			return fmt.Errorf("documents[%d]: _source is required", i)
		}
	}

	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required", i)
		}
		if step.Query.Kind == 0 {
			return fmt.Errorf("steps[%d]: query is required", i)
		}
		if step.Expect.Error != "" && (len(step.Expect.Hits) > 0 || step.Expect.Total != nil || len(step.Expect.Scores) > 0) {
			return fmt.Errorf("steps[%d]: expect.error cannot be combined with hit expectations", i)
		}
	}
	return nil
}

// loadMapping resolves the scenario's mapping.
func (s *Scenario) loadMapping() (*mapping.Mapping, error) {
	if s.Mapping.Kind == yaml.ScalarNode {
		path := s.Mapping.Value
		if !filepath.IsAbs(path) && s.dir != "" {
			path = filepath.Join(s.dir, path)
		}
		return mapping.LoadFile(path)
	}

	data, err := yaml.Marshal(&s.Mapping)
	if err != nil {
		return nil, fmt.Errorf("encode inline mapping: %w", err)
	}
	return mapping.Parse(data)
}

// documents converts the scenario's documents for indexing.
func (s *Scenario) documents() ([]engine.Document, error) {
	docs := make([]engine.Document, len(s.Documents))
	for i, d := range s.Documents {
		source, err := json.Marshal(d.Source)
		if err != nil {
			return nil, fmt.Errorf("documents[%d]: %w", i, err)
		}
		docs[i] = engine.Document{ID: d.ID, Source: source}
	}
	return docs, nil
}

// querySource returns the step's query as CUE source.
func (st *Step) querySource() ([]byte, error) {
	if st.Query.Kind == yaml.ScalarNode {
		return []byte(st.Query.Value), nil
	}
	var v any
	if err := st.Query.Decode(&v); err != nil {
		return nil, fmt.Errorf("step %s: decode query: %w", st.Name, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("step %s: encode query: %w", st.Name, err)
	}
	return data, nil
}
