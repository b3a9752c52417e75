package classifier

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/royalcat/osmgaz/geomodel"
)

//go:embed ontology.yaml
var defaultOntology string

const defaultRoot = "OSM"

type ontologyDocument struct {
	Root    string          `yaml:"root"`
	Classes []ontologyClass `yaml:"classes"`
}

type ontologyClass struct {
	ID            string    `yaml:"id"`
	SubclassOf    yaml.Node `yaml:"subclass_of"`
	Label         string    `yaml:"label"`
	DefinedBy     yaml.Node `yaml:"defined_by"`
	ExtraSettings yaml.Node `yaml:"extra_settings"`
}

type extraSettings struct {
	Warn bool `yaml:"warn"`
}

// DefaultRuleSet builds the rule set of the embedded ontology.
func DefaultRuleSet(log *slog.Logger) (RuleSet, error) {
	return LoadRuleSet(strings.NewReader(defaultOntology), log)
}

func LoadRuleSetFile(path string, log *slog.Logger) (RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ontology: %w", err)
	}
	defer f.Close()
	return LoadRuleSet(f, log)
}

func LoadRuleSet(r io.Reader, log *slog.Logger) (RuleSet, error) {
	rules, err := LoadOntology(r, log)
	if err != nil {
		return nil, err
	}
	return NewRuleSet(rules), nil
}

// LoadOntology flattens an ontology document into rules in traversal order.
// Malformed class definitions are logged and skipped.
func LoadOntology(r io.Reader, log *slog.Logger) ([]Rule, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "ontology")

	var doc ontologyDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode ontology: %w", err)
	}
	root := doc.Root
	if root == "" {
		root = defaultRoot
	}

	children := map[string][]*ontologyClass{}
	seen := map[string]bool{}
	for i := range doc.Classes {
		class := &doc.Classes[i]
		if class.ID == "" {
			log.Warn("skipping ontology class without id", "index", i)
			continue
		}
		if seen[class.ID] {
			log.Warn("skipping duplicate ontology class", "id", class.ID)
			continue
		}
		seen[class.ID] = true

		parents, err := scalarList(&class.SubclassOf)
		if err != nil {
			log.Warn("skipping ontology class with malformed parents", "id", class.ID, "error", err)
			continue
		}
		for _, p := range parents {
			children[p] = append(children[p], class)
		}
	}

	b := &ruleBuilder{log: log, children: children, visiting: map[string]bool{root: true}}
	b.walk(root, nil)
	return b.rules, nil
}

type ruleBuilder struct {
	log      *slog.Logger
	children map[string][]*ontologyClass
	visiting map[string]bool
	rules    []Rule
}

func (b *ruleBuilder) walk(id string, path geomodel.TypePath) {
	for _, class := range b.children[id] {
		if b.visiting[class.ID] {
			b.log.Warn("ontology cycle", "parent", id, "class", class.ID)
			continue
		}

		classPath := path
		if label := strings.TrimSpace(class.Label); label != "" {
			classPath = append(path.Clone(), strings.ToUpper(label))
		}

		b.visiting[class.ID] = true
		b.walk(class.ID, classPath)
		delete(b.visiting, class.ID)

		b.addRules(class, classPath)
	}
}

func (b *ruleBuilder) addRules(class *ontologyClass, path geomodel.TypePath) {
	if class.DefinedBy.IsZero() || class.DefinedBy.ShortTag() == "!!null" {
		return
	}

	defs, err := predicates(&class.DefinedBy)
	if err != nil {
		b.log.Warn("skipping malformed ontology definition", "id", class.ID, "error", err)
		return
	}

	var settings extraSettings
	if err := decodeMaybeJSON(&class.ExtraSettings, &settings); err != nil {
		b.log.Warn("ignoring malformed extra settings", "id", class.ID, "error", err)
		settings = extraSettings{}
	}

	for _, def := range defs {
		b.rules = append(b.rules, Rule{
			Match: def,
			Type:  path.Clone(),
			Warn:  settings.Warn,
		})
	}
}

func scalarList(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: expected scalar", c.Line)
			}
			out = append(out, c.Value)
		}
		return out, nil
	}
	return nil, fmt.Errorf("line %d: expected scalar or list", n.Line)
}

// predicates reads a single mapping, a list of mappings or a JSON document holding either.
func predicates(n *yaml.Node) ([]map[string]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		doc, err := parseEmbedded(n.Value)
		if err != nil {
			return nil, err
		}
		if doc.Kind == yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: definition is a plain string", n.Line)
		}
		return predicates(doc)
	case yaml.MappingNode:
		m, err := predicate(n)
		if err != nil {
			return nil, err
		}
		return []map[string]string{m}, nil
	case yaml.SequenceNode:
		out := make([]map[string]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("line %d: expected mapping", c.Line)
			}
			m, err := predicate(c)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	}
	return nil, fmt.Errorf("line %d: unexpected definition", n.Line)
}

func predicate(n *yaml.Node) (map[string]string, error) {
	if len(n.Content) == 0 {
		return nil, fmt.Errorf("line %d: empty predicate", n.Line)
	}
	m := make(map[string]string, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: predicate values must be scalars", k.Line)
		}
		m[k.Value] = v.Value
	}
	return m, nil
}

func decodeMaybeJSON(n *yaml.Node, out any) error {
	switch n.Kind {
	case 0:
		return nil
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" || strings.TrimSpace(n.Value) == "" {
			return nil
		}
		doc, err := parseEmbedded(n.Value)
		if err != nil {
			return err
		}
		return doc.Decode(out)
	}
	return n.Decode(out)
}

// JSON is a subset of YAML so embedded JSON strings go through the same decoder.
func parseEmbedded(s string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty embedded document")
	}
	return doc.Content[0], nil
}
