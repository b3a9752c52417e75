package classifier

import (
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/royalcat/osmgaz/geomodel"
)

type Outcome uint8

const (
	Unknown Outcome = iota
	Ignored
	Matched
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Ignored:
		return "ignored"
	}
	return "unknown"
}

// UnknownTags is an entry of the unknown log: tags no rule fully explained.
// Matched is set when a warn rule matched and Tags holds what it left over.
type UnknownTags struct {
	Tags    map[string]string `json:"tags"`
	Matched map[string]string `json:"matched,omitempty"`
}

func (u UnknownTags) equal(o UnknownTags) bool {
	return maps.Equal(u.Tags, o.Tags) && maps.Equal(u.Matched, o.Matched)
}

// Classifier maps tag sets to type paths. It is safe for concurrent use.
type Classifier struct {
	rules RuleSet
	log   *slog.Logger

	mu      sync.Mutex
	unknown []UnknownTags
}

func New(rules RuleSet, opts ...Option) *Classifier {
	o := loadOptions(opts...)
	return &Classifier{
		rules: rules,
		log:   o.logger.With("component", "classifier"),
	}
}

func (c *Classifier) Rules() RuleSet {
	return c.rules
}

func (c *Classifier) Classify(f *geomodel.Feature) (geomodel.TypePath, Outcome) {
	return c.ClassifyTags(f.Tags)
}

// ClassifyTags returns the type path of the first matching rule.
// The path is nil unless the outcome is Matched.
func (c *Classifier) ClassifyTags(tags map[string]string) (geomodel.TypePath, Outcome) {
	i := c.rules.First(tags)
	if i < 0 {
		residual := stripCosmetic(tags)
		if len(residual) > 0 {
			c.record(UnknownTags{Tags: residual})
			c.log.Debug("unknown toponym tags", "tags", residual)
		}
		return nil, Unknown
	}

	rule := c.rules[i]
	if rule.Ignore() {
		return nil, Ignored
	}

	if rule.Warn {
		residual := stripCosmetic(tags)
		for k := range rule.Match {
			delete(residual, k)
		}
		if len(residual) > 0 {
			c.record(UnknownTags{Tags: residual, Matched: maps.Clone(rule.Match)})
			c.log.Debug("partially matched toponym tags", "tags", residual, "rule", rule.Match, "type", rule.Type.String())
		}
	}

	return rule.Type.Clone(), Matched
}

func (c *Classifier) record(entry UnknownTags) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if slices.ContainsFunc(c.unknown, entry.equal) {
		return
	}
	c.unknown = append(c.unknown, entry)
}

// DrainUnknown returns the unknown log collected so far and clears it.
func (c *Classifier) DrainUnknown() []UnknownTags {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.unknown
	c.unknown = nil
	return out
}

func stripCosmetic(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		if cosmetic(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func cosmetic(key string) bool {
	if slices.Contains(cosmeticKeys, key) {
		return true
	}
	for _, p := range cosmeticPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
