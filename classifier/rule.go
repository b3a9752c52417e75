package classifier

import (
	"cmp"
	"slices"

	"github.com/royalcat/osmgaz/geomodel"
)

// Rule maps a tag predicate to a type path. A rule without a type path is an
// ignore rule: the tags are recognized but do not describe a toponym.
type Rule struct {
	Match map[string]string `json:"rules"`
	Type  geomodel.TypePath `json:"type,omitempty"`
	Warn  bool              `json:"warn,omitempty"`
}

func (r Rule) Ignore() bool {
	return len(r.Type) == 0
}

// Matches reports whether every predicate pair is present in tags. Extra tags are ignored.
func (r Rule) Matches(tags map[string]string) bool {
	for k, v := range r.Match {
		tv, ok := tags[k]
		if !ok || tv != v {
			return false
		}
	}
	return true
}

// RuleSet is an ordered rule list, the first matching rule wins.
type RuleSet []Rule

// NewRuleSet orders rules most specific first and puts the static ignore rules in front of them.
func NewRuleSet(rules []Rule) RuleSet {
	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, func(a, b Rule) int {
		if c := cmp.Compare(len(b.Match), len(a.Match)); c != 0 {
			return c
		}
		return cmp.Compare(len(b.Type), len(a.Type))
	})

	set := make(RuleSet, 0, len(staticIgnoreRules)+len(sorted))
	for _, match := range staticIgnoreRules {
		set = append(set, Rule{Match: match})
	}
	return append(set, sorted...)
}

// First returns the index of the first rule matching tags, -1 if none does.
func (rs RuleSet) First(tags map[string]string) int {
	for i := range rs {
		if rs[i].Matches(tags) {
			return i
		}
	}
	return -1
}
