package mapping

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/agentstation/staffmap/internal/matcher"
	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/ledger"
)

// File is the on-disk layout of a rule set.
type File struct {
	Version string `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty"`
	Rules   []Rule `json:"rules" yaml:"rules" toml:"rules"`
}

// Registry is an immutable, ordered set of validated mapping rules.
// Rules apply by descending Priority; equal priorities keep declaration order.
// A changed rule set is a new Registry.
type Registry struct {
	rules       []*compiledRule
	vocabulary  *Vocabulary
	fingerprint string
}

// NewRegistry validates rules and orders them for application. The first
// malformed rule fails the whole registry with a *errors.RuleError.
func NewRegistry(rules ...Rule) (*Registry, error) {
	compiled := make([]*compiledRule, 0, len(rules))
	seen := make(map[string]int, len(rules))

	for i, rule := range rules {
		cr, err := compile(rule, i)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[cr.ID]; dup {
			return nil, errors.NewRuleError(cr.ID, i, "id", fmt.Sprintf("duplicates rule #%d", prev))
		}
		seen[cr.ID] = i
		compiled = append(compiled, cr)
	}

	sort.SliceStable(compiled, func(a, b int) bool {
		return compiled[a].Priority > compiled[b].Priority
	})

	r := &Registry{rules: compiled}
	r.vocabulary = newVocabulary(compiled)
	r.fingerprint = fingerprint(compiled)
	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on error.
func MustNewRegistry(rules ...Rule) *Registry {
	r, err := NewRegistry(rules...)
	if err != nil {
		panic(err)
	}
	return r
}

// LoadRegistry reads a rule file, choosing the format by extension:
// .yaml, .yml, .json or .toml.
func LoadRegistry(path string) (*Registry, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "yml" {
		format = "yaml"
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, errors.NewConfigError("registry", "cannot read rule file", errors.WrapIO("read", path, err))
	}

	r, err := parse(data, format, path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ParseRegistry parses in-memory rule content in "yaml", "json" or "toml".
func ParseRegistry(data []byte, format string) (*Registry, error) {
	return parse(data, strings.ToLower(format), "")
}

func parse(data []byte, format, path string) (*Registry, error) {
	var file File
	switch format {
	case "yaml", "json":
		if err := yaml.UnmarshalWithOptions(data, &file, yaml.DisallowUnknownField()); err != nil {
			return nil, errors.NewConfigError("registry", "cannot parse rule file", errors.WrapParse(format, path, err))
		}
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return nil, errors.NewConfigError("registry", "cannot parse rule file", errors.WrapParse(format, path, err))
		}
	default:
		return nil, errors.NewConfigError("registry", fmt.Sprintf("unsupported rule file format %q", format), nil)
	}
	return NewRegistry(file.Rules...)
}

// Rules returns copies of the rules in application order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, 0, len(r.rules))
	for _, cr := range r.rules {
		out = append(out, cr.Clone())
	}
	return out
}

// Rule returns the rule with the given ID.
func (r *Registry) Rule(id string) (Rule, bool) {
	for _, cr := range r.rules {
		if cr.ID == id {
			return cr.Clone(), true
		}
	}
	return Rule{}, false
}

// Len returns the number of rules.
func (r *Registry) Len() int {
	return len(r.rules)
}

// Vocabulary returns the labels the rule set knows about.
func (r *Registry) Vocabulary() *Vocabulary {
	return r.vocabulary
}

// Fingerprint is a stable hash of the ordered rule set.
func (r *Registry) Fingerprint() string {
	return r.fingerprint
}

// File returns the registry in its serializable layout.
func (r *Registry) File() File {
	return File{Rules: r.Rules()}
}

// LabelTag classifies a label against the rule vocabulary.
type LabelTag string

const (
	// Known labels are referenced by at least one rule.
	Known LabelTag = "known"
	// Unknown labels are referenced by no rule.
	Unknown LabelTag = "unknown"
)

// Vocabulary is the closed set of labels a registry references, per side.
type Vocabulary struct {
	supply labelSet
	demand labelSet
}

type labelSet struct {
	literals map[string]struct{}
	patterns []matcher.Matcher
}

func (s labelSet) has(label string) bool {
	if _, ok := s.literals[label]; ok {
		return true
	}
	for _, p := range s.patterns {
		if p.Match(label) {
			return true
		}
	}
	return false
}

func newVocabulary(rules []*compiledRule) *Vocabulary {
	v := &Vocabulary{
		supply: labelSet{literals: make(map[string]struct{})},
		demand: labelSet{literals: make(map[string]struct{})},
	}
	add := func(set *labelSet, m *matcher.Set) {
		for i := 0; i < m.Len(); i++ {
			p := m.At(i)
			if p.Type() == matcher.Literal {
				set.literals[p.Pattern()] = struct{}{}
			} else {
				set.patterns = append(set.patterns, p)
			}
		}
	}
	for _, cr := range rules {
		add(&v.supply, cr.supply)
		add(&v.demand, cr.demand)
	}
	return v
}

// Tag reports whether a label is known on the given side.
func (v *Vocabulary) Tag(provenance ledger.Provenance, label string) LabelTag {
	set := v.supply
	if provenance == ledger.Demand {
		set = v.demand
	}
	if set.has(label) {
		return Known
	}
	return Unknown
}

// Labels returns the literal labels referenced on a side, sorted.
func (v *Vocabulary) Labels(provenance ledger.Provenance) []string {
	set := v.supply
	if provenance == ledger.Demand {
		set = v.demand
	}
	labels := make([]string, 0, len(set.literals))
	for label := range set.literals {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func fingerprint(rules []*compiledRule) string {
	ordered := make([]Rule, 0, len(rules))
	for _, cr := range rules {
		ordered = append(ordered, cr.Rule)
	}
	// json sorts map keys, so When conditions hash stably.
	data, err := json.Marshal(ordered)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}
