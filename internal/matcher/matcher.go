// Package matcher resolves the label patterns used in mapping rules.
// A rule label is either a literal category name, a shell-style glob
// (*, ?, []) or an anchored regular expression prefixed with "re:".
// Pattern matching is case-insensitive through Unicode case folding;
// literal labels always match exactly.
package matcher

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// RegexPrefix marks a label as a regular expression.
const RegexPrefix = "re:"

// PatternType represents the type of pattern matching to use.
type PatternType int

const (
	// Literal matches a single label exactly.
	Literal PatternType = iota
	// Glob uses shell-style glob patterns (*, ?, []).
	Glob
	// Regex uses regular expressions.
	Regex
)

// String returns a string representation of the PatternType.
func (pt PatternType) String() string {
	switch pt {
	case Literal:
		return "literal"
	case Glob:
		return "glob"
	case Regex:
		return "regex"
	default:
		return "unknown"
	}
}

// Matcher matches category labels against one rule pattern.
type Matcher interface {
	// Match checks if the label matches the pattern.
	Match(label string) bool
	// Expand returns the labels that match, sorted.
	Expand(labels []string) []string
	// Pattern returns the original pattern string.
	Pattern() string
	// Type returns the pattern type being used.
	Type() PatternType
}

type matcher struct {
	pattern     string
	patternType PatternType
	compiled    *regexp.Regexp
}

// New parses a rule label into a Matcher.
func New(pattern string) (Matcher, error) {
	m := &matcher{
		pattern:     pattern,
		patternType: Detect(pattern),
	}

	var expr string
	switch m.patternType {
	case Literal:
		return m, nil
	case Glob:
		expr = GlobToRegex(fold(pattern))
	case Regex:
		expr = strings.TrimPrefix(pattern, RegexPrefix)
		if !strings.HasPrefix(expr, "^") {
			expr = "^" + expr
		}
		if !strings.HasSuffix(expr, "$") {
			expr += "$"
		}
		expr = "(?i)" + expr
	}

	if strings.TrimSpace(strings.TrimPrefix(pattern, RegexPrefix)) == "" {
		return nil, fmt.Errorf("empty %s pattern", m.patternType)
	}

	compiled, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid %s pattern %q: %w", m.patternType, pattern, err)
	}
	m.compiled = compiled
	return m, nil
}

// MustNew creates a new Matcher and panics if there's an error.
func MustNew(pattern string) Matcher {
	m, err := New(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Match checks if the label matches the pattern.
func (m *matcher) Match(label string) bool {
	switch m.patternType {
	case Literal:
		return label == m.pattern
	case Glob:
		return m.compiled.MatchString(fold(label))
	case Regex:
		return m.compiled.MatchString(label)
	default:
		return false
	}
}

// Expand returns the labels that match, sorted. A literal pattern expands to
// itself when present.
func (m *matcher) Expand(labels []string) []string {
	results := make([]string, 0)
	for _, label := range labels {
		if m.Match(label) {
			results = append(results, label)
		}
	}
	sort.Strings(results)
	return results
}

// Pattern returns the original pattern string.
func (m *matcher) Pattern() string {
	return m.pattern
}

// Type returns the pattern type being used.
func (m *matcher) Type() PatternType {
	return m.patternType
}

// fold applies Unicode case folding. A Caser is stateful, so one is made per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Detect reports how a rule label will be interpreted.
func Detect(pattern string) PatternType {
	if strings.HasPrefix(pattern, RegexPrefix) {
		return Regex
	}
	if IsGlobPattern(pattern) {
		return Glob
	}
	return Literal
}

// IsGlobPattern checks if a string contains glob metacharacters.
func IsGlobPattern(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// IsPattern checks if a rule label needs expansion.
func IsPattern(pattern string) bool {
	return Detect(pattern) != Literal
}

// GlobToRegex converts a glob pattern to an anchored regex pattern.
// Unlike path globs, * also matches "/" since labels are not paths.
func GlobToRegex(glob string) string {
	var regex strings.Builder
	regex.WriteString("^")

	for i := 0; i < len(glob); i++ {
		switch glob[i] {
		case '*':
			regex.WriteString(".*")
		case '?':
			regex.WriteString(".")
		case '[':
			j := i + 1
			if j < len(glob) && (glob[j] == '!' || glob[j] == '^') {
				regex.WriteString("[^")
				j++
			} else {
				regex.WriteString("[")
			}

			for ; j < len(glob) && glob[j] != ']'; j++ {
				if glob[j] == '\\' {
					regex.WriteByte(glob[j])
					j++
					if j < len(glob) {
						regex.WriteByte(glob[j])
					}
				} else {
					regex.WriteByte(glob[j])
				}
			}

			if j < len(glob) {
				regex.WriteString("]")
				i = j
			}
		case '\\':
			if i+1 < len(glob) {
				i++
				regex.WriteString(regexp.QuoteMeta(string(glob[i])))
			}
		default:
			regex.WriteString(regexp.QuoteMeta(string(glob[i])))
		}
	}

	regex.WriteString("$")
	return regex.String()
}

// Set is an ordered collection of rule label matchers.
type Set struct {
	matchers []Matcher
}

// NewSet compiles every pattern, failing on the first invalid one.
func NewSet(patterns []string) (*Set, error) {
	s := &Set{matchers: make([]Matcher, 0, len(patterns))}
	for _, pattern := range patterns {
		m, err := New(pattern)
		if err != nil {
			return nil, err
		}
		s.matchers = append(s.matchers, m)
	}
	return s, nil
}

// Match returns true if any pattern matches.
func (s *Set) Match(label string) bool {
	for _, m := range s.matchers {
		if m.Match(label) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns in the set.
func (s *Set) Len() int {
	return len(s.matchers)
}

// At returns the matcher at position i.
func (s *Set) At(i int) Matcher {
	return s.matchers[i]
}
