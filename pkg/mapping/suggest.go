package mapping

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/agentstation/staffmap/pkg/constants"
)

// Suggestion is a candidate demand label for an unknown supply label.
// Suggestions help curators write rules; the resolver never applies them.
type Suggestion struct {
	Candidate string  `json:"candidate" yaml:"candidate"`
	Score     float64 `json:"score" yaml:"score"`
}

// Suggest ranks candidates for each label by token overlap (Jaccard over
// case-folded word tokens). Labels with no candidate above the minimum
// score are omitted.
func Suggest(labels, candidates []string) map[string][]Suggestion {
	out := make(map[string][]Suggestion)
	candidateTokens := make([]map[string]struct{}, len(candidates))
	for i, c := range candidates {
		candidateTokens[i] = tokens(c)
	}

	for _, label := range labels {
		lt := tokens(label)
		var ranked []Suggestion
		for i, c := range candidates {
			score := jaccard(lt, candidateTokens[i])
			if score >= constants.MinSuggestionScore {
				ranked = append(ranked, Suggestion{Candidate: c, Score: score})
			}
		}
		if len(ranked) == 0 {
			continue
		}
		sort.SliceStable(ranked, func(a, b int) bool {
			if ranked[a].Score != ranked[b].Score {
				return ranked[a].Score > ranked[b].Score
			}
			return ranked[a].Candidate < ranked[b].Candidate
		})
		if len(ranked) > constants.MaxSuggestions {
			ranked = ranked[:constants.MaxSuggestions]
		}
		out[label] = ranked
	}
	return out
}

func tokens(label string) map[string]struct{} {
	folded := cases.Fold().String(label)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var inter int
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
