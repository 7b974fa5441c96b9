package mapping_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/staffmap/pkg/mapping"
)

func TestSuggest(t *testing.T) {
	got := mapping.Suggest(
		[]string{"Night Charge Nurse", "Pharmacist"},
		[]string{"Charge Nurse", "Nurse", "Unit Clerk", "NURSE night"},
	)

	assert.NotContains(t, got, "Pharmacist")
	ranked := got["Night Charge Nurse"]
	assert.Len(t, ranked, 2, "a single shared token out of three is below the minimum score")
	assert.Equal(t, "Charge Nurse", ranked[0].Candidate)
	assert.InDelta(t, 2.0/3.0, ranked[0].Score, 1e-12)
	assert.Equal(t, "NURSE night", ranked[1].Candidate, "tokens are case-folded")
}
