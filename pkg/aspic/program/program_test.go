package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/aspic/pkg/aspic/internalerr"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Program
		wantErr bool
	}{
		{"empty program", Program{}, false},
		{"valid fact", Program{PF: []ProbFact{{P: 0.3, Name: "a", Sym: 1}}}, false},
		{"fact probability above one", Program{PF: []ProbFact{{P: 1.2, Name: "a", Sym: 1}}}, true},
		{"negative fact probability", Program{PF: []ProbFact{{P: -0.1, Name: "a", Sym: 1}}}, true},
		{"valid credal fact", Program{CF: []CredalFact{{L: 0.2, U: 0.7, Name: "c", Sym: 1}}}, false},
		{"credal bounds inverted", Program{CF: []CredalFact{{L: 0.7, U: 0.2, Name: "c", Sym: 1}}}, true},
		{"credal upper above one", Program{CF: []CredalFact{{L: 0.2, U: 1.3, Name: "c", Sym: 1}}}, true},
		{"valid disjunction", Program{AD: []AnnotatedDisjunction{{
			P: []float64{0.4, 0.6}, Names: []string{"x", "y"}, Syms: []Symbol{1, 2},
		}}}, false},
		{"disjunction sum off", Program{AD: []AnnotatedDisjunction{{
			P: []float64{0.4, 0.5}, Names: []string{"x", "y"}, Syms: []Symbol{1, 2},
		}}}, true},
		{"disjunction single head", Program{AD: []AnnotatedDisjunction{{
			P: []float64{1}, Names: []string{"x"}, Syms: []Symbol{1},
		}}}, true},
		{"query without literals", Program{Queries: []Query{{}}}, true},
		{"neural AD shape mismatch", Program{NA: []NeuralAD{{
			Names: []string{"x", "y"}, Syms: []Symbol{1},
		}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, internalerr.ErrMalformedProgram)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLearnableIndices(t *testing.T) {
	p := Program{
		PF: []ProbFact{
			{P: 0.1, Name: "a", Sym: 1},
			{P: 0.2, Name: "b", Sym: 2, Learnable: true},
			{P: 0.3, Name: "c", Sym: 3, Learnable: true},
		},
		AD: []AnnotatedDisjunction{
			{P: []float64{0.5, 0.5}, Names: []string{"x", "y"}, Syms: []Symbol{4, 5}, Learnable: true},
			{P: []float64{0.5, 0.5}, Names: []string{"u", "v"}, Syms: []Symbol{6, 7}},
		},
	}
	assert.Equal(t, []int{1, 2}, p.LearnableFacts())
	assert.Equal(t, []int{0}, p.LearnableADs())
	assert.Empty(t, p.LearnableNRs())
	assert.Empty(t, p.LearnableNAs())
}

func TestHashStable(t *testing.T) {
	p := Program{
		Rules: "b :- a.",
		PF:    []ProbFact{{P: 0.3, Name: "a", Sym: 1}},
	}
	h1 := p.Hash()
	h2 := p.Hash()
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	q := Program{
		Rules: "b :- a.",
		PF:    []ProbFact{{P: 0.4, Name: "a", Sym: 1}},
	}
	assert.NotEqual(t, h1, q.Hash(), "probability change must change the hash")
}
