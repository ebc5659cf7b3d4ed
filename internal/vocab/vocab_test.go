package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimed(r Result) []string {
	return r.Stream()
}

func slots(r Result) []int {
	out := make([]int, len(r.Tokens))
	for i, occ := range r.Tokens {
		out[i] = occ.Slot
	}
	return out
}

func TestTokenize_Simple(t *testing.T) {
	r := Tokenize("the cat sat")

	assert.Equal(t, []string{"the", "cat", "sat"}, claimed(r))
	assert.Equal(t, []int{0, 1, 2}, slots(r))
	assert.Equal(t, 3, r.TotalSlots)
	assert.Equal(t, []string{"the"}, r.Starters)
	assert.Equal(t, 11, r.SourceChars)
	assert.Equal(t, 3, r.Unique())
}

func TestTokenize_Normalization(t *testing.T) {
	r := Tokenize("The cat, sat!")

	assert.Equal(t, []string{"the", "cat", "sat"}, claimed(r))
	assert.Equal(t, []int{0, 1, 2}, slots(r))
	assert.Equal(t, 3, r.TotalSlots)
}

func TestTokenize_InteriorPunctuationKept(t *testing.T) {
	r := Tokenize("don't stop co-op")

	assert.Equal(t, []string{"don't", "stop", "co-op"}, claimed(r))
}

func TestTokenize_PunctuationFieldKeepsSlot(t *testing.T) {
	r := Tokenize("the -- cat")

	assert.Equal(t, []string{"the", "cat"}, claimed(r))
	assert.Equal(t, []int{0, 2}, slots(r))
	assert.Equal(t, 3, r.TotalSlots)
}

func TestTokenize_LineBreakConsumesSlot(t *testing.T) {
	r := Tokenize("the cat\nsat on")

	assert.Equal(t, []string{"the", "cat", "sat", "on"}, claimed(r))
	assert.Equal(t, []int{0, 1, 3, 4}, slots(r))
	assert.Equal(t, 5, r.TotalSlots)
	assert.Equal(t, []string{"the", "sat"}, r.Starters)
}

func TestTokenize_FinalNewlineIsNotAGap(t *testing.T) {
	r := Tokenize("the\n")

	assert.Equal(t, []string{"the"}, claimed(r))
	assert.Equal(t, 1, r.TotalSlots)
}

func TestTokenize_BlankLineWidensGap(t *testing.T) {
	r := Tokenize("a\n\nb")

	assert.Equal(t, []string{"a", "b"}, claimed(r))
	assert.Equal(t, []int{0, 3}, slots(r))
	assert.Equal(t, 4, r.TotalSlots)
}

func TestTokenize_CRLF(t *testing.T) {
	r := Tokenize("a\r\nb")

	assert.Equal(t, []string{"a", "b"}, claimed(r))
	assert.Equal(t, []int{0, 2}, slots(r))
	assert.Equal(t, 3, r.TotalSlots)
}

func TestTokenize_Variables(t *testing.T) {
	r := Tokenize("send to {{NAME}} at ({{user_id}}),")

	assert.Equal(t, []string{"send", "to", "{{name}}", "at", "{{user_id}}"}, claimed(r))

	var kinds []string
	for _, occ := range r.Tokens {
		kinds = append(kinds, occ.Kind)
	}
	assert.Equal(t, []string{KindWord, KindWord, KindVar, KindWord, KindVar}, kinds)
	assert.Equal(t, []string{"name", "user_id"}, r.VarLabels())
}

func TestTokenize_MalformedVariableFallsBack(t *testing.T) {
	r := Tokenize("{name} {{bad name}}")

	// "{name}" trims to the word; "{{bad" and "name}}" are separate
	// fields and normalise as words too.
	assert.Equal(t, []string{"name", "bad", "name"}, claimed(r))
	assert.Empty(t, r.VarLabels())
}

func TestTokenize_StarterIsFirstClaimedOfLine(t *testing.T) {
	r := Tokenize("-- the cat\nthe dog")

	assert.Equal(t, []string{"the"}, r.Starters)
	assert.Equal(t, []int{1, 2, 4, 5}, slots(r))
}

func TestTokenize_Unicode(t *testing.T) {
	r := Tokenize("héllo wörld")

	assert.Equal(t, []string{"héllo", "wörld"}, claimed(r))
	assert.Equal(t, 11, r.SourceChars)
}

func TestTokenize_Empty(t *testing.T) {
	for _, text := range []string{"", "   ", "\n", "--- ---"} {
		r := Tokenize(text)
		assert.Empty(t, r.Tokens, "text %q", text)
		assert.Empty(t, r.Starters, "text %q", text)
	}
}

func TestPositions_AscendingPerToken(t *testing.T) {
	r := Tokenize("the cat the dog the end")

	p := r.Positions()
	assert.Equal(t, []int{0, 2, 4}, p["the"])
	assert.Equal(t, []int{1}, p["cat"])
	require.Equal(t, 4, r.Unique())
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		field string
		want  Token
		ok    bool
	}{
		{"Hello,", Token{Surface: "hello", Kind: KindWord}, true},
		{"{{Greeting}}", Token{Surface: "{{greeting}}", Kind: KindVar, Label: "greeting"}, true},
		{"({{a_1}})!", Token{Surface: "{{a_1}}", Kind: KindVar, Label: "a_1"}, true},
		{"{solo}", Token{Surface: "solo", Kind: KindWord}, true},
		{"!!!", Token{}, false},
		{"{}", Token{}, false},
	}
	for _, tc := range cases {
		got, ok := Normalize(tc.field)
		assert.Equal(t, tc.ok, ok, "field %q", tc.field)
		assert.Equal(t, tc.want, got, "field %q", tc.field)
	}
}
