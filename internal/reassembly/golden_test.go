package reassembly

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/lexvault/lexvault/internal/bond"
	"github.com/lexvault/lexvault/internal/vocab"
)

// TestGoldenRenderings pins both strategies' output for fixture texts
// byte for byte: the exact inversion and the best-effort bond walk,
// side by side. Regenerate with:
//
//	go test ./internal/reassembly -update
func TestGoldenRenderings(t *testing.T) {
	fixtures := []struct {
		name string
		text string
	}{
		{"plain", "the cat sat on the mat"},
		{"template", "The {{Hero}} slays the {{BEAST}}."},
		{"linebreak", "first line\nsecond line"},
		{"gaps", "the --- cat --- sat"},
		{"repeats", "to be or not to be"},
		{"single", "hello"},
		{"silence", "*** ---"},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tc := range fixtures {
		t.Run(tc.name, func(t *testing.T) {
			g.Assert(t, tc.name, []byte(renderBoth(t, tc.text)))
		})
	}
}

// renderBoth tokenizes the text and renders it through both strategies.
// The walk line records the error when the bond graph alone cannot
// carry the document.
func renderBoth(t *testing.T, text string) string {
	t.Helper()
	res := vocab.Tokenize(text)
	surfaces := make(map[string]string, len(res.Tokens))
	for _, occ := range res.Tokens {
		surfaces[occ.Surface] = occ.Surface
	}

	exact, err := Exact(res.Positions(), surfaces, res.TotalSlots)
	require.NoError(t, err)

	var walk string
	if path, werr := FromBonds(bond.Derive(res.Stream())); werr != nil {
		walk = "error: " + werr.Error()
	} else {
		walk = strings.Join(path, " ")
	}
	return fmt.Sprintf("source: %q\nexact:  %s\nwalk:   %s\n", text, exact, walk)
}
