// Package vocab turns raw text into the slot-addressed token stream the
// vault stores. Fields claim one slot each in stream order; line breaks
// and fields that normalise to nothing still consume a slot, which is
// how line structure and dropped punctuation survive as gaps. Nothing
// is removed or stemmed: reconstruction needs every claimed token.
package vocab

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ID names this tokenizer in stored provenance. Reconstruction depends
// on the slot accounting staying exactly as written.
const ID = "ws-v1"

// Token kinds.
const (
	KindWord = "word"
	KindVar  = "var"
)

var varPattern = regexp.MustCompile(`^\{\{([A-Za-z0-9_]+)\}\}$`)

// Token is a normalised surface with its kind. Label is the bare name
// of a {{variable}}, empty for words.
type Token struct {
	Surface string
	Kind    string
	Label   string
}

// Occurrence is a token claiming one slot of the stream.
type Occurrence struct {
	Token
	Slot int
}

// Result is the tokenizer's full account of one text.
type Result struct {
	Tokens      []Occurrence
	TotalSlots  int
	Starters    []string
	SourceChars int
}

// Tokenize splits text into lines and whitespace fields, normalises
// each field, and assigns ascending slots. A line break between lines
// consumes one separator slot; a file-final newline does not.
func Tokenize(text string) Result {
	res := Result{SourceChars: utf8.RuneCountInString(text)}
	lines := strings.Split(text, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	slot := 0
	seenStarter := make(map[string]bool)
	for i, line := range lines {
		if i > 0 {
			slot++
		}
		lineClaimed := false
		for _, field := range strings.Fields(strings.TrimSuffix(line, "\r")) {
			tok, ok := Normalize(field)
			if !ok {
				slot++
				continue
			}
			res.Tokens = append(res.Tokens, Occurrence{Token: tok, Slot: slot})
			if !lineClaimed {
				lineClaimed = true
				if !seenStarter[tok.Surface] {
					seenStarter[tok.Surface] = true
					res.Starters = append(res.Starters, tok.Surface)
				}
			}
			slot++
		}
	}
	res.TotalSlots = slot
	return res
}

// Normalize maps one whitespace-free field to its token form, the same
// way Tokenize does. A {{name}} field (surrounding punctuation
// tolerated) becomes a variable token; anything else is lowercased with
// surrounding non-alphanumeric runes trimmed. Returns false when the
// field dissolves entirely, in which case its slot stays a gap.
func Normalize(field string) (Token, bool) {
	trimmed := strings.TrimFunc(field, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '{' && r != '}'
	})
	if m := varPattern.FindStringSubmatch(trimmed); m != nil {
		label := strings.ToLower(m[1])
		return Token{Surface: "{{" + label + "}}", Kind: KindVar, Label: label}, true
	}
	word := strings.ToLower(strings.TrimFunc(trimmed, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
	if word == "" {
		return Token{}, false
	}
	return Token{Surface: word, Kind: KindWord}, true
}

// Stream returns the claimed surfaces in slot order.
func (r Result) Stream() []string {
	out := make([]string, len(r.Tokens))
	for i, occ := range r.Tokens {
		out[i] = occ.Surface
	}
	return out
}

// Positions groups claimed slots by surface; lists are ascending
// because occurrences arrive in slot order.
func (r Result) Positions() map[string][]int {
	out := make(map[string][]int)
	for _, occ := range r.Tokens {
		out[occ.Surface] = append(out[occ.Surface], occ.Slot)
	}
	return out
}

// Unique returns the distinct claimed surface count.
func (r Result) Unique() int {
	seen := make(map[string]struct{}, len(r.Tokens))
	for _, occ := range r.Tokens {
		seen[occ.Surface] = struct{}{}
	}
	return len(seen)
}

// VarLabels returns the distinct variable labels, sorted.
func (r Result) VarLabels() []string {
	seen := make(map[string]struct{})
	for _, occ := range r.Tokens {
		if occ.Kind == KindVar {
			seen[occ.Label] = struct{}{}
		}
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	slices.Sort(labels)
	return labels
}
