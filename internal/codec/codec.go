// Package codec renders document stream positions as fixed-width base-50
// text. Each position occupies exactly four symbols, so a token's whole
// position list concatenates into one string that stays inspectable in
// the database and portable across storage engines.
package codec

import (
	"strings"

	apperrors "github.com/lexvault/lexvault/pkg/errors"
)

// Alphabet is the ordered 50-symbol digit set; a symbol's index is its
// digit value.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMN"

const (
	// Width is the number of symbols per encoded position.
	Width = 4

	// Base is the alphabet size.
	Base = len(Alphabet)

	// Max is the largest encodable position, Base^Width − 1.
	Max = Base*Base*Base*Base - 1

	// ID names this codec in stored provenance. Decoding a document
	// requires the codec it was written with.
	ID = "b50w4"
)

// digitValue maps a symbol byte to its digit value, -1 for bytes outside
// the alphabet.
var digitValue = func() [256]int8 {
	var table [256]int8
	for i := range table {
		table[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		table[Alphabet[i]] = int8(i)
	}
	return table
}()

// Encode renders positions as fixed-width base-50 text, preserving input
// order. Positions outside [0, Max] fail with a range error rather than
// truncating.
func Encode(positions []int) (string, error) {
	var sb strings.Builder
	sb.Grow(len(positions) * Width)
	var field [Width]byte
	for _, p := range positions {
		if p < 0 || p > Max {
			return "", apperrors.Rangef("position %d outside codec range [0, %d]", p, Max)
		}
		for i := Width - 1; i >= 0; i-- {
			field[i] = Alphabet[p%Base]
			p /= Base
		}
		sb.Write(field[:])
	}
	return sb.String(), nil
}

// Decode parses fixed-width base-50 text back into the position list it
// was encoded from.
func Decode(text string) ([]int, error) {
	if len(text)%Width != 0 {
		return nil, apperrors.Formatf("encoded length %d is not a multiple of %d", len(text), Width)
	}
	positions := make([]int, 0, len(text)/Width)
	for i := 0; i < len(text); i += Width {
		value := 0
		for j := 0; j < Width; j++ {
			d := digitValue[text[i+j]]
			if d < 0 {
				return nil, apperrors.Formatf("symbol %q at offset %d is not in the codec alphabet", text[i+j], i+j)
			}
			value = value*Base + int(d)
		}
		positions = append(positions, value)
	}
	return positions, nil
}
