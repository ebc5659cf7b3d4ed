// Package reassembly rebuilds document text from stored representations.
// The exact strategy inverts the positional store and is authoritative.
// The bond-only strategy walks the bond graph and is best-effort: it is
// kept for diagnostics and a future disambiguation layer, and is not
// part of the production retrieval path.
package reassembly

import (
	"cmp"
	"strings"

	apperrors "github.com/lexvault/lexvault/pkg/errors"
)

// Exact places every token surface at each of its recorded slots and
// renders unclaimed slots as separators. Consecutive unclaimed slots
// widen the gap, so relative spacing survives the round trip. It fails
// only on a corrupt record: an out-of-range or doubly claimed slot, or a
// token with positions but no surface.
func Exact[T cmp.Ordered](positions map[T][]int, surfaces map[T]string, totalSlots int) (string, error) {
	if totalSlots < 0 {
		return "", apperrors.Formatf("negative slot count %d", totalSlots)
	}
	slots := make([]string, totalSlots)
	claimed := make([]bool, totalSlots)
	for token, list := range positions {
		surface, ok := surfaces[token]
		if !ok {
			return "", apperrors.Formatf("token %v has positions but no surface", token)
		}
		for _, p := range list {
			if p < 0 || p >= totalSlots {
				return "", apperrors.Formatf("position %d outside slot range [0, %d)", p, totalSlots)
			}
			if claimed[p] {
				return "", apperrors.Formatf("slot %d claimed by more than one token", p)
			}
			claimed[p] = true
			slots[p] = surface
		}
	}
	return strings.Join(slots, " "), nil
}
