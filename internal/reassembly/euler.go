package reassembly

import (
	"cmp"
	"slices"

	"github.com/lexvault/lexvault/internal/bond"
	apperrors "github.com/lexvault/lexvault/pkg/errors"
)

type outEdge[T cmp.Ordered] struct {
	to        T
	remaining int
}

// FromBonds attempts to rebuild a token sequence from a bond graph
// alone, via a stack-based Eulerian walk that opens with the recorded
// first pair. At each step it takes the outgoing edge with the smallest
// remaining multiplicity, ties broken by token order, so the output is
// deterministic for a given graph. It is NOT guaranteed to match the
// sequence the graph was derived from: whenever a token has out-degree
// above one, several walks consume the same edge set and only edge
// multiplicities can force the original choice. Callers must not treat
// the result as equivalent to exact reconstruction.
func FromBonds[T cmp.Ordered](p bond.PBM[T]) ([]T, error) {
	if len(p.Bonds) == 0 {
		return nil, apperrors.Graphf("empty bond graph")
	}
	if d := bond.Diagnose(p); !d.PathExists() {
		return nil, apperrors.Graphf("degree imbalance at %d of the graph's tokens", len(d.Imbalanced))
	}

	adjacency := make(map[T][]*outEdge[T])
	total := 0
	for _, b := range p.Bonds {
		adjacency[b.A] = append(adjacency[b.A], &outEdge[T]{to: b.B, remaining: b.Count})
		total += b.Count
	}
	for _, edges := range adjacency {
		slices.SortFunc(edges, func(x, y *outEdge[T]) int {
			return cmp.Compare(x.to, y.to)
		})
	}

	// The first observed pair is the mandatory opening edge.
	if !consume(adjacency[p.FirstA], p.FirstB) {
		return nil, apperrors.Graphf("start edge %v -> %v not present in graph", p.FirstA, p.FirstB)
	}
	consumed := 1

	stack := []T{p.FirstA, p.FirstB}
	path := make([]T, 0, total+1)
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		e := rarest(adjacency[current])
		if e == nil {
			path = append(path, current)
			stack = stack[:len(stack)-1]
			continue
		}
		e.remaining--
		consumed++
		stack = append(stack, e.to)
	}
	if consumed != total {
		return nil, apperrors.Graphf("graph is disconnected: walked %d of %d edges", consumed, total)
	}
	slices.Reverse(path)
	return path, nil
}

// rarest picks the outgoing edge with the smallest remaining
// multiplicity, nil when none remain. Edges arrive sorted by
// destination, so ties resolve to the lowest token.
func rarest[T cmp.Ordered](edges []*outEdge[T]) *outEdge[T] {
	var best *outEdge[T]
	for _, e := range edges {
		if e.remaining <= 0 {
			continue
		}
		if best == nil || e.remaining < best.remaining {
			best = e
		}
	}
	return best
}

func consume[T cmp.Ordered](edges []*outEdge[T], to T) bool {
	for _, e := range edges {
		if e.to == to && e.remaining > 0 {
			e.remaining--
			return true
		}
	}
	return false
}
