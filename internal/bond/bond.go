// Package bond derives the pairwise adjacency graph of a token stream
// and diagnoses whether that graph alone can reproduce a single linear
// sequence. Bonds are a derived index: the positional store remains the
// authoritative record, and every bond set can be recomputed from it.
package bond

import (
	"cmp"
	"slices"
)

// Bond is a counted directed edge: B immediately follows A, Count times,
// within one aggregation scope (a single document or the whole corpus).
type Bond[T cmp.Ordered] struct {
	A     T
	B     T
	Count int
}

// PBM is a bond graph snapshot for one scope: the full counted edge set
// plus the first adjacent pair observed in stream order. The first pair
// is the mandatory start edge for bond-only reassembly and is meaningful
// only when Bonds is non-empty. Read-only once produced.
type PBM[T cmp.Ordered] struct {
	Bonds  []Bond[T]
	FirstA T
	FirstB T
}

type pair[T cmp.Ordered] struct{ a, b T }

// Derive counts adjacent pairs of stream in order. One pass, O(n) in
// stream length; the order of the returned bond set is unspecified.
// Streams shorter than two tokens produce an empty graph.
func Derive[T cmp.Ordered](stream []T) PBM[T] {
	var p PBM[T]
	if len(stream) < 2 {
		return p
	}
	counts := make(map[pair[T]]int)
	for i := 0; i+1 < len(stream); i++ {
		counts[pair[T]{stream[i], stream[i+1]}]++
	}
	p.FirstA = stream[0]
	p.FirstB = stream[1]
	p.Bonds = make([]Bond[T], 0, len(counts))
	for k, c := range counts {
		p.Bonds = append(p.Bonds, Bond[T]{A: k.a, B: k.b, Count: c})
	}
	return p
}

// Edges returns the total edge count including multiplicities.
func (p PBM[T]) Edges() int {
	total := 0
	for _, b := range p.Bonds {
		total += b.Count
	}
	return total
}

// Sorted returns a copy of the bond set ordered by (A, B), for stable
// persistence and comparison.
func (p PBM[T]) Sorted() []Bond[T] {
	out := slices.Clone(p.Bonds)
	slices.SortFunc(out, func(x, y Bond[T]) int {
		if c := cmp.Compare(x.A, y.A); c != 0 {
			return c
		}
		return cmp.Compare(x.B, y.B)
	})
	return out
}

// PathKind classifies a bond graph's degree balance.
type PathKind int

const (
	// PathNone means no edge-exact walk exists: the graph is empty or
	// its degree imbalance exceeds the single ±1 pair an open walk
	// allows.
	PathNone PathKind = iota

	// PathOpen means exactly one start node (out = in + 1) and exactly
	// one end node (in = out + 1), all others balanced.
	PathOpen

	// PathCircuit means every node is balanced; a walk exists from any
	// node with edges and returns to it.
	PathCircuit
)

func (k PathKind) String() string {
	switch k {
	case PathOpen:
		return "open"
	case PathCircuit:
		return "circuit"
	default:
		return "none"
	}
}

// Diagnosis reports whether a bond graph satisfies the Eulerian-path
// degree condition. Start and End are set only for PathOpen; Imbalanced
// lists every node with unequal in/out degree sums when classification
// fails, sorted.
type Diagnosis[T cmp.Ordered] struct {
	Kind       PathKind
	Start      T
	End        T
	Imbalanced []T
}

// PathExists reports whether some edge-exact walk exists under the
// degree condition. Disconnected components are not detected here; the
// traversal itself reports them when edges remain unconsumed.
func (d Diagnosis[T]) PathExists() bool {
	return d.Kind != PathNone
}

// Diagnose computes per-node in/out degree sums and classifies the
// graph. Any distribution other than the single start/end pair or full
// balance is reported, never silently approximated.
func Diagnose[T cmp.Ordered](p PBM[T]) Diagnosis[T] {
	out := make(map[T]int)
	in := make(map[T]int)
	nodes := make(map[T]struct{})
	for _, b := range p.Bonds {
		out[b.A] += b.Count
		in[b.B] += b.Count
		nodes[b.A] = struct{}{}
		nodes[b.B] = struct{}{}
	}

	var d Diagnosis[T]
	if len(nodes) == 0 {
		return d
	}

	var starts, ends, unbalanced []T
	for n := range nodes {
		switch diff := out[n] - in[n]; diff {
		case 0:
		case 1:
			starts = append(starts, n)
		case -1:
			ends = append(ends, n)
		default:
			unbalanced = append(unbalanced, n)
		}
	}

	switch {
	case len(unbalanced) == 0 && len(starts) == 1 && len(ends) == 1:
		d.Kind = PathOpen
		d.Start = starts[0]
		d.End = ends[0]
	case len(unbalanced) == 0 && len(starts) == 0 && len(ends) == 0:
		d.Kind = PathCircuit
	default:
		d.Imbalanced = make([]T, 0, len(unbalanced)+len(starts)+len(ends))
		d.Imbalanced = append(d.Imbalanced, unbalanced...)
		d.Imbalanced = append(d.Imbalanced, starts...)
		d.Imbalanced = append(d.Imbalanced, ends...)
		slices.Sort(d.Imbalanced)
	}
	return d
}
