// Package reconcile re-synchronizes ports, settings and graph slots against a
// new schema without a stable identity key.
//
// Reconcile is pure. The Applier performs the resulting mutations.
package reconcile

import (
	"slices"

	"github.com/aretw0/weave/pkg/schema"
)

// Pass records how a pair was matched.
type Pass uint8

const (
	ByName Pass = iota + 1
	ByType
	ByPosition
)

func (p Pass) String() string {
	switch p {
	case ByName:
		return "name"
	case ByType:
		return "type"
	case ByPosition:
		return "position"
	default:
		return "unknown"
	}
}

// Match pairs an entry of the next schema with one of the current schema.
type Match struct {
	Next    int // index into next
	Current int // index into current
	Pass    Pass
}

// Result partitions both schemas. Every current index appears exactly once in
// Matched or Removed; every next index exactly once in Matched or Added.
type Result struct {
	Matched []Match // ordered by Next
	Added   []int   // indices into next
	Removed []int   // indices into current
}

// Positional counts matches that fell through to the positional pass.
func (r Result) Positional() int {
	n := 0
	for _, m := range r.Matched {
		if m.Pass == ByPosition {
			n++
		}
	}
	return n
}

// Unchanged reports whether every entry matched by name.
func (r Result) Unchanged() bool {
	if len(r.Added) > 0 || len(r.Removed) > 0 {
		return false
	}
	for _, m := range r.Matched {
		if m.Pass != ByName {
			return false
		}
	}
	return true
}

// Reconcile matches next against current in greedy passes, each entry
// consumed at most once:
//
//  1. identical name, regardless of type;
//  2. identical type, scanning current in order for each remaining next entry;
//  3. position, pairing the remainders from the end of both lists.
//
// Whatever is left is added (next) or removed (current).
func Reconcile(next, current []schema.Field) Result {
	var res Result
	usedNext := make([]bool, len(next))
	usedCur := make([]bool, len(current))

	match := func(i, j int, p Pass) {
		usedNext[i], usedCur[j] = true, true
		res.Matched = append(res.Matched, Match{Next: i, Current: j, Pass: p})
	}

	for i, n := range next {
		for j, c := range current {
			if !usedCur[j] && c.Name == n.Name {
				match(i, j, ByName)
				break
			}
		}
	}

	for i, n := range next {
		if usedNext[i] {
			continue
		}
		for j, c := range current {
			if !usedCur[j] && c.Type.Equal(n.Type) {
				match(i, j, ByType)
				break
			}
		}
	}

	restNext := unused(usedNext)
	restCur := unused(usedCur)
	for len(restNext) > 0 && len(restCur) > 0 {
		i, j := restNext[len(restNext)-1], restCur[len(restCur)-1]
		restNext, restCur = restNext[:len(restNext)-1], restCur[:len(restCur)-1]
		match(i, j, ByPosition)
	}

	if len(restNext) > 0 {
		res.Added = restNext
	}
	if len(restCur) > 0 {
		res.Removed = restCur
	}
	slices.SortFunc(res.Matched, func(a, b Match) int { return a.Next - b.Next })
	return res
}

func unused(used []bool) []int {
	var out []int
	for i, u := range used {
		if !u {
			out = append(out, i)
		}
	}
	return out
}
