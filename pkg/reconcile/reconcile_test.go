package reconcile

import (
	"testing"

	"github.com/aretw0/weave/pkg/schema"
	"github.com/stretchr/testify/assert"
)

func fields(pairs ...any) []schema.Field {
	var out []schema.Field
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, schema.F(pairs[i].(string), pairs[i+1].(schema.TypeSpec)))
	}
	return out
}

func TestReconcile(t *testing.T) {
	num, txt, flag := schema.Number(), schema.Text(), schema.Boolean()

	tests := []struct {
		name        string
		next        []schema.Field
		current     []schema.Field
		wantMatched []Match
		wantAdded   []int
		wantRemoved []int
	}{
		{
			name:        "Identical",
			next:        fields("a", num, "b", txt),
			current:     fields("a", num, "b", txt),
			wantMatched: []Match{{0, 0, ByName}, {1, 1, ByName}},
		},
		{
			name:        "Exact Name Ignores Type",
			next:        fields("a", txt),
			current:     fields("a", num),
			wantMatched: []Match{{0, 0, ByName}},
		},
		{
			name:        "Reordered",
			next:        fields("b", txt, "a", num),
			current:     fields("a", num, "b", txt),
			wantMatched: []Match{{0, 1, ByName}, {1, 0, ByName}},
		},
		{
			name:        "Rename Falls Back To Type",
			next:        fields("speed", num, "label", txt),
			current:     fields("label", txt, "velocity", num),
			wantMatched: []Match{{0, 1, ByType}, {1, 0, ByName}},
		},
		{
			name:        "Type Match Takes First Current In Order",
			next:        fields("x", num),
			current:     fields("p", num, "q", num),
			wantMatched: []Match{{0, 0, ByType}},
			wantRemoved: []int{1},
		},
		{
			name:        "Positional From The End",
			next:        fields("n1", flag, "n2", flag, "n3", txt),
			current:     fields("c1", num, "c2", num),
			wantMatched: []Match{{1, 0, ByPosition}, {2, 1, ByPosition}},
			wantAdded:   []int{0},
		},
		{
			name:        "Addition",
			next:        fields("a", num, "b", num),
			current:     fields("a", num),
			wantMatched: []Match{{0, 0, ByName}},
			wantAdded:   []int{1},
		},
		{
			name:        "Removal",
			next:        fields("b", txt),
			current:     fields("a", num, "b", txt),
			wantMatched: []Match{{0, 1, ByName}},
			wantRemoved: []int{0},
		},
		{
			name:      "Empty Current",
			next:      fields("a", num),
			wantAdded: []int{0},
		},
		{
			name:        "Empty Next",
			current:     fields("a", num),
			wantRemoved: []int{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.next, tt.current)
			assert.Equal(t, tt.wantMatched, got.Matched)
			assert.Equal(t, tt.wantAdded, got.Added)
			assert.Equal(t, tt.wantRemoved, got.Removed)
			assertPartition(t, got, len(tt.next), len(tt.current))
		})
	}
}

// assertPartition checks every index lands in exactly one bucket.
func assertPartition(t *testing.T, r Result, nNext, nCur int) {
	t.Helper()
	seenNext := make(map[int]int)
	seenCur := make(map[int]int)
	for _, m := range r.Matched {
		seenNext[m.Next]++
		seenCur[m.Current]++
	}
	for _, i := range r.Added {
		seenNext[i]++
	}
	for _, j := range r.Removed {
		seenCur[j]++
	}
	for i := 0; i < nNext; i++ {
		assert.Equal(t, 1, seenNext[i], "next[%d]", i)
	}
	for j := 0; j < nCur; j++ {
		assert.Equal(t, 1, seenCur[j], "current[%d]", j)
	}
}

func TestResult_Positional(t *testing.T) {
	r := Reconcile(fields("x", schema.Text()), fields("y", schema.Number()))
	assert.Equal(t, 1, r.Positional())
	assert.False(t, r.Unchanged())

	r = Reconcile(fields("x", schema.Text()), fields("x", schema.Text()))
	assert.Equal(t, 0, r.Positional())
	assert.True(t, r.Unchanged())
}
