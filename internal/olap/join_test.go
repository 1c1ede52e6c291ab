package olap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/billing-olap/internal/snapshot"
)

func record(fields map[string]snapshot.Value) snapshot.Value {
	return snapshot.Map(fields)
}

func TestJoin(t *testing.T) {
	left := FrameOf([]snapshot.Value{
		record(map[string]snapshot.Value{"id": snapshot.String("a"), "ref": snapshot.String("r1"), "name": snapshot.String("left-a")}),
		record(map[string]snapshot.Value{"id": snapshot.String("b"), "ref": snapshot.String("r2"), "name": snapshot.String("left-b")}),
		record(map[string]snapshot.Value{"id": snapshot.String("c"), "ref": snapshot.Null(), "name": snapshot.String("left-c")}),
		record(map[string]snapshot.Value{"id": snapshot.String("d"), "ref": snapshot.String("dup"), "name": snapshot.String("left-d")}),
	}, "id", "ref", "name")

	right := FrameOf([]snapshot.Value{
		record(map[string]snapshot.Value{"key": snapshot.String("r1"), "name": snapshot.String("right-1")}),
		record(map[string]snapshot.Value{"key": snapshot.String("dup"), "name": snapshot.String("right-x")}),
		record(map[string]snapshot.Value{"key": snapshot.String("dup"), "name": snapshot.String("right-y")}),
	}, "key", "name")

	tests := []struct {
		name      string
		kind      JoinKind
		wantIDs   []string
		wantNames []snapshot.Value
		ambiguous int
	}{
		{
			name:      "inner drops unmatched null and ambiguous keys",
			kind:      InnerJoin,
			wantIDs:   []string{"a"},
			wantNames: []snapshot.Value{snapshot.String("right-1")},
			ambiguous: 1,
		},
		{
			name:    "left keeps every row in order",
			kind:    LeftJoin,
			wantIDs: []string{"a", "b", "c", "d"},
			wantNames: []snapshot.Value{
				snapshot.String("right-1"), snapshot.Null(), snapshot.Null(), snapshot.Null(),
			},
			ambiguous: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, stats, err := Join(left, JoinStep{
				Name: "right", Right: right, LeftKey: "ref", RightKey: "key",
				Pull: []Pull{{From: "name"}}, Kind: tt.kind, Suffix: "_right",
			})
			require.NoError(t, err)

			assert.Equal(t, []string{"id", "ref", "name", "name_right"}, out.Columns)
			require.Len(t, out.Rows, len(tt.wantIDs))
			for i, r := range out.Rows {
				id, _ := r.Get("id").Str()
				assert.Equal(t, tt.wantIDs[i], id)
				assert.True(t, tt.wantNames[i].Equal(r.Get("name_right")), "row %d name_right = %v", i, r.Get("name_right"))
				// The left side is never renamed.
				assert.True(t, r.Get("name").Kind() == snapshot.KindString)
			}
			assert.Equal(t, tt.ambiguous, stats.Steps[0].Ambiguous)
			assert.Equal(t, 1, stats.Steps[0].Matched)
		})
	}
}

func TestJoin_KeysCompareByKind(t *testing.T) {
	left := FrameOf([]snapshot.Value{
		record(map[string]snapshot.Value{"ref": snapshot.String("1")}),
	}, "ref")
	right := FrameOf([]snapshot.Value{
		record(map[string]snapshot.Value{"id": snapshot.Int(1), "v": snapshot.String("x")}),
	}, "id", "v")

	out, _, err := Join(left, JoinStep{Name: "r", Right: right, LeftKey: "ref", RightKey: "id", Pull: []Pull{{From: "v"}}})
	require.NoError(t, err)
	assert.Empty(t, out.Rows)
}

func TestJoin_Misconfigured(t *testing.T) {
	left := FrameOf(nil, "id", "ref", "name", "name_x")
	right := FrameOf(nil, "key", "name")

	tests := []struct {
		name string
		step JoinStep
	}{
		{name: "nil right", step: JoinStep{Name: "s", LeftKey: "ref", RightKey: "key"}},
		{name: "unknown left key", step: JoinStep{Name: "s", Right: right, LeftKey: "nope", RightKey: "key"}},
		{name: "unknown right key", step: JoinStep{Name: "s", Right: right, LeftKey: "ref", RightKey: "nope"}},
		{name: "unknown pulled column", step: JoinStep{Name: "s", Right: right, LeftKey: "ref", RightKey: "key", Pull: []Pull{{From: "nope"}}}},
		{name: "suffix still collides", step: JoinStep{Name: "s", Right: right, LeftKey: "ref", RightKey: "key", Pull: []Pull{{From: "name"}}, Suffix: "_x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Join(left, tt.step)
			assert.Error(t, err)
		})
	}
}

func TestJoin_StepsSeePriorColumns(t *testing.T) {
	left := FrameOf([]snapshot.Value{
		record(map[string]snapshot.Value{"sub": snapshot.String("s1")}),
	}, "sub")
	subs := FrameOf([]snapshot.Value{
		record(map[string]snapshot.Value{"id": snapshot.String("s1"), "price": snapshot.String("p1")}),
	}, "id", "price")
	prices := FrameOf([]snapshot.Value{
		record(map[string]snapshot.Value{"id": snapshot.String("p1"), "amount": snapshot.Int(10)}),
	}, "id", "amount")

	out, stats, err := Join(left,
		JoinStep{Name: "subs", Right: subs, LeftKey: "sub", RightKey: "id", Pull: []Pull{{From: "price", As: "price_id"}}},
		JoinStep{Name: "prices", Right: prices, LeftKey: "price_id", RightKey: "id", Pull: []Pull{{From: "amount"}}},
	)
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	amount, _ := out.Rows[0].Get("amount").Int64()
	assert.Equal(t, int64(10), amount)
	assert.Equal(t, 1, stats.Output)
}
