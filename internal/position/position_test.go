package position

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-records/internal/storage"
)

func TestParse(t *testing.T) {
	cases := []struct {
		input string
		want  Placement
	}{
		{"", Placement{Kind: Bottom}},
		{"bottom", Placement{Kind: Bottom}},
		{"top", Placement{Kind: Top}},
		{"after:5", Placement{Kind: After, TargetID: 5}},
		{"before:12", Placement{Kind: Before, TargetID: 12}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.want, got, tc.input)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, input := range []string{"middle", "after:", "after:x", "before:-3", "after:0"} {
		_, err := Parse(input)
		assert.Error(t, err, input)
	}
}

func TestPlacement_IsMove(t *testing.T) {
	assert.False(t, Placement{Kind: Bottom}.IsMove())
	assert.False(t, Placement{Kind: Top}.IsMove())
	assert.True(t, Placement{Kind: After, TargetID: 1}.IsMove())
	assert.True(t, Placement{Kind: Before, TargetID: 1}.IsMove())

	assert.Equal(t, storage.MoveAfter, Placement{Kind: After}.MoveDirection())
	assert.Equal(t, storage.MoveBefore, Placement{Kind: Before}.MoveDirection())
}

func TestBottomSortValue(t *testing.T) {
	store := storage.NewMemStore()
	calc := NewCalculator(store)
	ctx := context.Background()

	// Empty container: first record still gets a positive sort value.
	sort, err := calc.BottomSortValue(ctx, "content", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(SortGap), sort)

	store.Seed("content", 1, storage.Row{
		storage.ColContainer: int64(10),
		storage.ColSort:      int64(384),
	})
	store.Seed("content", 2, storage.Row{
		storage.ColContainer: int64(99),
		storage.ColSort:      int64(9000),
	})

	sort, err = calc.BottomSortValue(ctx, "content", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(384+SortGap), sort, "only siblings under the container count")
}
