package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	ratings, err := Lookup(Ratings)
	require.NoError(t, err)
	require.Equal(t, []string{"reviewerID", "asin", "ratings", "rating_time"}, ratings.Names())

	meta, err := Lookup(MovieMetadata)
	require.NoError(t, err)
	require.Equal(t, []string{"asin", "categories", "title", "price"}, meta.Names())
	require.Equal(t, StringListLists, meta.Fields[1].Type)
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("reviews")
	require.Error(t, err)
	require.True(t, DefinitionError.Has(err))
	require.Panics(t, func() { MustLookup("reviews") })
}

func TestJoinedColumns(t *testing.T) {
	require.Len(t, JoinedColumns, 9)
	require.Equal(t, "reviewerID", JoinedColumns[0])
	require.Equal(t, "title", JoinedColumns[8])
	require.Equal(t, []string{"year", "month"}, PartitionColumns)
}
