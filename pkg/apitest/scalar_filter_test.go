package apitest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gantry/pkg/fixtures"
)

func TestBooleanFilter(t *testing.T) {
	k := New(t)
	seedDummies(t, k, 30)

	tests := []struct {
		query string
		total int
	}{
		{"dummyBoolean=true", 8},
		{"dummyBoolean=1", 8},
		{"dummyBoolean=false", 7},
		{"dummyBoolean=0", 7},
		{"dummyBoolean=maybe", 30},
		{"embeddedDummy.dummyBoolean=true", 15},
		{"embeddedDummy.dummyBoolean=false", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := k.Get("/dummies?" + tt.query)
			require.Equal(t, 200, resp.Status)
			assert.Equal(t, tt.total, resp.Total())
		})
	}
}

func TestBooleanFilter_NullableAndConvertedNames(t *testing.T) {
	k := New(t)
	ctx := context.Background()
	_, err := fixtures.SeedDummyBooleans(ctx, k.Manager, fixtures.Ptr(true), fixtures.Ptr(false), nil)
	require.NoError(t, err)
	_, err = fixtures.SeedConvertedBooleans(ctx, k.Manager, true, false, false)
	require.NoError(t, err)

	resp := k.Get("/dummy_booleans?isDummyBoolean=false")
	assert.Equal(t, []any{false}, resp.Values("isDummyBoolean"))

	resp = k.Get("/dummy_booleans?exists[isDummyBoolean]=false")
	assert.Equal(t, []any{nil}, resp.Values("isDummyBoolean"))

	resp = k.Get("/converted_booleans?name_converted=false")
	assert.Equal(t, 2, resp.Total())
	for _, m := range resp.Members() {
		assert.Equal(t, false, m["name_converted"])
	}
}

func TestDateFilter(t *testing.T) {
	k := New(t)
	seedDummies(t, k, 30)

	tests := []struct {
		query string
		total int
	}{
		{"dummyDate[after]=2015-04-28", 3},
		{"dummyDate[strictly_after]=2015-04-28", 2},
		{"dummyDate[before]=2015-04-02", 2},
		{"dummyDate[strictly_before]=2015-04-02", 1},
		{"dummyDate[after]=2015-04-10&dummyDate[before]=2015-04-12", 3},
		{"dummyDate[after]=2015-04-28T00:00:00%2B00:00", 3},
		{"dummyDate[after]=not-a-date", 30},
		{"dummyDate[after]=2015-04-02&dummyDate[before]=2015-04-01", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := k.Get("/dummies?" + tt.query)
			require.Equal(t, 200, resp.Status)
			assert.Equal(t, tt.total, resp.Total())
		})
	}
}

func TestDateFilter_NullManagement(t *testing.T) {
	k := New(t)
	_, err := fixtures.SeedDummyDates(context.Background(), k.Manager, fixtures.Ptr(1), fixtures.Ptr(2), fixtures.Ptr(3), nil)
	require.NoError(t, err)

	tests := []struct {
		query string
		total int
	}{
		{"dummyDate[after]=2015-04-02", 2},
		{"dummyDate[before]=2015-04-02", 2},
		{"dateIncludeNullAfter[after]=2015-04-02", 3},
		{"dateIncludeNullAfter[before]=2015-04-02", 2},
		{"dateIncludeNullBefore[before]=2015-04-02", 3},
		{"dateIncludeNullBefore[after]=2015-04-02", 2},
		{"dateIncludeNullBeforeAndAfter[after]=2015-04-02", 3},
		{"dateIncludeNullBeforeAndAfter[strictly_before]=2015-04-02", 2},
		{"dummyDate[after]=2015-04-02&dummyDate[before]=2015-04-02", 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := k.Get("/dummy_dates?" + tt.query)
			require.Equal(t, 200, resp.Status)
			assert.Equal(t, tt.total, resp.Total())
		})
	}

	t.Run("dates render at midnight UTC", func(t *testing.T) {
		resp := k.Get("/dummy_dates?dummyDate[after]=2015-04-03")
		require.Len(t, resp.Members(), 1)
		assert.Equal(t, "2015-04-03T00:00:00+00:00", resp.Members()[0]["dummyDate"])
	})

	t.Run("ordering", func(t *testing.T) {
		resp := k.Get("/dummy_dates?order[dummyDate]=desc")
		require.Equal(t, 200, resp.Status)
		assert.Equal(t, "2015-04-03T00:00:00+00:00", resp.Members()[0]["dummyDate"])
	})
}

func TestDateFilter_ExcludeNull(t *testing.T) {
	k := New(t)
	_, err := fixtures.SeedDummyImmutableDates(context.Background(), k.Manager,
		fixtures.Date(2015, time.April, 1),
		fixtures.Date(2015, time.April, 5),
	)
	require.NoError(t, err)

	resp := k.Get("/dummy_immutable_dates?dummyDate[after]=2015-04-02")
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, []any{"2015-04-05T00:00:00+00:00"}, resp.Values("dummyDate"))
}

func TestRangeAndNumericFilters(t *testing.T) {
	k := New(t)
	seedDummies(t, k, 30)

	tests := []struct {
		query string
		total int
	}{
		{"dummyFloat[between]=1.5..3.5", 3},
		{"dummyFloat[between]=2.5..2.5", 1},
		{"dummyFloat[gt]=28.5", 2},
		{"dummyFloat[gte]=28.5", 3},
		{"dummyFloat[lt]=2.5", 1},
		{"dummyFloat[lte]=2.5", 2},
		{"dummyFloat[between]=1.5", 30},
		{"dummyFloat[gt]=abc", 30},
		{"dummyPrice[lte]=20", 2},
		{"dummyPrice[between]=100..150", 6},
		{"dummyFloat=2.5", 1},
		{"dummyFloat[]=2.5&dummyFloat[]=3.5", 2},
		{"dummyPrice=30", 1},
		{"dummyPrice=thirty", 30},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := k.Get("/dummies?" + tt.query)
			require.Equal(t, 200, resp.Status)
			assert.Equal(t, tt.total, resp.Total())
		})
	}
}

func TestProductFilters(t *testing.T) {
	k := New(t)
	_, err := fixtures.SeedDummyProducts(context.Background(), k.Manager, 20, 5, 15, 10)
	require.NoError(t, err)

	tests := []struct {
		query      string
		quantities []any
	}{
		{"", []any{float64(5), float64(10), float64(15), float64(20)}},
		{"quantity[between]=10..15", []any{float64(10), float64(15)}},
		{"quantity[gte]=15", []any{float64(15), float64(20)}},
		{"quantity=10", []any{float64(10)}},
		{"quantity=10.5", []any{float64(5), float64(10), float64(15), float64(20)}},
		{"quantity[]=5&quantity[]=20", []any{float64(5), float64(20)}},
		{"price[gte]=1.5", []any{float64(15), float64(20)}},
		{"price[lt]=1", []any{float64(5)}},
		{"price[ne]=1", []any{float64(5), float64(15), float64(20)}},
		{"price[eq]=2", []any{float64(20)}},
		{"order[price]=desc", []any{float64(20), float64(15), float64(10), float64(5)}},
		{"order[name]=asc", []any{float64(20), float64(5), float64(15), float64(10)}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := k.Get("/dummy_products?" + tt.query)
			require.Equal(t, 200, resp.Status, string(resp.Raw))
			assert.Equal(t, tt.quantities, resp.Values("quantity"))
		})
	}

	t.Run("prices render as strings", func(t *testing.T) {
		resp := k.Get("/dummy_products?quantity=15")
		assert.Equal(t, []any{"1.5"}, resp.Values("price"))
	})
}

func TestExistsFilter(t *testing.T) {
	k := New(t)
	ctx := context.Background()
	seedDummies(t, k, 4)
	_, err := fixtures.SeedRelatedDummies(ctx, k.Manager, "foo")
	require.NoError(t, err)

	tests := []struct {
		query string
		total int
	}{
		{"exists[alias]=true", 2},
		{"exists[alias]=false", 3},
		{"exists[alias]=1", 2},
		{"exists[alias]=perhaps", 5},
		{"exists[description]=false", 1},
		{"exists[dummyBoolean]=true", 2},
		{"exists[relatedDummy]=true", 1},
		{"exists[relatedDummy]=false", 4},
		{"exists[relatedDummies]=true", 1},
		{"exists[relatedDummies]=false", 4},
		{"exists[alias]=true&exists[description]=true", 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := k.Get("/dummies?" + tt.query)
			require.Equal(t, 200, resp.Status)
			assert.Equal(t, tt.total, resp.Total())
		})
	}
}

func TestOrderFilter(t *testing.T) {
	k := New(t)
	seedDummies(t, k, 30)

	tests := []struct {
		query string
		names []any
	}{
		{"order[id]=desc", []any{"Dummy #30", "Dummy #29", "Dummy #28"}},
		{"order[name]=desc", []any{"Dummy #9", "Dummy #8", "Dummy #7"}},
		{"order[name]=", []any{"Dummy #9", "Dummy #8", "Dummy #7"}},
		{"order[name]=asc", []any{"Dummy #1", "Dummy #10", "Dummy #11"}},
		{"order[dummyDate]=desc", []any{"Dummy #30", "Dummy #29", "Dummy #28"}},
		{"order[name]=sideways", []any{"Dummy #1", "Dummy #2", "Dummy #3"}},
		{"order[description]=asc&order[id]=desc", []any{"Dummy #29", "Dummy #27", "Dummy #25"}},
		{"order[id]=desc&order[description]=asc", []any{"Dummy #30", "Dummy #29", "Dummy #28"}},
		{"order[embeddedDummy.dummyName]=desc", []any{"Dummy #9", "Dummy #8", "Dummy #7"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := k.Get("/dummies?" + tt.query)
			require.Equal(t, 200, resp.Status)
			assert.Equal(t, tt.names, resp.Values("name"))
		})
	}
}

func TestOrderFilter_RelationsAndNulls(t *testing.T) {
	k := New(t)
	ctx := context.Background()
	_, err := fixtures.SeedRelatedDummies(ctx, k.Manager, "b", "c", "a")
	require.NoError(t, err)

	resp := k.Get("/dummies?order[relatedDummy.name]=asc")
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, []any{"Dummy with a", "Dummy with b", "Dummy with c"}, resp.Values("name"))

	_, err = fixtures.SeedTree(ctx, k.Manager, "root", "b", "a")
	require.NoError(t, err)

	// nulls_smallest puts the root first ascending and last descending
	resp = k.Get("/tree_dummies?order[parent.name]=asc&order[name]=asc")
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, []any{"root", "a.1", "b.1", "a", "b"}, resp.Values("name"))

	resp = k.Get("/tree_dummies?order[parent.name]=desc&order[name]=asc")
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, []any{"a", "b", "b.1", "a.1", "root"}, resp.Values("name"))
}

func TestOrderFilter_CollectionPaging(t *testing.T) {
	k := New(t)
	ctx := context.Background()
	a := &fixtures.RelatedDummy{Name: fixtures.Ptr("a"), Symfony: "symfony"}
	z := &fixtures.RelatedDummy{Name: fixtures.Ptr("z"), Symfony: "symfony"}
	m := &fixtures.RelatedDummy{Name: fixtures.Ptr("m"), Symfony: "symfony"}
	k.Manager.Persist(a, z, m,
		&fixtures.Dummy{Name: "Dummy 1", RelatedDummies: []*fixtures.RelatedDummy{a, z}},
		&fixtures.Dummy{Name: "Dummy 2", RelatedDummies: []*fixtures.RelatedDummy{m}},
		&fixtures.Dummy{Name: "Dummy 3"},
	)
	require.NoError(t, k.Manager.Flush(ctx))

	tests := []struct {
		direction string
		pages     [][]any
	}{
		// sqlite sorts NULL first ascending and last descending
		{"asc", [][]any{{"Dummy 3", "Dummy 1"}, {"Dummy 2"}}},
		{"desc", [][]any{{"Dummy 1", "Dummy 2"}, {"Dummy 3"}}},
	}
	for _, tt := range tests {
		t.Run(tt.direction, func(t *testing.T) {
			seen := make(map[any]bool)
			for i, expected := range tt.pages {
				resp := k.Get(fmt.Sprintf("/dummies?order[relatedDummies.name]=%s&itemsPerPage=2&page=%d", tt.direction, i+1))
				require.Equal(t, 200, resp.Status)
				assert.Equal(t, 3, resp.Total())
				assert.Equal(t, expected, resp.Values("name"))
				for _, id := range resp.Values("@id") {
					assert.False(t, seen[id], "%v listed twice", id)
					seen[id] = true
				}
			}
			assert.Len(t, seen, 3)
		})
	}
}

func TestOrderParameterFilters(t *testing.T) {
	k := New(t)
	ctx := context.Background()
	for _, item := range []*fixtures.FilteredOrderParameter{
		{Name: "b", CreatedAt: fixtures.Ptr(fixtures.Date(2020, time.January, 2))},
		{Name: "a"},
		{Name: "c", CreatedAt: fixtures.Ptr(fixtures.Date(2020, time.January, 1))},
	} {
		k.Manager.Persist(item)
	}
	require.NoError(t, k.Manager.Flush(ctx))

	tests := []struct {
		query string
		names []any
	}{
		{"order[name]=desc", []any{"c", "b", "a"}},
		{"order[createdAt]=asc", []any{"a", "c", "b"}},
		{"order_created=", []any{"c", "b", "a"}},
		{"order_created=desc", []any{"b", "c", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := k.Get("/filtered_order_parameters?" + tt.query)
			require.Equal(t, 200, resp.Status, string(resp.Raw))
			assert.Equal(t, tt.names, resp.Values("name"))
		})
	}
}
