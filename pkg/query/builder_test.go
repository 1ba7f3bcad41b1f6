package query

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gantry/pkg/metadata"
)

type qEmbeddable struct {
	DummyName string `json:"dummyName"`
}

type qDummy struct {
	ID             int64       `json:"id" orm:"id;generated"`
	Name           *string     `json:"name"`
	RelatedDummy   *qRelated   `json:"relatedDummy" orm:"manyToOne=RelatedDummy"`
	RelatedDummies []*qRelated `json:"relatedDummies" orm:"manyToMany=RelatedDummy"`
	Embedded       qEmbeddable `json:"embeddedDummy" orm:"embedded"`
}

type qRelated struct {
	ID         int64     `json:"id" orm:"id;generated"`
	Name       string    `json:"name"`
	ThirdLevel *qThird   `json:"thirdLevel" orm:"manyToOne=ThirdLevel"`
	Dummies    []*qDummy `json:"dummies" orm:"oneToMany=Dummy;mappedBy=relatedDummy"`
}

type qThird struct {
	ID    int64 `json:"id" orm:"id;generated"`
	Level int   `json:"level"`
}

type QAnimal struct {
	ID   int64  `json:"id" orm:"id;generated"`
	Name string `json:"name"`
}

type QCat struct {
	QAnimal
	Lives int `json:"lives"`
}

func newRegistry(t *testing.T) *metadata.Registry {
	t.Helper()
	reg := metadata.NewRegistry()
	reg.Register(
		metadata.MustParse("Dummy", qDummy{}),
		metadata.MustParse("RelatedDummy", qRelated{}),
		metadata.MustParse("ThirdLevel", qThird{}),
		metadata.MustParse("Animal", QAnimal{}),
		metadata.MustParse("Cat", QCat{}, metadata.WithInheritance("Animal", "discr", "cat")),
	)
	require.NoError(t, reg.Resolve())
	return reg
}

func TestBuilder_SimpleSelect(t *testing.T) {
	reg := newRegistry(t)
	b := NewBuilder(SQLite, reg.MustGet("Dummy"))

	col, err := b.Resolve("name")
	require.NoError(t, err)
	b.Where(col.Expr + " = " + b.Arg("foo"))
	b.OrderBy("o.id", "asc", NullsDefault)
	b.Paginate(30, 0)

	assert.Equal(t,
		"SELECT o.id, o.name FROM dummy o WHERE 1=1 AND o.name = ? ORDER BY o.id ASC LIMIT 30 OFFSET 0",
		b.SelectSQL("id", "name"))
	assert.Equal(t,
		"SELECT COUNT(*) FROM (SELECT DISTINCT o.id FROM dummy o WHERE 1=1 AND o.name = ?) c",
		b.CountSQL())
	assert.Equal(t, []any{"foo"}, b.Args())
	assert.False(t, b.Distinct())
}

func TestBuilder_NestedJoins(t *testing.T) {
	reg := newRegistry(t)
	b := NewBuilder(Postgres, reg.MustGet("Dummy"))

	col, err := b.Resolve("relatedDummy.thirdLevel.level")
	require.NoError(t, err)
	assert.Equal(t, "j2.level", col.Expr)
	assert.Equal(t, metadata.TypeInt, col.Field.Type)
	assert.False(t, col.ToMany)
	b.Where(col.Expr + " > " + b.Arg(1))

	again, err := b.Resolve("relatedDummy.thirdLevel.level")
	require.NoError(t, err)
	assert.Equal(t, col.Expr, again.Expr)

	relation, err := b.Resolve("relatedDummy")
	require.NoError(t, err)
	assert.Equal(t, "o.related_dummy_id", relation.Expr)
	assert.NotNil(t, relation.Relation)

	assert.Equal(t,
		"SELECT o.id FROM dummy o LEFT JOIN related_dummy j1 ON j1.id = o.related_dummy_id "+
			"LEFT JOIN third_level j2 ON j2.id = j1.third_level_id WHERE 1=1 AND j2.level > $1",
		b.SelectSQL("id"))
}

func TestBuilder_ManyToManyDistinct(t *testing.T) {
	reg := newRegistry(t)
	b := NewBuilder(SQLite, reg.MustGet("Dummy"))

	col, err := b.Resolve("relatedDummies.name")
	require.NoError(t, err)
	assert.True(t, col.ToMany)
	b.Where(col.Expr + " = " + b.Arg("x"))
	b.OrderBy(col.Expr, "DESC", NullsDefault)
	b.OrderBy("o.id", "asc", NullsDefault)

	b.Paginate(2, 2)

	assert.True(t, b.Distinct())
	assert.Equal(t,
		"SELECT o.id, MAX(j1.name) AS ord_0 FROM dummy o "+
			"LEFT JOIN dummy_related_dummies j1_t ON j1_t.source_id = o.id "+
			"LEFT JOIN related_dummy j1 ON j1.id = j1_t.target_id "+
			"WHERE 1=1 AND j1.name = ? GROUP BY o.id ORDER BY ord_0 DESC, o.id ASC LIMIT 2 OFFSET 2",
		b.SelectSQL("id"))
}

func TestBuilder_CollectionJoinOrdering(t *testing.T) {
	reg := newRegistry(t)
	joins := "FROM dummy o " +
		"LEFT JOIN dummy_related_dummies j1_t ON j1_t.source_id = o.id " +
		"LEFT JOIN related_dummy j1 ON j1.id = j1_t.target_id WHERE 1=1"

	tests := []struct {
		name      string
		direction string
		nulls     Nulls
		rootOnly  bool
		expected  string
	}{
		{
			name:      "asc uses the smallest joined value",
			direction: "asc",
			expected:  "SELECT o.id, o.name, MIN(j1.name) AS ord_0 " + joins + " GROUP BY o.id, o.name ORDER BY ord_0 ASC",
		},
		{
			name:      "desc uses the largest joined value",
			direction: "desc",
			expected:  "SELECT o.id, o.name, MAX(j1.name) AS ord_0 " + joins + " GROUP BY o.id, o.name ORDER BY ord_0 DESC",
		},
		{
			name:      "null rank is aggregated too",
			direction: "asc",
			nulls:     NullsAlwaysFirst,
			expected: "SELECT o.id, o.name, MIN(CASE WHEN j1.name IS NULL THEN 0 ELSE 1 END) AS ord_0, MIN(j1.name) AS ord_1 " +
				joins + " GROUP BY o.id, o.name ORDER BY ord_0 ASC, ord_1 ASC",
		},
		{
			name:      "root orderings keep distinct",
			direction: "desc",
			rootOnly:  true,
			expected:  "SELECT DISTINCT o.id, o.name " + joins + " AND j1.name IS NOT NULL ORDER BY o.name DESC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(SQLite, reg.MustGet("Dummy"))
			col, err := b.Resolve("relatedDummies.name")
			require.NoError(t, err)
			require.True(t, col.ToMany)
			if tt.rootOnly {
				b.Where(col.Expr + " IS NOT NULL")
				b.OrderBy("o.name", tt.direction, tt.nulls)
			} else {
				b.OrderBy(col.Expr, tt.direction, tt.nulls)
			}
			assert.Equal(t, tt.expected, b.SelectSQL("id", "name"))

			count := "SELECT COUNT(*) FROM (SELECT DISTINCT o.id " + joins
			if tt.rootOnly {
				count += " AND j1.name IS NOT NULL"
			}
			assert.Equal(t, count+") c", b.CountSQL())
		})
	}
}

func TestBuilder_WithinOr(t *testing.T) {
	reg := newRegistry(t)
	b := NewBuilder(Postgres, reg.MustGet("Dummy"))

	err := b.WithinOr(func() error {
		b.Where("o.name = " + b.Arg("a"))
		b.Where("o.name = " + b.Arg("b"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"(o.name = $1 OR o.name = $2)"}, b.Conditions())
	assert.Equal(t, []any{"a", "b"}, b.Args())

	require.NoError(t, b.WithinOr(func() error { return nil }))
	assert.Len(t, b.Conditions(), 1)

	boom := errors.New("boom")
	assert.ErrorIs(t, b.WithinOr(func() error { return boom }), boom)
}

func TestBuilder_OrderNulls(t *testing.T) {
	reg := newRegistry(t)

	tests := []struct {
		name      string
		direction string
		nulls     Nulls
		expected  string
	}{
		{"default", "asc", NullsDefault, "o.name ASC"},
		{"invalid direction falls back to asc", "sideways", NullsDefault, "o.name ASC"},
		{"smallest asc", "asc", NullsSmallest, "CASE WHEN o.name IS NULL THEN 0 ELSE 1 END ASC, o.name ASC"},
		{"smallest desc", "desc", NullsSmallest, "CASE WHEN o.name IS NULL THEN 1 ELSE 0 END ASC, o.name DESC"},
		{"largest asc", "asc", NullsLargest, "CASE WHEN o.name IS NULL THEN 1 ELSE 0 END ASC, o.name ASC"},
		{"always first", "desc", NullsAlwaysFirst, "CASE WHEN o.name IS NULL THEN 0 ELSE 1 END ASC, o.name DESC"},
		{"always last", "asc", NullsAlwaysLast, "CASE WHEN o.name IS NULL THEN 1 ELSE 0 END ASC, o.name ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(SQLite, reg.MustGet("Dummy"))
			b.OrderBy("o.name", tt.direction, tt.nulls)
			assert.True(t, b.HasOrder())
			assert.Equal(t, "SELECT o.id FROM dummy o WHERE 1=1 ORDER BY "+tt.expected, b.SelectSQL("id"))
		})
	}
}

func TestBuilder_ResolveErrors(t *testing.T) {
	reg := newRegistry(t)
	b := NewBuilder(SQLite, reg.MustGet("Dummy"))

	col, err := b.Resolve("embeddedDummy.dummyName")
	require.NoError(t, err)
	assert.Equal(t, "o.embedded_dummy_dummy_name", col.Expr)

	_, err = b.Resolve("unknown")
	assert.ErrorIs(t, err, ErrUnknownProperty)
	_, err = b.Resolve("name.foo")
	assert.ErrorIs(t, err, ErrNotFilterable)
	_, err = b.Resolve("embeddedDummy")
	assert.ErrorIs(t, err, ErrNotFilterable)
	_, err = b.Resolve("embeddedDummy.nope")
	assert.ErrorIs(t, err, ErrUnknownProperty)
}

func TestBuilder_ExistsCondition(t *testing.T) {
	reg := newRegistry(t)

	b := NewBuilder(SQLite, reg.MustGet("Dummy"))
	cond, err := b.ExistsCondition("relatedDummies")
	require.NoError(t, err)
	assert.Equal(t, "EXISTS (SELECT 1 FROM dummy_related_dummies s1 WHERE s1.source_id = o.id)", cond)

	b = NewBuilder(SQLite, reg.MustGet("RelatedDummy"))
	cond, err = b.ExistsCondition("dummies")
	require.NoError(t, err)
	assert.Equal(t, "EXISTS (SELECT 1 FROM dummy s1 WHERE s1.related_dummy_id = o.id)", cond)

	b = NewBuilder(SQLite, reg.MustGet("Dummy"))
	cond, err = b.ExistsCondition("relatedDummy.dummies")
	require.NoError(t, err)
	assert.Equal(t, "EXISTS (SELECT 1 FROM dummy s2 WHERE s2.related_dummy_id = j1.id)", cond)

	_, err = b.ExistsCondition("name")
	assert.ErrorIs(t, err, ErrNotFilterable)
	_, err = b.ExistsCondition("relatedDummy")
	assert.ErrorIs(t, err, ErrNotFilterable)
}

func TestBuilder_Discriminator(t *testing.T) {
	reg := newRegistry(t)

	cat := NewBuilder(SQLite, reg.MustGet("Cat"))
	assert.Equal(t, []string{"o.discr IN ('cat')"}, cat.Conditions())
	assert.Equal(t, "SELECT o.id FROM animal o WHERE 1=1 AND o.discr IN ('cat')", cat.SelectSQL("id"))

	animal := NewBuilder(SQLite, reg.MustGet("Animal"))
	assert.Empty(t, animal.Conditions())
	col, err := animal.Resolve("lives")
	require.NoError(t, err)
	assert.Equal(t, "o.lives", col.Expr)
}

func TestDialect(t *testing.T) {
	d, err := ParseDialect("postgresql")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)
	assert.Equal(t, "$3", d.Placeholder(3))
	assert.Equal(t, "?", SQLite.Placeholder(3))
	_, err = ParseDialect("mysql")
	assert.Error(t, err)

	ts := time.Date(2015, 4, 5, 12, 30, 0, 0, time.FixedZone("x", 3600))
	assert.Equal(t, "2015-04-05 11:30:00", SQLite.BindTime(metadata.TypeDateTime, ts))
	assert.Equal(t, "2015-04-05", Postgres.BindTime(metadata.TypeDate, ts))
	assert.Equal(t, ts.UTC(), Postgres.BindTime(metadata.TypeDateTime, ts))

	assert.Equal(t, "'it''s'", QuoteLiteral("it's"))
	assert.Equal(t, "INTEGER PRIMARY KEY AUTOINCREMENT", SQLite.AutoIncrementPK())
	assert.Equal(t, "NUMERIC(20, 6)", Postgres.ColumnType(&metadata.Field{Type: metadata.TypeDecimal}))
}
