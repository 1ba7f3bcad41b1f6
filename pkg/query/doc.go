// Package query builds the SQL used to list resource collections.
//
// A Builder targets one resource aliased as "o". Filters resolve property
// paths into columns, which joins the relations the path crosses, and add
// conditions with bound arguments:
//
//	b := query.NewBuilder(query.Postgres, res)
//	col, err := b.Resolve("relatedDummy.thirdLevel.level")
//	if err != nil {
//		return err
//	}
//	b.Where(col.Expr + " > " + b.Arg(3))
//	b.OrderBy(col.Expr, "desc", query.NullsDefault)
//	b.Paginate(30, 0)
//
//	rows, err := db.QueryContext(ctx, b.SelectSQL("id", "name"), b.Args()...)
//
// Joining a collection association switches the select to DISTINCT, or to a
// GROUP BY over the root columns when an ordering uses a joined column. The
// joined ordering then sorts on MIN or MAX of the values of each item. CountSQL
// counts distinct root identifiers with the same conditions.
//
// Placeholders depend on the Dialect: PostgreSQL numbers them ($1, $2) while
// SQLite binds positionally.
package query
