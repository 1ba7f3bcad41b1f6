// Package filter turns collection query parameters into query conditions.
//
// # Filters
//
// Filters are declared on resources by type name and bound to properties:
//
//	metadata.WithFilters(
//		metadata.Filter("search", map[string]string{"name": "ipartial"}),
//		metadata.Filter("date", map[string]string{"createdAt": filter.IncludeNullBefore}),
//		metadata.Filter("order", map[string]string{"name": "desc", "id": ""}),
//	)
//
// The built in types are boolean, date, range, numeric, order, exists,
// search, iri, exact, partial, comparison and or. Register adds more.
//
// Values a filter cannot interpret, like active=maybe, are ignored rather
// than rejected.
//
// # Parameters
//
// Resources can also declare query parameters, binding a key to a filter.
// A ":property" placeholder expands one declaration over several
// properties:
//
//	metadata.WithParameters(metadata.Parameter{
//		Key:        "search[:property]",
//		Properties: []string{"name", "description"},
//		Filter:     metadata.FilterRef{Type: "partial"},
//	})
//
// Strict resources reject undeclared keys with ErrParameterNotSupported and
// required parameters that were not sent fail with MissingParametersError.
//
// # Usage
//
//	set, err := filter.NewSet(res, registry, "page", "itemsPerPage")
//	b := query.NewBuilder(query.SQLite, res)
//	if err := set.Apply(ctx, b, filter.ParseQuery(r.URL.RawQuery)); err != nil {
//		return err
//	}
package filter
