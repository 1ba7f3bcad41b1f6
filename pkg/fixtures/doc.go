// Package fixtures declares the resources exercised by the functional
// suite: dummies with every scalar filter, relations and links, natural,
// UUID and composite identifiers, a single table hierarchy, secured and
// validated resources, and resources configured through query parameters.
//
// NewRegistry resolves them all:
//
//	reg, err := fixtures.NewRegistry()
//	if err != nil {
//		return err
//	}
//	store := sqlstore.New(conn, reg)
//	if err := store.RecreateSchema(ctx, reg.Resources()); err != nil {
//		return err
//	}
//	m := storage.NewManager(store, reg)
//	dummies, err := fixtures.SeedDummies(ctx, m, 30)
//
// The Seed helpers persist deterministic data sets and return the entities
// with their generated identifiers.
package fixtures
