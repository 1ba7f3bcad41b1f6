// Package api serves the resources of a metadata registry as a Hydra
// JSON-LD REST API.
//
// # Overview
//
// Every registered resource gets routes for the operations it exposes:
//
//	GET    /dummies          collection, filtered and paginated
//	POST   /dummies          create
//	GET    /dummies/{id}     item
//	PUT    /dummies/{id}     update
//	PATCH  /dummies/{id}     partial update
//	DELETE /dummies/{id}     delete
//
// Link routes declared with metadata.WithLink expose a collection below a
// parent item, e.g. GET /chicken_coops/{id}/chickens. The entrypoint is
// served on / and JSON-LD contexts on /contexts/{name}.
//
// # Usage
//
//	server, err := api.NewServer(reg, store,
//		api.WithLogger(logger),
//		api.WithMetrics(metrics, registry),
//		api.WithTokens(tokens),
//	)
//	if err != nil {
//		return err
//	}
//	http.ListenAndServe(":8080", server)
//
// # Errors
//
// Failures render as hydra:Error documents: 400 for malformed input and
// unsupported parameters of strict resources, 401/403 when a security
// expression denies access, 404 for unknown items, 422 with a
// ConstraintViolationList for validation failures and missing required
// parameters.
package api
