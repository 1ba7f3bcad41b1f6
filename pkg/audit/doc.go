// Package audit records an audit trail of API writes and access denials.
//
// # Events
//
// Every POST, PUT, PATCH and DELETE served by a resource route produces
// one Event, as does any request a security expression refused with 401
// or 403. Events carry the
// authenticated username, the route template and the concrete path, the
// response status and the request ID set by the request ID middleware.
//
// # Destinations
//
// FileLogger appends JSON lines to audit.log and rotates it by size:
//
//	logger, err := audit.NewFileLogger(audit.FileLoggerConfig{BasePath: "/var/log/gantry"})
//
// DBLogger inserts into an audit_events table of the API database, which
// RecreateSchema leaves untouched:
//
//	logger, err := audit.NewDBLogger(ctx, conn.Primary(), query.Postgres)
//	events, err := logger.Recent(ctx, 50)
//
// MultiLogger fans an event out to several loggers.
//
// # Middleware
//
// Middleware must be installed on the router (router.Use) so the matched
// route is known, and after authentication so the caller is known.
package audit
