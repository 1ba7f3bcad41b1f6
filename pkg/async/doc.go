// Package async runs background tasks with panic recovery and logging.
//
// # Key Functions
//
// SafeGo runs a function once in a goroutine under a timeout:
//
//	async.SafeGo(ctx, logger, 30*time.Second, "schema seed", func(ctx context.Context) error {
//		return fixtures.SeedDemo(ctx, manager)
//	})
//
// Every runs a function on a ticker until the context is done:
//
//	async.Every(ctx, logger, 15*time.Second, "db stats", func(ctx context.Context) error {
//		metrics.RecordDBStats(conn.Primary().Stats())
//		return nil
//	})
//
// A failing run is logged and does not stop later runs. A panic is
// recovered and logged with its stack.
package async
