// Package bootstrap runs the tablemut process lifecycle: config defaults
// and validation, logger setup, start and stop hooks, and signal handling.
//
// A long-running server uses Run, which blocks until SIGINT/SIGTERM. A
// one-shot recipe run uses RunTask, which cancels the task on a signal.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.OnStop(shutdownTelemetry)
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//	    return runRecipe(ctx)
//	})
package bootstrap
