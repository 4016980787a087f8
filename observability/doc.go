// Package observability wires OpenTelemetry metrics and tracing into table
// pipelines.
//
// Metrics implements table.Observer and counts row events per stage:
//
//	metrics, shutdown, err := observability.Setup(ctx, cfg.Telemetry, "tablemut", version.Get().Version, "production")
//	defer shutdown(ctx)
//
//	t := table.NewMutated(src, m, table.WithObserver(metrics))
//
// A recipe run gets a span and a run counter:
//
//	run := observability.NewRun("report", runID, "", metrics)
//	ctx, span := run.Start(ctx)
//	n, err := csvtable.Write(ctx, w, t)
//	run.End(ctx, span, n, err)
package observability
