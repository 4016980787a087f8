// Package pipeline provides lazy, pull-based streams.
//
// Nothing is read until a terminal (ForEach or Collect) pulls values. Each
// stage pulls from the one before it on the caller's goroutine, so order is
// preserved and back-pressure is implicit.
//
// Table rows are Iterator[table.Row] values, so a table plugs directly
// into a pipeline:
//
//	iter, err := t.Rows()
//	batches := pipeline.Batch(pipeline.From(iter), 500)
//	err = pipeline.ForEach(ctx, batches, insert)
package pipeline
