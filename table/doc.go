// Package table defines the row-streaming table model and the mutation
// pipeline built on top of it.
//
// A Table exposes a fixed Header and a lazy, single-pass sequence of rows.
// A Mutation rewrites the header once, then sees every row in source order
// and may transform, drop or merge it; at end of stream it may emit one
// trailing row. A MutatedTable composes a source Table with a Mutation into
// a new Table:
//
//	src := table.FromRows(header, rows)
//	out := src.Mutate(mutation.NewJoinColumns(3, 5)).
//		Mutate(mutation.NewJoinSplitLines())
//	rows, err := table.Collect(ctx, out)
//
// Cells are opaque text addressed by position. Row production is pull
// based: pulling a row from the outermost table pulls from the innermost
// source, one row at a time, on the caller's goroutine.
//
// Mutations carry per-pass state. Build a fresh pipeline, with fresh
// mutation instances, for every pass.
package table
