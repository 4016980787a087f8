// Package mutation provides the built-in table mutations.
//
//   - JoinColumns merges a half-open column range into one column.
//   - JoinSplitLines merges physical rows whose first cell is empty into
//     the preceding logical row.
//   - MapColumn rewrites one column with a cell mapper.
//   - RowsFilter drops rows a predicate rejects.
//
// JoinSplitLines keeps state across rows; every instance serves one pass.
package mutation
