// Package csvtable adapts delimited text to the table model.
//
// A Source scans a CSV stream for its header row, then yields every
// remaining record as a table row. The stream is decoded through
// golang.org/x/text, so UTF-8 and UTF-16 byte order marks are honoured and
// legacy charsets can be named explicitly.
//
// File-backed sources hold an open file and must be closed; With brackets
// the whole pass:
//
//	err := csvtable.With("report.csv", nil, func(src *csvtable.Source) error {
//	    out := src.Mutate(mutation.NewJoinSplitLines())
//	    _, err := csvtable.WriteFile(ctx, "output.csv", out)
//	    return err
//	})
package csvtable
