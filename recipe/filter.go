package recipe

import (
	"strings"

	"github.com/kbukum/tablemut/table"
)

var filterOps = []string{"eq", "neq", "contains", "empty", "not_empty"}

// newFilter returns the predicate of a filter step. A cell missing from a
// short row reads as empty.
func newFilter(column int, op, value string) func(table.Row) bool {
	cell := func(r table.Row) string {
		if column < len(r) {
			return r[column]
		}
		return ""
	}
	switch op {
	case "eq":
		return func(r table.Row) bool { return cell(r) == value }
	case "neq":
		return func(r table.Row) bool { return cell(r) != value }
	case "contains":
		return func(r table.Row) bool { return strings.Contains(cell(r), value) }
	case "empty":
		return func(r table.Row) bool { return strings.TrimSpace(cell(r)) == "" }
	case "not_empty":
		return func(r table.Row) bool { return strings.TrimSpace(cell(r)) != "" }
	default:
		return func(table.Row) bool { return true }
	}
}
