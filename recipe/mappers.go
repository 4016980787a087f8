package recipe

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kbukum/tablemut/validation"
)

type mapperFactory struct {
	minArgs, maxArgs int
	build            func(args []string) func(string) string
}

var mappers = map[string]mapperFactory{
	// sort_list sorts the items of a delimited list, "," unless args[0]
	// names another separator.
	"sort_list": {0, 1, func(args []string) func(string) string {
		sep := ","
		if len(args) == 1 && args[0] != "" {
			sep = args[0]
		}
		return func(s string) string {
			items := strings.Split(s, sep)
			slices.Sort(items)
			return strings.Join(items, sep)
		}
	}},
	"trim":  {0, 0, func([]string) func(string) string { return strings.TrimSpace }},
	"upper": {0, 0, func([]string) func(string) string { return strings.ToUpper }},
	"lower": {0, 0, func([]string) func(string) string { return strings.ToLower }},
	"replace": {2, 2, func(args []string) func(string) string {
		return strings.NewReplacer(args[0], args[1]).Replace
	}},
	// strip_newlines replaces line breaks with args[0], a space by default.
	"strip_newlines": {0, 1, func(args []string) func(string) string {
		with := " "
		if len(args) == 1 {
			with = args[0]
		}
		r := strings.NewReplacer("\r\n", with, "\n", with, "\r", with)
		return r.Replace
	}},
}

func newMapper(name string, args []string) (func(string) string, error) {
	f, ok := mappers[name]
	v := validation.New()
	if !ok {
		v.OneOf("mapper", name, Mappers())
		return nil, v.Err()
	}
	if len(args) < f.minArgs || len(args) > f.maxArgs {
		if f.minArgs == f.maxArgs {
			v.Count("args", len(args), f.minArgs)
		} else {
			v.AddError("args", fmt.Sprintf("expects at most %d values, got %d", f.maxArgs, len(args)))
		}
		return nil, v.Err()
	}
	return f.build(args), nil
}
