// Package recipe describes table pipelines declaratively and runs them.
//
// A recipe names how the header row is found and an ordered list of steps.
// It is usually loaded from the config file:
//
//	recipes:
//	  - name: privilege-mask
//	    header_match: Privilege Name
//	    steps:
//	      - {type: join_columns, from: 9, to: 15}
//	      - {type: join_columns, from: 10, to: -1, glue: ";"}
//	      - {type: join_split_lines}
//	      - {type: map_column, column: 6, mapper: sort_list}
//
// Apply turns a recipe into a chain of MutatedTables over any table.
// Every call builds fresh mutation instances, so a recipe can be applied
// any number of times. Runner adds CSV input and output, logging and
// metrics around Apply.
package recipe
