// Package jobs runs recipes from files to sinks on a cron schedule, when the
// input file changes, or on demand.
//
//	jobs:
//	  - name: nightly-masks
//	    recipe: privilege-mask
//	    in: /data/incoming/masks.csv
//	    out: sqlite:/data/reports.db?table=masks
//	    schedule: "0 2 * * *"
//	    watch: true
//
// A job never runs twice at the same time; a trigger that arrives while it
// runs fails with CONFLICT.
package jobs
