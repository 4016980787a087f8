package recipe

import (
	"context"
	"io"

	"github.com/kbukum/tablemut/csvtable"
	"github.com/kbukum/tablemut/logger"
	"github.com/kbukum/tablemut/observability"
	"github.com/kbukum/tablemut/sink"
	"github.com/kbukum/tablemut/table"
)

// Runner runs recipes from a CSV reader to a sink.
type Runner struct {
	log     *logger.Logger
	metrics *observability.Metrics
	output  []csvtable.WriteOption
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunLogger sets the logger. The default is the "recipe" component logger.
func WithRunLogger(l *logger.Logger) RunnerOption {
	return func(r *Runner) { r.log = l }
}

// WithMetrics records row and run metrics.
func WithMetrics(m *observability.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithOutput sets the CSV output options.
func WithOutput(opts ...csvtable.WriteOption) RunnerOption {
	return func(r *Runner) { r.output = append(r.output, opts...) }
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.WithComponent("recipe")
	}
	return r
}

// Request identifies one run.
type Request struct {
	RunID     string
	RequestID string
	// Source overrides the recipe's input options, e.g. a delimiter passed
	// with an HTTP request.
	Source []csvtable.Option
}

// Result summarizes a finished run.
type Result struct {
	Recipe   string
	RunID    string
	Header   table.Header
	Rows     int
	Warnings []table.ShapeMismatch
}

// Run reads in with the recipe's input settings, applies the recipe and
// writes the result to out as CSV.
func (rn *Runner) Run(ctx context.Context, r Recipe, in io.Reader, out io.Writer, req Request) (Result, error) {
	return rn.RunTo(ctx, r, in, sink.NewCSV(out, rn.output...), req)
}

// RunTo is Run with an arbitrary destination. dst is not closed.
func (rn *Runner) RunTo(ctx context.Context, r Recipe, in io.Reader, dst sink.Sink, req Request) (res Result, err error) {
	res = Result{Recipe: r.Name, RunID: req.RunID}
	log := rn.log.WithFields(logger.Fields(logger.FieldRecipe, r.Name, logger.FieldRunID, req.RunID))
	if req.RequestID != "" {
		log = log.WithFields(logger.Fields(logger.FieldRequestID, req.RequestID))
	}

	run := observability.NewRun(r.Name, req.RunID, req.RequestID, rn.metrics)
	ctx, span := run.Start(ctx)
	defer func() {
		run.End(ctx, span, res.Rows, err)
		fields := logger.Fields(logger.FieldRows, res.Rows, "warnings", len(res.Warnings))
		timing := logger.DurationFields("run", run.Duration())
		if err != nil {
			log.WithError(err).Error("Recipe run failed", fields, timing)
			return
		}
		log.Info("Recipe run finished", fields, timing)
	}()

	srcOpts := append(r.SourceOptions(), csvtable.WithLogger(log), csvtable.WithName(r.Name))
	src, err := csvtable.NewSource(in, append(srcOpts, req.Source...)...)
	if err != nil {
		return res, err
	}

	tableOpts := []table.Option{table.WithLogger(log)}
	if rn.metrics != nil {
		tableOpts = append(tableOpts, table.WithObserver(rn.metrics))
	}
	t, err := Apply(src, r, tableOpts...)
	if err != nil {
		return res, err
	}
	res.Header = t.Header()

	log.Debug("Running recipe", logger.Fields("steps", len(r.Steps), "header", res.Header))
	res.Rows, err = dst.Write(ctx, t)
	res.Warnings = table.Warnings(t)
	return res, err
}
