// Command tablemut runs table recipes over CSV files, or serves them over
// HTTP with -serve.
//
//	tablemut -c config.yml -r privilege-mask -i report.csv -o out.csv
//	tablemut -c config.yml -serve --server.port 9090
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/kbukum/tablemut/bootstrap"
	"github.com/kbukum/tablemut/config"
	"github.com/kbukum/tablemut/csvtable"
	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/jobs"
	"github.com/kbukum/tablemut/logger"
	"github.com/kbukum/tablemut/observability"
	"github.com/kbukum/tablemut/recipe"
	"github.com/kbukum/tablemut/server"
	"github.com/kbukum/tablemut/sink"
	"github.com/kbukum/tablemut/version"
)

const stdio = "-"

type options struct {
	configFile string
	recipe     string
	in         string
	out        string
	serve      bool
	list       bool
	version    bool
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "tablemut:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (*pflag.FlagSet, options, error) {
	var o options
	fs := pflag.NewFlagSet("tablemut", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&o.configFile, "config", "c", "", "path to the config file (default: search cmd/tablemut, config, .)")
	fs.StringVarP(&o.recipe, "recipe", "r", "", "recipe to run; optional when the config defines exactly one")
	fs.StringVarP(&o.in, "in", "i", stdio, "input CSV file, - for stdin")
	fs.StringVarP(&o.out, "out", "o", stdio, "output: - for stdout, a CSV path, or a sqlite:, postgres://, mysql:// or mongodb:// target")
	fs.BoolVar(&o.serve, "serve", false, "serve the recipes over HTTP")
	fs.BoolVarP(&o.list, "list", "l", false, "list the configured recipes and exit")
	fs.BoolVarP(&o.version, "version", "v", false, "print the version and exit")

	// Config keys that are handy to override per invocation.
	fs.String("logging.level", "", "log level (trace, debug, info, warn, error)")
	fs.String("environment", "", "deployment environment")
	fs.Int("server.port", 0, "HTTP port for -serve")
	fs.Bool("telemetry.enabled", false, "export metrics and traces over OTLP")

	err := fs.Parse(args)
	return fs, o, err
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs, o, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	if o.version {
		_, err := fmt.Fprintln(stdout, version.GetVersionInfo())
		return err
	}

	var cfg AppConfig
	loadOpts := []config.LoaderOption{config.WithEnvPrefix("TABLEMUT"), config.WithFlags(fs)}
	if o.configFile != "" {
		loadOpts = append(loadOpts, config.WithConfigFile(o.configFile))
	}
	if err := config.LoadConfig("tablemut", &cfg, loadOpts...); err != nil {
		return err
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		return err
	}

	reg, err := recipe.NewRegistry(cfg.Recipes...)
	if err != nil {
		return err
	}
	if o.list {
		return listRecipes(stdout, reg)
	}
	var r recipe.Recipe
	if !o.serve {
		if r, err = pickRecipe(reg, o.recipe); err != nil {
			return err
		}
	}

	metrics, shutdown, err := observability.Setup(ctx, cfg.Telemetry, cfg.Name, cfg.Version, cfg.Environment)
	if err != nil {
		return err
	}
	app.OnStop(bootstrap.Hook(shutdown))

	runner := recipe.NewRunner(
		recipe.WithRunLogger(app.Logger),
		recipe.WithMetrics(metrics),
		recipe.WithOutput(cfg.Output.writeOptions()...),
	)

	if o.serve {
		srvOpts := []server.Option{
			server.WithServiceName(cfg.Name),
			server.WithRunner(runner),
			server.WithServerMetrics(metrics),
			server.WithHealthCheckers(reg),
		}
		if len(cfg.Jobs) > 0 {
			sched, err := jobs.New(reg, runner, cfg.Jobs,
				jobs.WithLogger(app.Logger.WithComponent("jobs")),
				jobs.WithSinkOptions(sink.WithCSVOptions(cfg.Output.writeOptions()...)),
			)
			if err != nil {
				return err
			}
			app.OnStart(sched.Start)
			app.OnStop(sched.Stop)
			srvOpts = append(srvOpts, server.WithJobs(sched), server.WithHealthCheckers(sched))
		}
		srv := server.New(cfg.Server, reg, app.Logger, srvOpts...)
		app.OnStart(srv.Start)
		app.OnStop(srv.Stop)
		return app.Run(ctx)
	}

	return app.RunTask(ctx, func(ctx context.Context) error {
		return runFile(ctx, runner, r, o.in, o.out, cfg.Output.writeOptions(), stdin, stdout)
	})
}

func pickRecipe(reg *recipe.Registry, name string) (recipe.Recipe, error) {
	if name != "" {
		return reg.Get(name)
	}
	if all := reg.List(); len(all) == 1 {
		return all[0], nil
	}
	return recipe.Recipe{}, errors.MissingField("recipe")
}

func listRecipes(w io.Writer, reg *recipe.Registry) error {
	for _, r := range reg.List() {
		steps := make([]string, 0, len(r.Steps))
		for _, s := range r.Steps {
			steps = append(steps, s.Type)
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, strings.Join(steps, ","), r.Description); err != nil {
			return err
		}
	}
	return nil
}

// runFile runs r from in to the sink target out. A partially written output
// file is removed when the run fails.
func runFile(ctx context.Context, runner *recipe.Runner, r recipe.Recipe, in, out string, output []csvtable.WriteOption, stdin io.Reader, stdout io.Writer) (err error) {
	src := stdin
	if in != stdio {
		f, openErr := os.Open(in)
		if openErr != nil {
			return errors.ResourceAcquisition(in, openErr)
		}
		defer f.Close()
		src = f
	}

	dst, err := sink.Open(ctx, out,
		sink.WithStdout(stdout),
		sink.WithCSVOptions(output...),
		sink.WithLogger(logger.WithComponent("sink")),
	)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	res, err := runner.RunTo(ctx, r, src, dst, recipe.Request{RunID: uuid.NewString()})
	if err != nil {
		return err
	}
	logger.Debug("Output written", logger.Fields(logger.FieldRecipe, res.Recipe, logger.FieldRows, res.Rows, "sink", fmt.Sprintf("%T", dst)))
	return nil
}
