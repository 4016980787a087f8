package main

import (
	"fmt"
	"unicode/utf8"

	"github.com/kbukum/tablemut/config"
	"github.com/kbukum/tablemut/csvtable"
	"github.com/kbukum/tablemut/jobs"
	"github.com/kbukum/tablemut/observability"
	"github.com/kbukum/tablemut/recipe"
	"github.com/kbukum/tablemut/server"
	"github.com/kbukum/tablemut/validation"
	"github.com/kbukum/tablemut/version"
)

// AppConfig is the tablemut configuration file.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Output    OutputConfig         `yaml:"output" mapstructure:"output"`
	Recipes   []recipe.Recipe      `yaml:"recipes" mapstructure:"recipes"`
	Jobs      []jobs.Job           `yaml:"jobs" mapstructure:"jobs"`
	Server    server.Config        `yaml:"server" mapstructure:"server"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
}

// OutputConfig controls how result tables are written.
type OutputConfig struct {
	Comma string `yaml:"comma" mapstructure:"comma" validate:"omitempty,single_rune"`
	CRLF  bool   `yaml:"crlf" mapstructure:"crlf"`
}

func (o OutputConfig) writeOptions() []csvtable.WriteOption {
	var opts []csvtable.WriteOption
	if o.Comma != "" {
		r, _ := utf8.DecodeRuneInString(o.Comma)
		opts = append(opts, csvtable.WithOutputComma(r))
	}
	if o.CRLF {
		opts = append(opts, csvtable.WithCRLF())
	}
	return opts
}

// ApplyDefaults fills every section.
func (c *AppConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "tablemut"
	}
	if c.Version == "" {
		c.Version = version.GetVersionInfo().Short()
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
}

// Validate checks every section and reports all field errors at once.
func (c *AppConfig) Validate() error {
	v := validation.New()
	v.Merge("", c.ServiceConfig.Validate())
	v.Merge("output", validation.Validate(c.Output))
	v.Merge("server", c.Server.Validate())
	v.Merge("telemetry", validation.Validate(c.Telemetry))

	seen := make(map[string]bool, len(c.Recipes))
	for i := range c.Recipes {
		field := fmt.Sprintf("recipes[%d]", i)
		v.Merge(field, c.Recipes[i].Validate())
		if name := c.Recipes[i].Name; name != "" {
			v.Custom(!seen[name], field+".name", "duplicate recipe "+name)
			seen[name] = true
		}
	}
	names := make(map[string]bool, len(c.Jobs))
	for i := range c.Jobs {
		field := fmt.Sprintf("jobs[%d]", i)
		v.Merge(field, c.Jobs[i].Validate())
		j := c.Jobs[i]
		if j.Recipe != "" {
			v.Custom(seen[j.Recipe], field+".recipe", "unknown recipe "+j.Recipe)
		}
		if j.Name != "" {
			v.Custom(!names[j.Name], field+".name", "duplicate job "+j.Name)
			names[j.Name] = true
		}
	}
	return v.Err()
}
