package jobs

import (
	"github.com/robfig/cron/v3"

	"github.com/kbukum/tablemut/sink"
	"github.com/kbukum/tablemut/validation"
)

// Job binds a recipe to an input file and an output target.
type Job struct {
	Name   string `yaml:"name" json:"name" mapstructure:"name" validate:"required"`
	Recipe string `yaml:"recipe" json:"recipe" mapstructure:"recipe" validate:"required"`
	In     string `yaml:"in" json:"in" mapstructure:"in" validate:"required"`
	// Out is a sink target, e.g. a CSV path or sqlite:reports.db?table=t.
	Out string `yaml:"out" json:"out" mapstructure:"out" validate:"required"`
	// Schedule is a standard five-field cron expression or a descriptor
	// such as @hourly. Empty means no schedule.
	Schedule string `yaml:"schedule" json:"schedule,omitempty" mapstructure:"schedule"`
	// Watch runs the job when In is written or created.
	Watch bool `yaml:"watch" json:"watch,omitempty" mapstructure:"watch"`
}

// Validate checks required fields, the schedule and the output target.
func (j *Job) Validate() error {
	v := validation.New()
	v.Merge("", validation.Validate(j))
	v.Custom(j.In != "-", "in", "must be a file")
	if j.Schedule != "" {
		_, err := cron.ParseStandard(j.Schedule)
		v.Custom(err == nil, "schedule", "invalid cron expression")
	}
	if j.Out != "" {
		t, err := sink.ParseTarget(j.Out)
		v.Custom(err == nil, "out", "invalid target")
		v.Custom(err != nil || t.Kind != sink.KindStdout, "out", "must not be stdout")
	}
	return v.Err()
}
