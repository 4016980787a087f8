package jobs

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/logger"
	"github.com/kbukum/tablemut/observability"
	"github.com/kbukum/tablemut/recipe"
	"github.com/kbukum/tablemut/sink"
)

// Trigger sources recorded on a Run.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerWatch    = "watch"
)

// Run is the outcome of one job execution.
type Run struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Rows       int       `json:"rows"`
	Warnings   int       `json:"warnings"`
	Error      string    `json:"error,omitempty"`
}

// Status describes a job and its last run.
type Status struct {
	Job
	Running bool      `json:"running"`
	NextRun time.Time `json:"next_run,omitzero"`
	LastRun *Run      `json:"last_run,omitempty"`
}

type state struct {
	job     Job
	recipe  recipe.Recipe
	entry   cron.EntryID
	running bool
	last    *Run
}

// Scheduler owns the cron scheduler and file watcher of a set of jobs.
type Scheduler struct {
	runner   *recipe.Runner
	log      *logger.Logger
	sinkOpts []sink.Option
	debounce time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	order   []string
	jobs    map[string]*state
	stopped bool
	running sync.WaitGroup

	cron   *cron.Cron
	watch  *watcher
	cancel context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. The default is the "jobs" component logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithSinkOptions sets the options passed to sink.Open for every run.
func WithSinkOptions(opts ...sink.Option) Option {
	return func(s *Scheduler) { s.sinkOpts = append(s.sinkOpts, opts...) }
}

// WithDebounce sets how long a watched file must stay quiet before its
// jobs run. The default is 500ms.
func WithDebounce(d time.Duration) Option {
	return func(s *Scheduler) { s.debounce = d }
}

// WithTimeout bounds scheduled and watched runs. The default is 5 minutes.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// New validates jobs and resolves their recipes in reg.
func New(reg *recipe.Registry, runner *recipe.Runner, jobs []Job, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		runner:   runner,
		debounce: 500 * time.Millisecond,
		timeout:  5 * time.Minute,
		jobs:     make(map[string]*state, len(jobs)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.WithComponent("jobs")
	}

	for i, j := range jobs {
		if err := j.Validate(); err != nil {
			return nil, err
		}
		if _, exists := s.jobs[j.Name]; exists {
			return nil, errors.InvalidInput(fmt.Sprintf("jobs[%d].name", i), fmt.Sprintf("job %q is defined twice", j.Name))
		}
		r, err := reg.Get(j.Recipe)
		if err != nil {
			return nil, err
		}
		s.jobs[j.Name] = &state{job: j, recipe: r}
		s.order = append(s.order, j.Name)
	}
	return s, nil
}

// Start schedules the cron jobs and starts watching input files. Runs use a
// context derived from ctx's values that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	base, cancel := context.WithCancel(context.WithoutCancel(ctx))

	cl := cronLogger{s.log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl)))
	var watched []Job

	s.mu.Lock()
	for _, name := range s.order {
		st := s.jobs[name]
		if st.job.Schedule != "" {
			id, err := c.AddFunc(st.job.Schedule, func() { s.runInBackground(base, name, TriggerSchedule) })
			if err != nil {
				s.mu.Unlock()
				cancel()
				return errors.InvalidInput("schedule", err.Error())
			}
			st.entry = id
		}
		if st.job.Watch {
			watched = append(watched, st.job)
		}
	}
	s.mu.Unlock()

	if len(watched) > 0 {
		w, err := newWatcher(watched, s.debounce, s.log, func(name string) {
			s.runInBackground(base, name, TriggerWatch)
		})
		if err != nil {
			cancel()
			return err
		}
		s.watch = w
	}

	c.Start()
	s.mu.Lock()
	s.cron = c
	s.cancel = cancel
	s.mu.Unlock()
	s.log.Info("Job scheduler started", logger.Fields("jobs", len(s.order), "scheduled", len(c.Entries()), "watched", len(watched)))
	return nil
}

// Stop stops scheduling, cancels running jobs and waits for them to return
// or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	if s.watch != nil {
		s.watch.close()
	}
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("Job scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

// Trigger runs the named job now and waits for it.
func (s *Scheduler) Trigger(ctx context.Context, name string) (Run, error) {
	return s.run(ctx, name, TriggerManual)
}

// List returns the status of every job in configuration order.
func (s *Scheduler) List() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.statusLocked(s.jobs[name]))
	}
	return out
}

// Get returns the status of the named job.
func (s *Scheduler) Get(name string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.jobs[name]
	if !ok {
		return Status{}, errors.NotFound("job", name)
	}
	return s.statusLocked(st), nil
}

func (s *Scheduler) statusLocked(st *state) Status {
	status := Status{Job: st.job, Running: st.running}
	if st.last != nil {
		last := *st.last
		status.LastRun = &last
	}
	if s.cron != nil && st.entry != 0 {
		status.NextRun = s.cron.Entry(st.entry).Next
	}
	return status
}

func (s *Scheduler) runInBackground(ctx context.Context, name, trigger string) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.run(ctx, name, trigger); errors.Is(err, errors.ErrCodeConflict) {
		s.log.Warn("Skipping job run", logger.Fields("job", name, "trigger", trigger, "reason", err.Error()))
	}
}

// run executes one job unless it is already running.
func (s *Scheduler) run(ctx context.Context, name, trigger string) (run Run, err error) {
	s.mu.Lock()
	st, ok := s.jobs[name]
	switch {
	case !ok:
		s.mu.Unlock()
		return Run{}, errors.NotFound("job", name)
	case s.stopped:
		s.mu.Unlock()
		return Run{}, errors.Conflict("job", "the job scheduler is stopped")
	case st.running:
		s.mu.Unlock()
		return Run{}, errors.Conflict("job", fmt.Sprintf("job %s is already running", name))
	}
	st.running = true
	s.running.Add(1)
	job, r := st.job, st.recipe
	s.mu.Unlock()

	run = Run{RunID: uuid.NewString(), Trigger: trigger, StartedAt: time.Now()}
	log := s.log.WithFields(logger.Fields("job", name, logger.FieldRunID, run.RunID, "trigger", trigger))
	defer func() {
		run.FinishedAt = time.Now()
		if err != nil {
			run.Error = err.Error()
			log.WithError(err).Error("Job failed")
		} else {
			log.Info("Job finished", logger.Fields(logger.FieldRows, run.Rows, "warnings", run.Warnings))
		}
		s.mu.Lock()
		st.running = false
		st.last = &run
		s.mu.Unlock()
		s.running.Done()
	}()

	res, err := s.execute(ctx, job, r, run.RunID)
	run.Rows = res.Rows
	run.Warnings = len(res.Warnings)
	return run, err
}

func (s *Scheduler) execute(ctx context.Context, job Job, r recipe.Recipe, runID string) (res recipe.Result, err error) {
	in, err := os.Open(job.In)
	if err != nil {
		return res, errors.ResourceAcquisition(job.In, err)
	}
	defer in.Close()

	opts := append(slices.Clone(s.sinkOpts), sink.WithLogger(s.log))
	dst, err := sink.Open(ctx, job.Out, opts...)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return s.runner.RunTo(ctx, r, in, dst, recipe.Request{RunID: runID})
}

// cronLogger routes cron's logging through the service logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, logger.Fields(keysAndValues...))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).Error("cron: "+msg, logger.Fields(keysAndValues...))
}

// CheckHealth reports the scheduler as degraded while the last run of any
// job has failed.
func (s *Scheduler) CheckHealth(context.Context) observability.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := observability.Health{Name: "jobs", Status: observability.HealthStatusUp}
	var failing []string
	running := 0
	for _, name := range s.order {
		st := s.jobs[name]
		if st.running {
			running++
		}
		if st.last != nil && st.last.Error != "" {
			failing = append(failing, name)
		}
	}
	h.Details = map[string]string{
		"jobs":    strconv.Itoa(len(s.order)),
		"running": strconv.Itoa(running),
	}
	if s.stopped {
		h.Status = observability.HealthStatusDown
		h.Message = "scheduler stopped"
	} else if len(failing) > 0 {
		h.Status = observability.HealthStatusDegraded
		h.Message = "last run failed: " + strings.Join(failing, ", ")
	}
	return h
}
