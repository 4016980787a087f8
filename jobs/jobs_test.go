package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/logger"
	"github.com/kbukum/tablemut/observability"
	"github.com/kbukum/tablemut/recipe"
	"github.com/kbukum/tablemut/validation"
)

var upper = recipe.Recipe{
	Name:  "upper",
	Steps: []recipe.Step{{Type: recipe.StepMapColumn, Column: 0, Mapper: "upper"}},
}

const input = "name,mask\nread,r\nwrite,w\n"

func newScheduler(t *testing.T, jobs []Job, opts ...Option) *Scheduler {
	t.Helper()
	reg, err := recipe.NewRegistry(upper)
	if err != nil {
		t.Fatal(err)
	}
	runner := recipe.NewRunner(recipe.WithRunLogger(logger.Nop()))
	s, err := New(reg, runner, jobs, append([]Option{WithLogger(logger.Nop())}, opts...)...)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %v", err)
	}
	fields, _ := appErr.Details["fields"].([]validation.FieldError)
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Field
	}
	return out
}

func TestJobValidate(t *testing.T) {
	valid := Job{Name: "n", Recipe: "upper", In: "in.csv", Out: "out.csv", Schedule: "*/5 * * * *"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name  string
		job   Job
		field string
	}{
		{"missing name", Job{Recipe: "upper", In: "a", Out: "b"}, "name"},
		{"stdin", Job{Name: "n", Recipe: "upper", In: "-", Out: "b"}, "in"},
		{"stdout", Job{Name: "n", Recipe: "upper", In: "a", Out: "-"}, "out"},
		{"bad target", Job{Name: "n", Recipe: "upper", In: "a", Out: "sqlite:x.db"}, "out"},
		{"bad schedule", Job{Name: "n", Recipe: "upper", In: "a", Out: "b", Schedule: "every day"}, "schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := fieldsOf(t, tt.job.Validate())
			found := false
			for _, f := range fields {
				found = found || f == tt.field
			}
			if !found {
				t.Errorf("expected an error on %s, got %v", tt.field, fields)
			}
		})
	}
}

func TestNew_Errors(t *testing.T) {
	reg, _ := recipe.NewRegistry(upper)
	runner := recipe.NewRunner(recipe.WithRunLogger(logger.Nop()))
	job := Job{Name: "n", Recipe: "upper", In: "a", Out: "b"}

	_, err := New(reg, runner, []Job{job, job}, WithLogger(logger.Nop()))
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("duplicate job: expected INVALID_INPUT, got %v", err)
	}

	missing := job
	missing.Recipe = "nope"
	_, err = New(reg, runner, []Job{missing}, WithLogger(logger.Nop()))
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("unknown recipe: expected NOT_FOUND, got %v", err)
	}
}

func TestTrigger(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	out := filepath.Join(dir, "out.csv")
	writeFile(t, in, input)

	s := newScheduler(t, []Job{{Name: "csv", Recipe: "upper", In: in, Out: out}})
	run, err := s.Trigger(context.Background(), "csv")
	if err != nil {
		t.Fatal(err)
	}
	if run.Rows != 2 || run.Trigger != TriggerManual || run.RunID == "" {
		t.Errorf("unexpected run %+v", run)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "name,mask\nREAD,r\nWRITE,w\n" {
		t.Errorf("unexpected output %q", got)
	}

	st, err := s.Get("csv")
	if err != nil {
		t.Fatal(err)
	}
	if st.Running || st.LastRun == nil || st.LastRun.RunID != run.RunID {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestTrigger_SQLite(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	writeFile(t, in, input)

	s := newScheduler(t, []Job{{Name: "db", Recipe: "upper", In: in, Out: "sqlite:" + filepath.Join(dir, "out.db") + "?table=masks"}})
	for i := 0; i < 2; i++ {
		run, err := s.Trigger(context.Background(), "db")
		if err != nil {
			t.Fatal(err)
		}
		if run.Rows != 2 {
			t.Errorf("expected 2 rows, got %d", run.Rows)
		}
	}
}

func TestTrigger_Failure(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.csv")
	s := newScheduler(t, []Job{{Name: "csv", Recipe: "upper", In: filepath.Join(dir, "missing.csv"), Out: out}})

	run, err := s.Trigger(context.Background(), "csv")
	if !errors.Is(err, errors.ErrCodeResourceAcquisition) {
		t.Fatalf("expected RESOURCE_ACQUISITION, got %v", err)
	}
	if run.Error == "" {
		t.Error("expected the run to record its error")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("expected no output file, stat: %v", err)
	}
	if st := s.List()[0]; st.LastRun == nil || st.LastRun.Error == "" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestTrigger_NotFound(t *testing.T) {
	s := newScheduler(t, nil)
	if _, err := s.Trigger(context.Background(), "nope"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	if _, err := s.Get("nope"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestTrigger_AlreadyRunning(t *testing.T) {
	s := newScheduler(t, []Job{{Name: "csv", Recipe: "upper", In: "in.csv", Out: "out.csv"}})
	s.jobs["csv"].running = true

	_, err := s.Trigger(context.Background(), "csv")
	if !errors.Is(err, errors.ErrCodeConflict) {
		t.Errorf("expected CONFLICT, got %v", err)
	}
}

func TestStartStop(t *testing.T) {
	dir := t.TempDir()
	s := newScheduler(t, []Job{
		{Name: "hourly", Recipe: "upper", In: filepath.Join(dir, "in.csv"), Out: filepath.Join(dir, "out.csv"), Schedule: "@hourly"},
		{Name: "manual", Recipe: "upper", In: filepath.Join(dir, "in.csv"), Out: filepath.Join(dir, "out2.csv")},
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	list := s.List()
	if len(list) != 2 || list[0].Name != "hourly" || list[1].Name != "manual" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list[0].NextRun.IsZero() {
		t.Error("expected a next run for the scheduled job")
	}
	if !list[1].NextRun.IsZero() {
		t.Error("expected no next run for the manual job")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Trigger(context.Background(), "manual"); !errors.Is(err, errors.ErrCodeConflict) {
		t.Errorf("expected CONFLICT after stop, got %v", err)
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	out := filepath.Join(dir, "out.csv")

	s := newScheduler(t, []Job{{Name: "watched", Recipe: "upper", In: in, Out: out, Watch: true}},
		WithDebounce(20*time.Millisecond))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop(context.Background())

	tmp := filepath.Join(dir, "in.csv.part")
	writeFile(t, tmp, input)
	if err := os.Rename(tmp, in); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if st, _ := s.Get("watched"); st.LastRun != nil {
			if st.LastRun.Trigger != TriggerWatch || st.LastRun.Error != "" {
				t.Fatalf("unexpected run %+v", st.LastRun)
			}
			got, err := os.ReadFile(out)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != "name,mask\nREAD,r\nWRITE,w\n" {
				t.Errorf("unexpected output %q", got)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watched job did not run")
}

func TestCheckHealth(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	writeFile(t, in, input)
	s := newScheduler(t, []Job{
		{Name: "ok", Recipe: "upper", In: in, Out: filepath.Join(dir, "out.csv")},
		{Name: "broken", Recipe: "upper", In: filepath.Join(dir, "missing.csv"), Out: filepath.Join(dir, "out2.csv")},
	})
	ctx := context.Background()

	if h := s.CheckHealth(ctx); h.Status != observability.HealthStatusUp || h.Details["jobs"] != "2" {
		t.Errorf("unexpected health before any run %+v", h)
	}
	if _, err := s.Trigger(ctx, "broken"); err == nil {
		t.Fatal("expected the broken job to fail")
	}
	if h := s.CheckHealth(ctx); h.Status != observability.HealthStatusDegraded {
		t.Errorf("expected degraded, got %+v", h)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if h := s.CheckHealth(ctx); h.Status != observability.HealthStatusDown {
		t.Errorf("expected down after stop, got %+v", h)
	}
}
