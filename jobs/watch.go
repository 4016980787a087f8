package jobs

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/logger"
)

// watcher runs jobs when their input file is written or created. Events
// for a file are debounced so that one save triggers one run.
type watcher struct {
	fs       *fsnotify.Watcher
	byPath   map[string][]string
	debounce time.Duration
	fire     func(job string)
	log      *logger.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
	done   chan struct{}
}

// newWatcher watches the directories holding the inputs of jobs. Watching
// the directory keeps working when editors replace the file on save.
func newWatcher(jobs []Job, debounce time.Duration, log *logger.Logger, fire func(job string)) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.ResourceAcquisition("file watcher", err)
	}
	w := &watcher{
		fs:       fsw,
		byPath:   make(map[string][]string),
		debounce: debounce,
		fire:     fire,
		log:      log,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, j := range jobs {
		path, err := filepath.Abs(j.In)
		if err != nil {
			_ = fsw.Close()
			return nil, errors.InvalidInput("in", err.Error())
		}
		w.byPath[path] = append(w.byPath[path], j.Name)
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, errors.ResourceAcquisition(dir, err)
		}
		dirs[dir] = true
	}

	go w.loop()
	log.Debug("Watching input files", logger.Fields("files", len(w.byPath), "dirs", len(dirs)))
	return w, nil
}

func (w *watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			path, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			for _, job := range w.byPath[path] {
				w.schedule(job, path)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("File watcher error")
		}
	}
}

func (w *watcher) schedule(job, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.timers[job]; ok {
		t.Stop()
	}
	w.timers[job] = time.AfterFunc(w.debounce, func() {
		w.log.Debug("Input changed", logger.Fields("job", job, "path", path))
		w.fire(job)
	})
}

// close stops watching and drops pending runs.
func (w *watcher) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	_ = w.fs.Close()
	<-w.done
}
