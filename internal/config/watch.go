package config

import (
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/orizon-lang/g1core/internal/gcevent"
)

// Watcher hot-reloads a Tunables file, letting an operator adjust
// live_threshold_percent / allowed_waste / time targets without
// restarting the process. Grounded on the teacher's FSNotifyWatcher
// (internal/runtime/vfs/watch_fsnotify.go): a single background loop
// translating fsnotify's Events/Errors channels, relocated here to
// atomically swap a parsed snapshot instead of relaying raw Event
// structs to a caller-owned channel, since this watcher has exactly one
// file and one consumer (the running collector).
type Watcher struct {
	w    *fsnotify.Watcher
	path string

	current atomic.Pointer[Tunables]
	events  *gcevent.Bus

	done chan struct{}
}

// NewWatcher loads path once, then starts a background loop that
// reloads it on every write/create event and publishes any load error
// to events at gcevent.Debug (a malformed edit mid-save is expected and
// should not be fatal; the previous good snapshot stays live).
func NewWatcher(path string, events *gcevent.Bus) (*Watcher, error) {
	initial, err := Load(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	cw := &Watcher{w: fw, path: path, events: events, done: make(chan struct{})}
	cw.current.Store(&initial)

	go cw.loop()

	return cw, nil
}

func (cw *Watcher) loop() {
	defer close(cw.done)

	for {
		select {
		case ev, ok := <-cw.w.Events:
			if !ok {
				return
			}

			if ev.Name != cw.path {
				continue
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			cw.reload()

		case err, ok := <-cw.w.Errors:
			if !ok {
				return
			}

			cw.emit(gcevent.Debug, err)
		}
	}
}

func (cw *Watcher) reload() {
	t, err := Load(cw.path)
	if err != nil {
		cw.emit(gcevent.Debug, err)
		return
	}

	cw.current.Store(&t)

	if cw.events != nil {
		cw.events.Emit(gcevent.Info, "gc.config.reload", 0,
			gcevent.F("path", cw.path),
			gcevent.F("live_threshold_percent", t.LiveThresholdPercent),
			gcevent.F("allowed_waste", t.AllowedWaste))
	}
}

func (cw *Watcher) emit(level gcevent.Level, err error) {
	if cw.events == nil {
		return
	}

	cw.events.Emit(level, "gc.config.reload_error", 0, gcevent.F("error", err.Error()))
}

// Current returns the most recently loaded, validated snapshot.
func (cw *Watcher) Current() Tunables {
	return *cw.current.Load()
}

// Close stops the background loop and releases the fsnotify watch.
func (cw *Watcher) Close() error {
	err := cw.w.Close()
	<-cw.done

	return err
}
