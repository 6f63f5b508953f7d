package backend

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

func (e *Evdev) watch() {
	defer e.wg.Done()

	for {
		select {
		case ev, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			e.handleNodeEvent(ev)
		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			e.log.Warn("Hotplug watcher error", "err", err)
		}
	}
}

func (e *Evdev) handleNodeEvent(ev fsnotify.Event) {
	if !strings.HasPrefix(filepath.Base(ev.Name), "event") {
		return
	}

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		e.nodeRemoved(ev.Name)
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Chmod):
		// udev fixes up permissions after the node appears; every change
		// restarts the wait
		e.scheduleAdd(ev.Name)
	}
}

func (e *Evdev) scheduleAdd(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.suspended || e.seat == "" {
		return
	}
	if _, open := e.devices[path]; open {
		return
	}
	if t, ok := e.debounce[path]; ok {
		t.Reset(e.cfg.Debounce)
		return
	}

	e.log.Debug("Device node appeared", "path", path)
	e.debounce[path] = e.clock.AfterFunc(e.cfg.Debounce, func() {
		e.mu.Lock()
		delete(e.debounce, path)
		added := false
		if !e.closed && !e.suspended {
			added = e.addDeviceLocked(path)
		}
		e.mu.Unlock()

		if added {
			e.signal()
		}
	})
}

func (e *Evdev) nodeRemoved(path string) {
	e.mu.Lock()
	if t, ok := e.debounce[path]; ok {
		t.Stop()
		delete(e.debounce, path)
	}
	ed, ok := e.devices[path]
	if !ok || e.closed {
		e.mu.Unlock()
		return
	}
	e.pending = append(e.pending, e.removeDeviceLocked(ed)...)
	e.mu.Unlock()

	e.signal()
}

func (e *Evdev) stopDebounceLocked() {
	for path, t := range e.debounce {
		t.Stop()
		delete(e.debounce, path)
	}
}
