package cmd

import (
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	sim "github.com/inference-sim/os-sim/sim"
)

// scenarioWatcher reloads a scenario file whenever it changes and publishes the
// valid results. Invalid edits are logged and skipped.
type scenarioWatcher struct {
	w       *fsnotify.Watcher
	path    string
	updates chan *sim.Scenario
	done    chan struct{}
}

// watchScenario watches the directory holding path, since editors often replace
// files by rename rather than writing them in place.
func watchScenario(path string) (*scenarioWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", path)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating watcher")
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, errors.Wrapf(err, "watching %s", filepath.Dir(abs))
	}
	sw := &scenarioWatcher{
		w:       w,
		path:    abs,
		updates: make(chan *sim.Scenario, 1),
		done:    make(chan struct{}),
	}
	go sw.loop()
	return sw, nil
}

// Updates delivers reloaded scenarios. At most one is buffered; a newer reload
// replaces an unconsumed older one.
func (sw *scenarioWatcher) Updates() <-chan *sim.Scenario {
	return sw.updates
}

// Close stops watching and waits for the event loop to exit.
func (sw *scenarioWatcher) Close() error {
	err := sw.w.Close()
	<-sw.done
	return err
}

func (sw *scenarioWatcher) loop() {
	defer close(sw.done)
	for {
		select {
		case ev, ok := <-sw.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != sw.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			sw.reload()
		case err, ok := <-sw.w.Errors:
			if !ok {
				return
			}
			logrus.Warnf("scenario watcher: %v", err)
		}
	}
}

func (sw *scenarioWatcher) reload() {
	sc, err := sim.LoadScenario(sw.path)
	if err == nil {
		err = sc.Validate()
	}
	if err != nil {
		logrus.Warnf("ignoring scenario change: %v", err)
		return
	}
	select {
	case <-sw.updates:
	default:
	}
	sw.updates <- sc
}
