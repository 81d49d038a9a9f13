package sdfaux

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to a single file after writes have settled.
// The containing directory is watched so editors that replace the file on
// save are handled.
type Watcher struct {
	w        *fsnotify.Watcher
	name     string
	debounce time.Duration
	changes  chan struct{}
	done     chan struct{}
	log      *slog.Logger
	wg       sync.WaitGroup
}

// NewWatcher starts watching filename. A change is delivered on
// [Watcher.Changes] once no event arrived for debounce.
func NewWatcher(filename string, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = fw.Add(filepath.Dir(abs))
	if err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		w:        fw,
		name:     abs,
		debounce: debounce,
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
		log:      log,
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Changes receives a value after the watched file changed. Changes that
// happen before the previous one is received are coalesced.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

// Close stops the watcher.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return errors.New("watcher already closed")
	default:
	}
	close(w.done)
	err := w.w.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.name {
				continue
			}
			switch {
			case event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Rename == fsnotify.Rename:
				w.log.Debug("graph file event", slog.String("op", event.Op.String()))
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.log.Warn("file watcher error", slog.String("err", err.Error()))
		case <-timer.C:
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}
