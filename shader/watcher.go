package shader

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Watcher reports shader files that were written or replaced. Editors often
// save by renaming a temp file over the original, so the containing
// directories are watched rather than the files themselves.
type Watcher struct {
	watcher *fsnotify.Watcher
	log     *slog.Logger
	files   map[string]bool
	changes chan string
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher starts watching paths. Changes are delivered on Changes; a
// full channel drops the notification since the reader only needs to know
// that a reload is due.
func NewWatcher(log *slog.Logger, paths ...string) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "shader watcher")
	}
	w := &Watcher{
		watcher: fw,
		log:     log,
		files:   make(map[string]bool, len(paths)),
		changes: make(chan string, len(paths)+1),
		done:    make(chan struct{}),
	}
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "watch %s", p)
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "watch %s", dir)
		}
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Changes delivers absolute paths of changed shader files.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			path, err := filepath.Abs(event.Name)
			if err != nil || !w.files[path] {
				continue
			}
			select {
			case w.changes <- path:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("shader watcher", "error", err)
		}
	}
}

func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return errors.Wrap(err, "close shader watcher")
}
