package catalog

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"bikeshop-agent/internal/common/logger"
)

// Watcher notifies when the catalog source file changes so the index can be
// refreshed before the next query.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	logger  logger.Logger
	done    chan struct{}
}

func NewWatcher(path string, log logger.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors replace files, which drops the watch
	// on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		watcher: fw,
		path:    filepath.Clean(path),
		logger:  log.WithFields(map[string]interface{}{"component": "catalog-watcher"}),
		done:    make(chan struct{}),
	}, nil
}

// Start invokes onChange for every write/create/rename of the catalog file
// until Close is called.
func (w *Watcher) Start(onChange func()) {
	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				w.logger.Info("catalog file changed", map[string]interface{}{
					"path": w.path,
					"op":   event.Op.String(),
				})
				onChange()
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("catalog watcher error", map[string]interface{}{
					"error": err.Error(),
				})
			case <-w.done:
				return
			}
		}
	}()
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
