package policyfile

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/rowlock/rowlock/policy"
)

// Watcher reloads a policy file when it changes on disk.
type Watcher struct {
	fw   *fsnotify.Watcher
	path string

	closeOnce sync.Once
	done      chan struct{}
}

// Watch loads path and watches it for changes. Each successful reload
// invokes onChange with the new schema; read or parse failures invoke
// onError and keep the previous schema in effect. The directory is
// watched rather than the file itself, so atomic-rename updates are
// picked up.
func Watch(path string, onChange func(policy.Schema), onError func(error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{fw: fw, path: path, done: make(chan struct{})}
	go w.loop(onChange, onError)
	return w, nil
}

func (w *Watcher) loop(onChange func(policy.Schema), onError func(error)) {
	base := filepath.Base(w.path)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			schema, err := Load(w.path)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			onChange(schema)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fw.Close()
	})
	return err
}
