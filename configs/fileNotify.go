package configs

import (
	"gopkg.in/fsnotify.v1"
)

type Read[T any] interface {
	FilePath() string
	ReadConfig() (T, error)
}

type fileManager[T any] struct {
	file    Read[T]
	watcher *fsnotify.Watcher
	errs    func(error)
}

type FileOption func(*fileOptions)

type fileOptions struct {
	errs func(error)
}

// WithErrorHandler receives read and watch errors; by default they are dropped
// and the previous value stays current.
func WithErrorHandler(fn func(error)) FileOption {
	return func(o *fileOptions) {
		o.errs = fn
	}
}

// NewFileManager reads conf once, then reloads it on every write to its
// file. The returned stop function ends the watch and closes module channels.
func NewFileManager[T any](conf Read[T], opts ...FileOption) (*ConfigManager[T], func() error, error) {
	options := &fileOptions{errs: func(error) {}}
	for _, opt := range opts {
		opt(options)
	}

	initial, readErr := conf.ReadConfig()
	if readErr != nil {
		return nil, nil, readErr
	}

	watcher, fileWatchErr := fsnotify.NewWatcher()
	if fileWatchErr != nil {
		return nil, nil, fileWatchErr
	}

	if addErr := watcher.Add(conf.FilePath()); addErr != nil {
		watcher.Close()
		return nil, nil, addErr
	}
	manager := NewManager[T](&fileManager[T]{
		file:    conf,
		watcher: watcher,
		errs:    options.errs,
	}, &initial)
	return manager, watcher.Close, nil
}

func (f *fileManager[T]) Reload(update chan<- T) {
	defer close(update)

	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				data, readErr := f.file.ReadConfig()
				if readErr != nil {
					f.errs(readErr)
					continue
				}
				update <- data
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.errs(err)
		}
	}
}
