package region

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type regionsFile struct {
	Regions []Descriptor `yaml:"regions"`
}

// Load reads region descriptors from a YAML file.
func Load(path string) ([]Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}
	var doc regionsFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse regions file: %w", err)
	}
	return doc.Regions, nil
}

// Watcher reloads the region set when its backing file changes. A broken
// replacement file is logged and ignored; the last good mapping stays.
type Watcher struct {
	set     *Set
	path    string
	watcher *fsnotify.Watcher
	log     *logrus.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher starts watching the regions file. The directory is watched too,
// so atomic saves (write to temp file, rename over) are picked up.
func NewWatcher(set *Set, path string, log *logrus.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch regions dir: %w", err)
	}

	w := &Watcher{
		set:     set,
		path:    path,
		watcher: fw,
		log:     log,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("Region watcher error")
		}
	}
}

func (w *Watcher) reload() {
	descriptors, err := Load(w.path)
	if err != nil {
		w.log.WithError(err).WithField("path", w.path).Warn("Ignoring broken regions file")
		return
	}
	w.set.Replace(descriptors)
	w.log.WithField("regions", len(descriptors)).Info("Reloaded region descriptors")
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stopCh)
	err := w.watcher.Close()
	<-w.doneCh
	return err
}
