package fcfiledata

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/figchain/go-client-sdk/subsystems"
)

// debounceDelay absorbs the bursts of events editors produce for a single save.
const debounceDelay = 100 * time.Millisecond

// fileWatchStrategy implements subsystems.PollingStrategy by watching the data files
// with fsnotify and republishing all of them whenever one changes.
type fileWatchStrategy struct {
	paths   []string
	sink    subsystems.UpdateSink
	loggers ldlog.Loggers

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newFileWatchStrategy(paths []string, sink subsystems.UpdateSink, loggers ldlog.Loggers) *fileWatchStrategy {
	return &fileWatchStrategy{
		paths:   paths,
		sink:    sink,
		loggers: loggers,
		quit:    make(chan struct{}),
	}
}

// Start implements subsystems.PollingStrategy.
func (s *fileWatchStrategy) Start() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.loggers.Errorf("Unable to create file watcher: %s", err)
		return
	}

	// Watch each file's directory as well as the file itself; editors that replace the
	// file on save would otherwise drop the watch.
	watched := make(map[string]bool)
	for _, p := range s.paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			s.loggers.Errorf("Unable to resolve path %s: %s", p, err)
			continue
		}
		watched[abs] = true
		if err := watcher.Add(abs); err != nil {
			s.loggers.Errorf("Unable to watch %s: %s", abs, err)
		}
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			s.loggers.Errorf("Unable to watch %s: %s", filepath.Dir(abs), err)
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = watcher.Close() }()
		s.run(watcher, watched)
	}()
	s.loggers.Infof("Watching data files: %v", s.paths)
}

// Close implements subsystems.PollingStrategy.
func (s *fileWatchStrategy) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	s.wg.Wait()
	return nil
}

func (s *fileWatchStrategy) run(watcher *fsnotify.Watcher, watched map[string]bool) {
	for {
		select {
		case <-s.quit:
			return
		case event := <-watcher.Events:
			if !watched[event.Name] {
				continue
			}
			if !s.debounce(watcher) {
				return
			}
			s.reload()
		case err := <-watcher.Errors:
			s.loggers.Errorf("File watcher error: %s", err)
		}
	}
}

// debounce waits briefly and drains any further events, so one save produces one reload.
// It returns false if stop was requested while waiting.
func (s *fileWatchStrategy) debounce(watcher *fsnotify.Watcher) bool {
	timer := time.NewTimer(debounceDelay)
	defer timer.Stop()
	for {
		select {
		case <-s.quit:
			return false
		case <-watcher.Events:
		case <-timer.C:
			return true
		}
	}
}

func (s *fileWatchStrategy) reload() {
	families, err := loadAll(s.paths)
	if err != nil {
		s.loggers.Errorf("Reloading data files failed, keeping previous data: %s", err)
		return
	}
	s.loggers.Infof("Reloaded %d fig families from data files", len(families))
	s.sink.OnUpdate(families)
}
