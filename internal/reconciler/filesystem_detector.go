package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/giantswarm/multibranch/pkg/logging"
)

// FilesystemDetector implements ChangeDetector for on-disk project inputs.
//
// It uses fsnotify to watch template directories (any YAML file inside
// counts) and individual files such as branch heads files. Files are
// watched through their parent directory so that editors replacing the
// file by rename are still noticed. Events are debounced per project.
type FilesystemDetector struct {
	mu sync.RWMutex

	// watcher is the fsnotify watcher instance
	watcher *fsnotify.Watcher

	// projects holds the registered watches by project name
	projects map[string]ProjectWatch

	// dirs maps a watched directory to the projects watching all of it
	dirs map[string]map[string]bool

	// files maps a watched file to the projects watching it
	files map[string]map[string]bool

	// added tracks directories registered with the watcher
	added map[string]bool

	// debounceInterval is how long to wait for additional changes
	debounceInterval time.Duration

	// pendingEvents tracks pending debounced events by project
	pendingEvents map[string]*debounceEntry

	stopCh  chan struct{}
	running bool
}

// debounceEntry tracks a pending event for debouncing.
type debounceEntry struct {
	event     ChangeEvent
	timer     *time.Timer
	operation ChangeOperation
}

// NewFilesystemDetector creates a new filesystem change detector.
func NewFilesystemDetector(debounceInterval time.Duration) *FilesystemDetector {
	if debounceInterval == 0 {
		debounceInterval = 500 * time.Millisecond
	}

	return &FilesystemDetector{
		projects:         make(map[string]ProjectWatch),
		dirs:             make(map[string]map[string]bool),
		files:            make(map[string]map[string]bool),
		added:            make(map[string]bool),
		debounceInterval: debounceInterval,
		pendingEvents:    make(map[string]*debounceEntry),
		stopCh:           make(chan struct{}),
	}
}

// Start begins watching for filesystem changes.
func (d *FilesystemDetector) Start(ctx context.Context, changes chan<- ChangeEvent) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.mu.Unlock()
		return err
	}

	d.watcher = watcher
	d.running = true
	d.stopCh = make(chan struct{})
	d.added = make(map[string]bool)
	for dir := range d.watchedDirs() {
		d.addDir(dir)
	}
	stopCh := d.stopCh
	d.mu.Unlock()

	go d.processEvents(ctx, watcher, stopCh, changes)

	logging.Info("FilesystemDetector", "Started watching %d projects for changes", len(d.projects))
	return nil
}

// watchedDirs returns every directory that must be registered with the
// watcher. Must be called with d.mu held.
func (d *FilesystemDetector) watchedDirs() map[string]bool {
	out := make(map[string]bool)
	for dir := range d.dirs {
		out[dir] = true
	}
	for file := range d.files {
		out[filepath.Dir(file)] = true
	}
	return out
}

// addDir registers dir with the watcher. Must be called with d.mu held.
func (d *FilesystemDetector) addDir(dir string) {
	if d.added[dir] || d.watcher == nil {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.Warn("FilesystemDetector", "Failed to create watch directory %s: %v", dir, err)
		return
	}
	if err := d.watcher.Add(dir); err != nil {
		logging.Warn("FilesystemDetector", "Failed to watch %s: %v", dir, err)
		return
	}
	d.added[dir] = true
	logging.Debug("FilesystemDetector", "Watching directory: %s", dir)
}

// processEvents handles filesystem events and generates change events.
func (d *FilesystemDetector) processEvents(ctx context.Context, watcher *fsnotify.Watcher, stopCh chan struct{}, changes chan<- ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			d.cleanupPendingEvents()
			return

		case <-stopCh:
			d.cleanupPendingEvents()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			d.handleFsEvent(event, changes)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("FilesystemDetector", err, "Filesystem watcher error")
		}
	}
}

// handleFsEvent maps a filesystem event to the projects watching the path.
func (d *FilesystemDetector) handleFsEvent(event fsnotify.Event, changes chan<- ChangeEvent) {
	var operation ChangeOperation
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		operation = OperationCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		operation = OperationUpdate
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		operation = OperationDelete
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		// the new name, if watched, arrives as a create
		operation = OperationDelete
	default:
		return
	}

	for _, project := range d.projectsFor(event.Name) {
		d.debounceEvent(ChangeEvent{
			Project:   project,
			Operation: operation,
			Timestamp: time.Now(),
			Source:    SourceFilesystem,
			FilePath:  event.Name,
		}, changes)
	}
}

// projectsFor returns the projects interested in path, sorted.
func (d *FilesystemDetector) projectsFor(path string) []string {
	path = filepath.Clean(path)

	d.mu.RLock()
	defer d.mu.RUnlock()

	set := make(map[string]bool)
	for p := range d.files[path] {
		set[p] = true
	}
	if isYAMLFile(path) {
		for p := range d.dirs[filepath.Dir(path)] {
			set[p] = true
		}
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// debounceEvent collapses rapid successive changes of one project.
func (d *FilesystemDetector) debounceEvent(event ChangeEvent, changes chan<- ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := event.Project

	if entry, ok := d.pendingEvents[key]; ok {
		entry.timer.Stop()
		event.Operation = mergeOperations(entry.operation, event.Operation)
	}

	timer := time.AfterFunc(d.debounceInterval, func() {
		d.mu.Lock()
		entry, ok := d.pendingEvents[key]
		if ok {
			delete(d.pendingEvents, key)
		}
		d.mu.Unlock()

		if ok {
			select {
			case changes <- entry.event:
				logging.Debug("FilesystemDetector", "Emitted change event: %s %s (%s)",
					entry.event.Operation, entry.event.Project, entry.event.FilePath)
			default:
				logging.Warn("FilesystemDetector", "Change event channel full, dropping event for %s",
					entry.event.Project)
			}
		}
	})

	d.pendingEvents[key] = &debounceEntry{
		event:     event,
		timer:     timer,
		operation: event.Operation,
	}
}

// mergeOperations merges two operations into a single logical operation.
func mergeOperations(old, new ChangeOperation) ChangeOperation {
	if old == OperationCreate {
		if new == OperationDelete {
			return OperationDelete
		}
		return OperationCreate
	}
	if old == OperationUpdate && new == OperationDelete {
		return OperationDelete
	}
	return new
}

// cleanupPendingEvents cancels all pending debounce timers.
func (d *FilesystemDetector) cleanupPendingEvents() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, entry := range d.pendingEvents {
		entry.timer.Stop()
	}
	d.pendingEvents = make(map[string]*debounceEntry)
}

// Stop gracefully stops the filesystem detector.
func (d *FilesystemDetector) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.running = false
	close(d.stopCh)

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			logging.Error("FilesystemDetector", err, "Error closing filesystem watcher")
		}
		d.watcher = nil
	}

	logging.Info("FilesystemDetector", "Stopped filesystem detector")
	return nil
}

// GetSource returns the change source type.
func (d *FilesystemDetector) GetSource() ChangeSource {
	return SourceFilesystem
}

// AddProject registers the directories and files of a project.
func (d *FilesystemDetector) AddProject(w ProjectWatch) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.removeLocked(w.Name)
	d.projects[w.Name] = w
	for _, dir := range w.Dirs {
		dir = filepath.Clean(dir)
		if d.dirs[dir] == nil {
			d.dirs[dir] = make(map[string]bool)
		}
		d.dirs[dir][w.Name] = true
		if d.running {
			d.addDir(dir)
		}
	}
	for _, file := range w.Files {
		file = filepath.Clean(file)
		if d.files[file] == nil {
			d.files[file] = make(map[string]bool)
		}
		d.files[file][w.Name] = true
		if d.running {
			d.addDir(filepath.Dir(file))
		}
	}
	return nil
}

// RemoveProject stops reporting changes for a project. Directories stay
// registered with fsnotify; events for them are ignored.
func (d *FilesystemDetector) RemoveProject(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.removeLocked(name)
	return nil
}

func (d *FilesystemDetector) removeLocked(name string) {
	delete(d.projects, name)
	for dir, set := range d.dirs {
		delete(set, name)
		if len(set) == 0 {
			delete(d.dirs, dir)
		}
	}
	for file, set := range d.files {
		delete(set, name)
		if len(set) == 0 {
			delete(d.files, file)
		}
	}
}

// isYAMLFile checks if a file path is a YAML file.
func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
