package policy

import (
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// snapshot captures just the rule set and approval mode — the fields that
// get rolled back on a failed reload. The alert manager, audit log, and
// engine wiring are deliberately excluded from the snapshot: a bad policy
// file should not disturb telemetry plumbing, only the rules themselves.
type snapshot struct {
	rules        []Rule
	approvalMode ApprovalMode
}

// Reloader watches a policy file for changes and hot-reloads the engine,
// rolling back to the last known-good rule set if the new file is invalid.
type Reloader struct {
	engine *Engine
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewReloader constructs a Reloader for engine watching path. Call Start to
// begin watching, or call Reload directly for a manual one-shot reload.
func NewReloader(engine *Engine, path string, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{engine: engine, path: path, logger: logger}
}

// Reload attempts to load the policy file fresh, validating before swapping
// it in. On any failure the engine's rules are left bitwise identical to
// before the attempt and the failure is logged; the engine transitions
// Loaded -> Failed -> Loaded (rolled back) rather than losing its rule set.
func (r *Reloader) Reload() error {
	snap := r.takeSnapshot()

	r.engine.mu.Lock()
	r.engine.state = StateReloading
	r.engine.mu.Unlock()

	rules, mode, err := parsePolicyFile(r.path)
	if err == nil {
		err = validateRules(rules)
	}

	r.engine.mu.Lock()
	defer r.engine.mu.Unlock()

	if err != nil {
		r.engine.rules = snap.rules
		r.engine.approvalMode = snap.approvalMode
		r.engine.state = StateFailed
		r.logger.Warn("policy reload failed, rolled back to last known-good rule set",
			slog.String("path", r.path), slog.Any("error", err))
		return &PolicyError{Op: "reload", Path: r.path, Wrapped: err}
	}

	r.engine.rules = rules
	r.engine.approvalMode = mode
	r.engine.state = StateLoaded
	return nil
}

func (r *Reloader) takeSnapshot() snapshot {
	r.engine.mu.RLock()
	defer r.engine.mu.RUnlock()
	rules := make([]Rule, len(r.engine.rules))
	copy(rules, r.engine.rules)
	return snapshot{rules: rules, approvalMode: r.engine.approvalMode}
}

// Start begins watching the policy file for create/write events, spawning a
// reload on each. Start is idempotent; calling it twice is a no-op on the
// second call.
func (r *Reloader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return &PolicyError{Op: "watch", Path: r.path, Wrapped: err}
	}
	if err := watcher.Add(r.path); err != nil {
		watcher.Close()
		return &PolicyError{Op: "watch", Path: r.path, Wrapped: err}
	}

	r.watcher = watcher
	r.done = make(chan struct{})

	go r.watchLoop(watcher, r.done)
	return nil
}

func (r *Reloader) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := r.Reload(); err != nil {
					r.logger.Warn("policy hot reload error", slog.Any("error", err))
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("policy file watcher error", slog.Any("error", err))
		case <-done:
			return
		}
	}
}

// Stop stops watching the policy file. Stop is idempotent.
func (r *Reloader) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher == nil {
		return nil
	}
	close(r.done)
	err := r.watcher.Close()
	r.watcher = nil
	return err
}
