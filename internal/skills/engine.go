package skills

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EngineOptions configures the skill engine.
type EngineOptions struct {
	// Roots are the directories scanned for skills, in priority order.
	Roots []Root

	// Format selects the snapshot prompt rendering.
	Format PromptFormat

	// Probe drives eligibility. Nil uses the real host environment.
	Probe *Probe

	// Watch enables fsnotify hot reload of the skill roots.
	Watch bool

	// WatchDebounce is the delay before a file change triggers a refresh.
	// Default 300ms.
	WatchDebounce time.Duration
}

// Engine owns the skill pipeline: discovery, gating, and the current
// snapshot. Hot reload publishes a fresh snapshot by atomic reference
// swap; readers holding an old snapshot are unaffected.
type Engine struct {
	opts   EngineOptions
	logger *slog.Logger

	version  atomic.Uint64
	snapshot atomic.Pointer[Snapshot]

	skillsMu sync.RWMutex
	skills   []*Skill // all discovered, pre-gating

	watcher     *fsnotify.Watcher
	watchPaths  map[string]struct{}
	watchMu     sync.Mutex
	watchWg     sync.WaitGroup
	watchCancel context.CancelFunc

	runner CommandRunner
}

// NewEngine creates a skill engine. Call Refresh before first use.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Probe == nil {
		opts.Probe = NewProbe(nil, nil)
	}
	if opts.WatchDebounce <= 0 {
		opts.WatchDebounce = 300 * time.Millisecond
	}
	return &Engine{
		opts:   opts,
		logger: slog.Default().With("component", "skills"),
	}
}

// SetCommandRunner supplies the runner used for inline !`cmd` expansion.
func (e *Engine) SetCommandRunner(run CommandRunner) {
	e.runner = run
}

// Refresh rescans all roots, regates, and publishes a new snapshot.
func (e *Engine) Refresh(ctx context.Context) *Snapshot {
	discovered := Discover(ctx, e.opts.Roots, e.logger)

	e.skillsMu.Lock()
	e.skills = discovered
	e.skillsMu.Unlock()

	eligible := FilterEligible(discovered, e.opts.Probe)
	snap := BuildSnapshot(eligible, e.opts.Format, e.version.Add(1))
	e.snapshot.Store(snap)

	e.logger.Info("skills refreshed",
		"discovered", len(discovered),
		"eligible", len(eligible),
		"version", snap.Version())

	if err := e.refreshWatches(); err != nil {
		e.logger.Warn("refresh skill watches failed", "error", err)
	}
	return snap
}

// Snapshot returns the current snapshot, refreshing lazily if none has
// been built yet.
func (e *Engine) Snapshot() *Snapshot {
	if snap := e.snapshot.Load(); snap != nil {
		return snap
	}
	return e.Refresh(context.Background())
}

// Invalidate discards the current snapshot; the next Snapshot call
// rebuilds. In-flight turns keep the snapshot they captured.
func (e *Engine) Invalidate() {
	e.snapshot.Store(nil)
}

// Get returns a discovered skill by name, eligible or not.
func (e *Engine) Get(name string) (*Skill, bool) {
	e.skillsMu.RLock()
	defer e.skillsMu.RUnlock()
	for _, skill := range e.skills {
		if skill.Name == name {
			return skill, true
		}
	}
	return nil, false
}

// GetEligible returns an eligible skill from the current snapshot.
func (e *Engine) GetEligible(name string) (*Skill, bool) {
	return e.Snapshot().Get(name)
}

// ListAll returns all discovered skills.
func (e *Engine) ListAll() []*Skill {
	e.skillsMu.RLock()
	defer e.skillsMu.RUnlock()
	out := make([]*Skill, len(e.skills))
	copy(out, e.skills)
	return out
}

// IneligibleReasons maps ineligible skill names to rejection reasons, for
// introspection surfaces.
func (e *Engine) IneligibleReasons() map[string]string {
	return IneligibleReasons(e.ListAll(), e.opts.Probe)
}

// SkillEnv returns the subprocess env injection configured for a skill:
// its primary API key plus explicit overrides.
func (e *Engine) SkillEnv(skill *Skill) map[string]string {
	return skill.InjectEnv(e.opts.Probe.Overrides)
}

// ResolveContent returns the skill's content with placeholder and inline
// command expansion applied.
func (e *Engine) ResolveContent(ctx context.Context, skill *Skill, arguments string) string {
	lookup := e.opts.Probe.LookupEnv
	return Expand(ctx, skill.Content, arguments, lookup, e.runner)
}

// StartWatching begins hot reload of the skill roots. Changes are
// debounced; any change under a root invalidates and rebuilds the
// snapshot.
func (e *Engine) StartWatching(ctx context.Context) error {
	if !e.opts.Watch {
		return nil
	}

	e.watchMu.Lock()
	if e.watcher != nil {
		e.watchMu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		e.watchMu.Unlock()
		return err
	}
	e.watcher = watcher
	e.watchPaths = make(map[string]struct{})
	watchCtx, cancel := context.WithCancel(ctx)
	e.watchCancel = cancel
	e.watchMu.Unlock()

	if err := e.refreshWatches(); err != nil {
		e.logger.Warn("initial skill watch refresh failed", "error", err)
	}

	e.watchWg.Add(1)
	go e.watchLoop(watchCtx)
	return nil
}

// Close stops any active watcher.
func (e *Engine) Close() error {
	e.watchMu.Lock()
	if e.watchCancel != nil {
		e.watchCancel()
		e.watchCancel = nil
	}
	watcher := e.watcher
	e.watcher = nil
	e.watchMu.Unlock()

	if watcher != nil {
		_ = watcher.Close()
	}
	e.watchWg.Wait()
	return nil
}

func (e *Engine) watchLoop(ctx context.Context) {
	defer e.watchWg.Done()
	e.watchMu.Lock()
	watcher := e.watcher
	e.watchMu.Unlock()
	if watcher == nil {
		return
	}

	var mu sync.Mutex
	var timer *time.Timer
	scheduleRefresh := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(e.opts.WatchDebounce, func() {
			e.Refresh(context.Background())
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				if event.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = e.addWatchPath(event.Name)
					}
				}
				scheduleRefresh()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			e.logger.Warn("skill watch error", "error", err)
		}
	}
}

func (e *Engine) refreshWatches() error {
	e.watchMu.Lock()
	watcher := e.watcher
	e.watchMu.Unlock()
	if watcher == nil {
		return nil
	}

	desired := make(map[string]struct{})
	for _, path := range e.computeWatchPaths() {
		desired[path] = struct{}{}
	}

	e.watchMu.Lock()
	defer e.watchMu.Unlock()

	for path := range desired {
		if _, ok := e.watchPaths[path]; ok {
			continue
		}
		if err := watcher.Add(path); err != nil {
			e.logger.Debug("failed to watch skills path", "path", path, "error", err)
			continue
		}
		e.watchPaths[path] = struct{}{}
	}

	for path := range e.watchPaths {
		if _, ok := desired[path]; ok {
			continue
		}
		if err := watcher.Remove(path); err != nil {
			e.logger.Debug("failed to unwatch skills path", "path", path, "error", err)
		}
		delete(e.watchPaths, path)
	}
	return nil
}

func (e *Engine) addWatchPath(path string) error {
	cleaned, ok := normalizeWatchPath(path)
	if !ok {
		return nil
	}
	e.watchMu.Lock()
	watcher := e.watcher
	if watcher == nil {
		e.watchMu.Unlock()
		return nil
	}
	if _, exists := e.watchPaths[cleaned]; exists {
		e.watchMu.Unlock()
		return nil
	}
	e.watchMu.Unlock()

	if err := watcher.Add(cleaned); err != nil {
		return err
	}
	e.watchMu.Lock()
	e.watchPaths[cleaned] = struct{}{}
	e.watchMu.Unlock()
	return nil
}

func (e *Engine) computeWatchPaths() []string {
	paths := make(map[string]struct{})
	for _, root := range e.opts.Roots {
		if cleaned, ok := normalizeWatchPath(root.Path); ok {
			paths[cleaned] = struct{}{}
		}
	}
	e.skillsMu.RLock()
	for _, skill := range e.skills {
		if cleaned, ok := normalizeWatchPath(skill.Path); ok {
			paths[cleaned] = struct{}{}
		}
	}
	e.skillsMu.RUnlock()

	result := make([]string, 0, len(paths))
	for path := range paths {
		result = append(result, path)
	}
	sort.Strings(result)
	return result
}

func normalizeWatchPath(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return filepath.Clean(path), true
}
