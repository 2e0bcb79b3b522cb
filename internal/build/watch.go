package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/bookbuilder/internal/config"
	"git.home.luguber.info/inful/bookbuilder/internal/git"
	"git.home.luguber.info/inful/bookbuilder/internal/logfields"
)

// Watcher rebuilds the book when its sources change and, when the source is
// a git checkout with a sync interval, whenever the remote moves.
type Watcher struct {
	svc    BuildService
	req    BuildRequest
	logger *slog.Logger

	// OnBuild, when set, is called after every build attempt.
	OnBuild func(*BuildResult, error)

	fsw     *fsnotify.Watcher
	trigger chan struct{}
	ignore  []string
}

// NewWatcher creates a watcher for req's book.
func NewWatcher(svc BuildService, req BuildRequest, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{svc: svc, req: req, logger: logger, trigger: make(chan struct{}, 1)}
}

// Run builds once, then rebuilds on every debounced change until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	cfg := w.req.Config
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.fsw = fsw
	defer func() { _ = fsw.Close() }()

	// Sync before watching so the checkout exists.
	w.build(ctx)
	w.req.Sync = false

	w.ignore = outputDirs(cfg)
	for _, root := range watchRoots(cfg) {
		if err := w.addTree(root); err != nil {
			return err
		}
	}

	if cfg.Git != nil && cfg.Git.URL != "" && cfg.Watch.Interval > 0 {
		sched, err := w.schedule(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = sched.Shutdown() }()
	}

	go w.watchLoop(ctx, cfg.Watch.Debounce)
	w.logger.Info("Watching for changes", logfields.Path(cfg.Root()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.trigger:
			w.build(ctx)
		}
	}
}

func (w *Watcher) build(ctx context.Context) {
	res, err := w.svc.Run(ctx, w.req)
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("Rebuild failed", logfields.Error(err))
	}
	if w.OnBuild != nil {
		w.OnBuild(res, err)
	}
}

func (w *Watcher) requestBuild() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// schedule pulls the git source periodically and requests a build when HEAD moves.
func (w *Watcher) schedule(ctx context.Context, cfg *config.Config) (gocron.Scheduler, error) {
	client := git.NewClient(*cfg.Git, cfg.Resolve(cfg.Git.Dir), w.logger)
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(cfg.Watch.Interval),
		gocron.NewTask(func() {
			changed, head, err := client.Sync(ctx)
			if err != nil {
				w.logger.Warn("Source sync failed", logfields.Error(err))
				return
			}
			if changed {
				w.logger.Info("Source changed", slog.String("commit", head))
				w.requestBuild()
			}
		}),
		gocron.WithName("git-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to schedule source sync: %w", err)
	}
	s.Start()
	return s, nil
}

func (w *Watcher) watchLoop(ctx context.Context, debounce time.Duration) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.ignored(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("Failed to watch directory", logfields.Path(event.Name), logfields.Error(err))
					}
				}
			}
			w.logger.Debug("Change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, w.requestBuild)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", logfields.Error(err))
		}
	}
}

// addTree watches root and every directory below it except output and VCS directories.
func (w *Watcher) addTree(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return w.fsw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		if d.Name() == ".git" || w.ignored(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) ignored(path string) bool {
	for _, dir := range w.ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// watchRoots lists what a rebuild depends on: the source tree, the layouts
// and the include directories. A git checkout is left to the periodic sync.
func watchRoots(cfg *config.Config) []string {
	var roots []string
	if cfg.Git == nil || cfg.Git.URL == "" {
		roots = append(roots, cfg.SourceDir())
	}
	for _, format := range cfg.EnabledFormats {
		bc := cfg.ForFormat(format)
		if bc.Layout != "" {
			roots = append(roots, filepath.Dir(bc.Layout))
		}
		roots = append(roots, bc.Liquid.Includes...)
	}
	return roots
}

func outputDirs(cfg *config.Config) []string {
	var dirs []string
	for _, format := range config.KnownFormats() {
		dirs = append(dirs, cfg.ForFormat(format).Destination)
	}
	if cfg.Git != nil && cfg.Git.URL != "" {
		dirs = append(dirs, cfg.Resolve(cfg.Git.Dir))
	}
	return dirs
}
