package git

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/bookbuilder/internal/config"
	"git.home.luguber.info/inful/bookbuilder/internal/logfields"
	"git.home.luguber.info/inful/bookbuilder/internal/retry"
)

// Client clones and updates the book checkout.
type Client struct {
	cfg    config.GitConfig
	dir    string
	policy retry.Policy
	logger *slog.Logger
}

// NewClient creates a client that keeps cfg.URL checked out in dir.
func NewClient(cfg config.GitConfig, dir string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		dir:    dir,
		policy: retry.NewPolicy(retry.Mode(cfg.Backoff), cfg.RetryDelay, 0, cfg.Retries),
		logger: logger,
	}
}

// Dir returns the checkout directory.
func (c *Client) Dir() string { return c.dir }

// Sync clones the repository when no checkout exists yet and pulls
// otherwise. changed reports whether HEAD moved; head is the commit checked
// out afterwards.
func (c *Client) Sync(ctx context.Context) (changed bool, head string, err error) {
	err = c.policy.Do(ctx, isTransient, func() error {
		var opErr error
		if _, statErr := os.Stat(filepath.Join(c.dir, ".git")); statErr == nil {
			changed, head, opErr = c.pull(ctx)
		} else {
			changed, head, opErr = c.clone(ctx)
		}
		return opErr
	})
	return changed, head, err
}

func (c *Client) clone(ctx context.Context) (bool, string, error) {
	c.logger.Debug("Cloning book repository", slog.String("url", c.cfg.URL), logfields.Path(c.dir))
	if err := os.RemoveAll(c.dir); err != nil {
		return false, "", classify(err, "clone", c.cfg.URL)
	}
	if err := os.MkdirAll(filepath.Dir(c.dir), 0o750); err != nil {
		return false, "", classify(err, "clone", c.cfg.URL)
	}

	opts := &git.CloneOptions{
		URL:   c.cfg.URL,
		Depth: c.cfg.Depth,
		Auth:  c.auth(),
	}
	if c.cfg.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(c.cfg.Branch)
		opts.SingleBranch = true
	}
	repo, err := git.PlainCloneContext(ctx, c.dir, false, opts)
	if err != nil {
		_ = os.RemoveAll(c.dir)
		return false, "", classify(err, "clone", c.cfg.URL)
	}
	head, err := headOf(repo)
	if err != nil {
		return false, "", classify(err, "clone", c.cfg.URL)
	}
	c.logger.Info("Book repository cloned", slog.String("url", c.cfg.URL), slog.String("commit", short(head)))
	return true, head, nil
}

func (c *Client) pull(ctx context.Context) (bool, string, error) {
	repo, err := git.PlainOpen(c.dir)
	if err != nil {
		return false, "", classify(err, "open", c.cfg.URL)
	}
	before, err := headOf(repo)
	if err != nil {
		return false, "", classify(err, "open", c.cfg.URL)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false, "", classify(err, "pull", c.cfg.URL)
	}

	opts := &git.PullOptions{RemoteName: "origin", Depth: c.cfg.Depth, Auth: c.auth()}
	if c.cfg.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(c.cfg.Branch)
		opts.SingleBranch = true
	}
	err = wt.PullContext(ctx, opts)
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		c.logger.Debug("Book repository already up to date", slog.String("commit", short(before)))
		return false, before, nil
	}
	if err != nil {
		return false, "", classify(err, "pull", c.cfg.URL)
	}

	after, err := headOf(repo)
	if err != nil {
		return false, "", classify(err, "pull", c.cfg.URL)
	}
	c.logger.Info("Book repository updated", slog.String("from", short(before)), slog.String("to", short(after)))
	return before != after, after, nil
}

func (c *Client) auth() transport.AuthMethod {
	if c.cfg.Token == "" {
		return nil
	}
	return &http.BasicAuth{Username: "git", Password: c.cfg.Token}
}

func headOf(repo *git.Repository) (string, error) {
	ref, err := repo.Head()
	if err != nil {
		return "", err
	}
	return ref.Hash().String(), nil
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
