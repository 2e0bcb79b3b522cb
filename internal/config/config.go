package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
)

// Output formats understood by the writer stage.
const (
	FormatHTML = "html"
	FormatPDF  = "pdf"
)

// formatPlaceholder is substituted with the format name in destination paths.
const formatPlaceholder = ":format"

// Config is the book configuration file (book.yaml).
type Config struct {
	Title          string                  `yaml:"title"`
	Source         string                  `yaml:"source"`
	Files          []FileEntry             `yaml:"files"`
	Layout         string                  `yaml:"layout"`
	Destination    string                  `yaml:"destination"`
	EnabledFormats []string                `yaml:"enabled_formats"`
	Formats        map[string]FormatConfig `yaml:"formats,omitempty"`
	Liquid         LiquidConfig            `yaml:"liquid"`
	Logging        LoggingConfig           `yaml:"logging"`
	Metrics        MetricsConfig           `yaml:"metrics,omitempty"`
	Git            *GitConfig              `yaml:"git,omitempty"`
	Watch          WatchConfig             `yaml:"watch,omitempty"`

	// root is the directory relative paths are resolved against (the config file's directory).
	root string
}

// FormatConfig holds per-format overrides. Non-empty values win over the book-level ones.
type FormatConfig struct {
	Layout      string `yaml:"layout"`
	Destination string `yaml:"destination"`
}

// LiquidConfig configures the templating stage. The section keeps its
// historical name; templates are Go text/template.
type LiquidConfig struct {
	Includes []string `yaml:"includes"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// GitConfig makes the book source a git checkout that is cloned or pulled before building.
type GitConfig struct {
	URL    string `yaml:"url"`
	Branch string `yaml:"branch"`
	Depth  int    `yaml:"depth"`
	Dir    string `yaml:"dir"`
	// Token authenticates HTTPS remotes; use ${VAR} to read it from the environment.
	Token string `yaml:"token,omitempty"`
	// Retries is the number of extra attempts after a transient failure.
	Retries    int           `yaml:"retries"`
	Backoff    string        `yaml:"backoff"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// WatchConfig tunes the watch command.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	// Interval enables periodic git sync; zero disables it.
	Interval time.Duration `yaml:"interval"`
}

// Load reads, normalizes, defaults and validates a configuration file.
// Environment variables from .env/.env.local are loaded first and expanded
// inside the YAML.
func Load(configPath string) (*Config, error) {
	loadEnvFiles(filepath.Dir(configPath))

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, foundationerrors.ConfigError("configuration file not found").
				WithContext("path", configPath).Build()
		}
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to read config file").
			WithContext("path", configPath).Build()
	}

	abs, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	return Parse(data, abs)
}

// Parse builds a Config from raw YAML. root anchors relative paths.
func Parse(data []byte, root string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryConfig, "failed to unmarshal config").
			Fatal().Build()
	}
	cfg.root = root

	normalize(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Root returns the directory relative paths resolve against.
func (c *Config) Root() string { return c.root }

// Resolve makes p absolute relative to the config root.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.root, p)
}

// SourceDir returns the absolute directory book files are read from.
func (c *Config) SourceDir() string {
	if c.Git != nil && c.Git.URL != "" {
		return filepath.Join(c.Resolve(c.Git.Dir), c.Source)
	}
	return c.Resolve(c.Source)
}

// Build is the per-format view of the configuration handed to every stage.
type Build struct {
	Title       string
	Format      string
	Root        string
	Source      string
	Layout      string
	Destination string
	Liquid      LiquidConfig
}

// SingleDocument reports whether the format produces one combined document,
// in which case in-book links are document-local anchors.
func (b *Build) SingleDocument() bool {
	return b.Format == FormatPDF
}

// ForFormat resolves the configuration for one output format.
func (c *Config) ForFormat(format string) *Build {
	layout := c.Layout
	dest := c.Destination
	if fc, ok := c.Formats[format]; ok {
		if fc.Layout != "" {
			layout = fc.Layout
		}
		if fc.Destination != "" {
			dest = fc.Destination
		}
	}

	includes := make([]string, 0, len(c.Liquid.Includes))
	for _, inc := range c.Liquid.Includes {
		includes = append(includes, c.Resolve(inc))
	}

	return &Build{
		Title:       c.Title,
		Format:      format,
		Root:        c.root,
		Source:      c.SourceDir(),
		Layout:      c.Resolve(layout),
		Destination: c.Resolve(strings.ReplaceAll(dest, formatPlaceholder, format)),
		Liquid:      LiquidConfig{Includes: includes},
	}
}

// ResolvePaths makes every relative path in paths absolute against the book root.
func (b *Build) ResolvePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(b.Root, p)
		}
		out = append(out, p)
	}
	return out
}

// IncludesFor returns the include search path for a page: the page's own
// includes when it sets any, otherwise the book-wide liquid.includes.
func (b *Build) IncludesFor(pageIncludes []string) []string {
	if len(pageIncludes) > 0 {
		return b.ResolvePaths(pageIncludes)
	}
	return b.Liquid.Includes
}
