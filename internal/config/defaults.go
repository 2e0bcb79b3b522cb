package config

import (
	"slices"
	"strings"
	"time"

	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/bookbuilder/internal/foundation/normalization"
)

const (
	defaultDestination = "build/" + formatPlaceholder
	defaultGitDir      = ".bookbuilder/source"
	defaultDebounce    = 500 * time.Millisecond
	defaultGitBackoff  = "exponential"
	defaultRetryDelay  = time.Second
)

var knownFormats = []string{FormatHTML, FormatPDF}

var (
	logFormats = normalization.NewNormalizer(map[string]LogFormat{
		"text": LogFormatText,
		"json": LogFormatJSON,
	}, LogFormatText)
	backoffModes = normalization.NewNormalizer(map[string]string{
		"fixed":       "fixed",
		"linear":      "linear",
		"exponential": "exponential",
	}, defaultGitBackoff)
)

// normalize case-folds enumerations and trims whitespace.
func normalize(c *Config) {
	for i, f := range c.EnabledFormats {
		c.EnabledFormats[i] = normalization.Clean(f)
	}
	if len(c.Formats) > 0 {
		formats := make(map[string]FormatConfig, len(c.Formats))
		for name, fc := range c.Formats {
			formats[normalization.Clean(name)] = fc
		}
		c.Formats = formats
	}
	c.Logging.Format = LogFormat(normalization.Clean(string(c.Logging.Format)))
	if c.Git != nil {
		c.Git.Backoff = normalization.Clean(c.Git.Backoff)
	}
}

func applyDefaults(c *Config) {
	if c.Source == "" {
		c.Source = "."
	}
	if len(c.Files) == 0 {
		c.Files = []FileEntry{{Path: "*.md"}}
	}
	if c.Destination == "" {
		c.Destination = defaultDestination
	}
	if len(c.EnabledFormats) == 0 {
		c.EnabledFormats = []string{FormatHTML}
	}
	if c.Logging.Format == "" {
		c.Logging.Format = LogFormatText
	}
	if c.Git != nil {
		if c.Git.Dir == "" {
			c.Git.Dir = defaultGitDir
		}
		if c.Git.Backoff == "" {
			c.Git.Backoff = defaultGitBackoff
		}
		if c.Git.RetryDelay <= 0 {
			c.Git.RetryDelay = defaultRetryDelay
		}
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = defaultDebounce
	}
}

func validate(c *Config) error {
	for _, f := range c.EnabledFormats {
		if !slices.Contains(knownFormats, f) {
			return foundationerrors.ValidationError("unsupported output format").
				WithContext("format", f).Build()
		}
	}
	for name := range c.Formats {
		if !slices.Contains(knownFormats, name) {
			return foundationerrors.ValidationError("formats section names an unsupported format").
				WithContext("format", name).Build()
		}
	}
	if _, err := logFormats.Parse(string(c.Logging.Format)); err != nil {
		return foundationerrors.ValidationError("invalid logging.format").
			WithCause(err).WithContext("format", string(c.Logging.Format)).Build()
	}
	if c.Git != nil {
		if c.Git.Depth < 0 || c.Git.Retries < 0 {
			return foundationerrors.ValidationError("git.depth and git.retries must not be negative").Build()
		}
		if _, err := backoffModes.Parse(c.Git.Backoff); err != nil {
			return foundationerrors.ValidationError("invalid git.backoff").
				WithCause(err).WithContext("backoff", c.Git.Backoff).Build()
		}
	}
	return validateEntries(c.Files)
}

func validateEntries(entries []FileEntry) error {
	for _, e := range entries {
		if e.IsPart() {
			if len(e.Files) == 0 {
				return foundationerrors.ValidationError("part has no files").
					WithContext("part", e.Part).Build()
			}
			if err := validateEntries(e.Files); err != nil {
				return err
			}
			continue
		}
		if strings.TrimSpace(e.Path) == "" {
			return foundationerrors.ValidationError("file entry has an empty path").Build()
		}
	}
	return nil
}

// KnownFormats returns the output formats the builder supports.
func KnownFormats() []string {
	return slices.Clone(knownFormats)
}
