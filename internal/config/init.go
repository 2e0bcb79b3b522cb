package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
)

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return foundationerrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).Build()
	}

	example := Config{
		Title:  "My Book",
		Source: "content",
		Files: []FileEntry{
			{Path: "preface.md"},
			{Part: "Part One", Files: []FileEntry{{Path: "chapters/*.md"}}},
		},
		Layout:         "layouts/main.html",
		Destination:    defaultDestination,
		EnabledFormats: []string{FormatHTML, FormatPDF},
		Formats: map[string]FormatConfig{
			FormatPDF: {Layout: "layouts/pdf.html"},
		},
		Liquid:  LiquidConfig{Includes: []string{"includes"}},
		Logging: LoggingConfig{Level: "info", Format: LogFormatText},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryInternal, "failed to marshal example config").Build()
	}
	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to create config directory").Build()
		}
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).Build()
	}
	return nil
}
