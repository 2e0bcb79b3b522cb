package stages

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/bookbuilder/internal/logfields"
	"git.home.luguber.info/inful/bookbuilder/internal/pipeline"
)

// PDFFile is the name of the combined document written for the pdf format.
const PDFFile = "book.pdf"

// Write stores the build output under the destination directory: one file
// per page, or a single PDF for single-document formats, followed by the
// manifest. It waits for every page before writing anything.
func Write(ctx context.Context, cfg *config.Build, in pipeline.Stream, x *pipeline.Extras) (pipeline.Stream, error) {
	files, err := pipeline.Collect(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Destination, 0o750); err != nil {
		return nil, fsError(err, "failed to create destination", cfg.Destination)
	}

	if cfg.SingleDocument() {
		out := filepath.Join(cfg.Destination, PDFFile)
		if err := writePDF(out, cfg.Title, files); err != nil {
			return nil, err
		}
		x.Logger.Info("Wrote document", logfields.Path(out), logfields.Files(len(files)))
	} else {
		for _, f := range files {
			if err := writePage(cfg.Destination, f); err != nil {
				return nil, err
			}
		}
		x.Logger.Info("Wrote pages", logfields.Path(cfg.Destination), logfields.Files(len(files)))
	}

	if m, ok := ManifestFrom(x); ok {
		if err := writeManifest(filepath.Join(cfg.Destination, ManifestFile), m); err != nil {
			return nil, err
		}
	}
	return pipeline.FromSlice(x, files), nil
}

func writePage(dest string, f *book.File) error {
	rel := filepath.FromSlash(f.RelativePath)
	if !filepath.IsLocal(rel) {
		return foundationerrors.ValidationError("page path escapes the destination").
			WithContext("file", f.RelativePath).Build()
	}
	out := filepath.Join(dest, rel)
	if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
		return fsError(err, "failed to create output directory", filepath.Dir(out))
	}
	if err := os.WriteFile(out, f.Contents, 0o600); err != nil {
		return fsError(err, "failed to write page", out)
	}
	return nil
}

func writeManifest(path string, m *BuildManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryInternal, "failed to encode manifest").Build()
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fsError(err, "failed to write manifest", path)
	}
	return nil
}

func fsError(err error, msg, path string) error {
	return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, msg).
		WithContext("path", path).Build()
}
