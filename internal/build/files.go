package build

import (
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/bookbuilder/internal/toc"
)

// LoadFiles reads the book's files in file list order. Glob patterns expand
// in lexical order; a file matched more than once is kept at its first
// position. Files listed inside a part carry that part, and a part nested in
// another part records the enclosing one as its parent. A nested part must
// come after at least one file of its enclosing part, otherwise the table of
// contents has nowhere to attach it.
func LoadFiles(cfg *config.Config) ([]*book.File, error) {
	l := &loader{src: cfg.SourceDir(), seen: map[string]bool{}, parts: map[string]bool{}}
	if err := l.entries(cfg.Files, nil, nil); err != nil {
		return nil, err
	}
	return l.files, nil
}

type loader struct {
	src   string
	seen  map[string]bool
	parts map[string]bool
	files []*book.File
}

func (l *loader) entries(entries []config.FileEntry, part, parent *book.Part) error {
	for _, e := range entries {
		if e.IsPart() {
			if err := l.entries(e.Files, &book.Part{Label: e.Part}, part); err != nil {
				return err
			}
			continue
		}
		matches, err := l.expand(e.Path)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := l.add(m, part, parent); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *loader) expand(pattern string) ([]string, error) {
	full := filepath.Join(l.src, filepath.FromSlash(pattern))
	if !hasMeta(pattern) {
		if _, err := os.Stat(full); err != nil {
			return nil, foundationerrors.WrapError(err, foundationerrors.CategoryNotFound, "book file not found").
				WithContext("path", pattern).Build()
		}
		return []string{full}, nil
	}
	matches, err := filepath.Glob(full)
	if err != nil {
		return nil, foundationerrors.ValidationError("invalid file pattern").
			WithCause(err).WithContext("path", pattern).Build()
	}
	return matches, nil
}

func (l *loader) add(path string, part, parent *book.Part) error {
	info, err := os.Stat(path)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to stat book file").
			WithContext("path", path).Build()
	}
	if info.IsDir() || l.seen[path] {
		return nil
	}
	l.seen[path] = true

	data, err := os.ReadFile(path)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to read book file").
			WithContext("path", path).Build()
	}
	rel, err := filepath.Rel(l.src, path)
	if err != nil {
		return foundationerrors.InternalError("book file outside source directory").
			WithCause(err).WithContext("path", path).Build()
	}
	if part != nil && !l.parts[part.Label] {
		if parent != nil && !l.parts[parent.Label] {
			return foundationerrors.WrapError(toc.ErrUnknownParentPart, foundationerrors.CategoryValidation,
				"nested part comes before any file of its enclosing part").
				WithContext("path", filepath.ToSlash(rel)).
				WithContext("part", part.Label).
				WithContext("parent", parent.Label).
				Build()
		}
		l.parts[part.Label] = true
	}

	f := book.New(filepath.ToSlash(rel), data)
	f.SourcePath = path
	f.Part = part
	f.ParentPart = parent
	l.files = append(l.files, f)
	return nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, `*?[\`)
}
