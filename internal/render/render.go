// Package render compiles and executes page, layout and include templates.
//
// Templates use text/template syntax. The include function resolves a named
// partial against an ordered list of directories and falls back to the
// partials bundled with the binary.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
)

// ErrTemplateRender is wrapped by every compile and render failure.
var ErrTemplateRender = errors.New("template render failed")

//go:embed includes/*.html
var builtinIncludes embed.FS

const maxIncludeDepth = 32

// Template is a compiled template ready to be rendered any number of times.
type Template struct {
	name string
	tpl  *template.Template
}

// Compile parses src. name is used in error messages only.
func Compile(name, src string) (*Template, error) {
	tpl, err := template.New(name).Funcs(funcs(nil)).Parse(src)
	if err != nil {
		return nil, failure(name, "failed to compile template", err)
	}
	return &Template{name: name, tpl: tpl}, nil
}

// Render executes t with locals. Includes are looked up in the given
// directories in order.
func (t *Template) Render(locals map[string]any, includes []string) (string, error) {
	tpl, err := t.tpl.Clone()
	if err != nil {
		return "", failure(t.name, "failed to prepare template", err)
	}
	r := &renderer{dirs: includes, cache: map[string]*template.Template{}}
	tpl.Funcs(funcs(r))

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, locals); err != nil {
		return "", failure(t.name, "failed to render template", err)
	}
	return buf.String(), nil
}

// String renders src in one step.
func String(name, src string, locals map[string]any, includes []string) (string, error) {
	t, err := Compile(name, src)
	if err != nil {
		return "", err
	}
	return t.Render(locals, includes)
}

type renderer struct {
	dirs  []string
	cache map[string]*template.Template
	depth int
}

func (r *renderer) include(name string, data ...any) (string, error) {
	if r.depth >= maxIncludeDepth {
		return "", fmt.Errorf("include %q: nesting deeper than %d", name, maxIncludeDepth)
	}
	tpl, err := r.lookup(name)
	if err != nil {
		return "", err
	}
	var arg any
	if len(data) > 0 {
		arg = data[0]
	}

	r.depth++
	defer func() { r.depth-- }()
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, arg); err != nil {
		return "", fmt.Errorf("include %q: %w", name, err)
	}
	return buf.String(), nil
}

func (r *renderer) lookup(name string) (*template.Template, error) {
	if tpl, ok := r.cache[name]; ok {
		return tpl, nil
	}
	if !filepath.IsLocal(name) {
		return nil, fmt.Errorf("include %q: name must be a relative path inside an include directory", name)
	}
	src, err := r.read(name)
	if err != nil {
		return nil, err
	}
	tpl, err := template.New(name).Funcs(funcs(r)).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("include %q: %w", name, err)
	}
	r.cache[name] = tpl
	return tpl, nil
}

func (r *renderer) read(name string) ([]byte, error) {
	for _, dir := range r.dirs {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("include %q: %w", name, err)
		}
	}
	b, err := builtinIncludes.ReadFile(path.Join("includes", filepath.ToSlash(name)))
	if err != nil {
		return nil, fmt.Errorf("include %q not found in %s", name, strings.Join(r.dirs, ", "))
	}
	return b, nil
}

func funcs(r *renderer) template.FuncMap {
	include := func(name string, data ...any) (string, error) {
		return "", fmt.Errorf("include %q called outside of a render", name)
	}
	if r != nil {
		include = r.include
	}
	return template.FuncMap{
		"include":  include,
		"upcase":   strings.ToUpper,
		"downcase": strings.ToLower,
		"default":  defaultValue,
	}
}

// defaultValue returns def when v is nil or the empty string.
func defaultValue(def, v any) any {
	if v == nil || v == "" {
		return def
	}
	return v
}

func failure(name, msg string, err error) error {
	return foundationerrors.WrapError(fmt.Errorf("%w: %w", ErrTemplateRender, err), foundationerrors.CategoryTemplate, msg).
		WithContext("template", name).
		Build()
}
