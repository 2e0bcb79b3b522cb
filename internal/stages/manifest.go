package stages

import (
	"context"
	"sync"
	"time"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/bookbuilder/internal/frontmatter"
	"git.home.luguber.info/inful/bookbuilder/internal/pipeline"
)

// ManifestFile is the name of the manifest written next to the output.
const ManifestFile = "manifest.json"

// BuildManifest lists every output file of one build with its fingerprint.
type BuildManifest struct {
	BuildID     string          `json:"build_id"`
	Format      string          `json:"format"`
	Title       string          `json:"title,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
	Files       []ManifestEntry `json:"files"`

	mu sync.Mutex
}

// ManifestEntry describes one output file.
type ManifestEntry struct {
	Path        string `json:"path"`
	Part        string `json:"part,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

func (m *BuildManifest) add(e ManifestEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files = append(m.Files, e)
}

type manifestKey struct{}

// ManifestFrom returns the manifest recorded by the manifest stage, if it ran.
func ManifestFrom(x *pipeline.Extras) (*BuildManifest, bool) {
	v, ok := x.Load(manifestKey{})
	if !ok {
		return nil, false
	}
	m, ok := v.(*BuildManifest)
	return m, ok
}

// Manifest fingerprints every page's final content and frontmatter.
func Manifest(_ context.Context, cfg *config.Build, in pipeline.Stream, x *pipeline.Extras) (pipeline.Stream, error) {
	m := &BuildManifest{
		BuildID:     x.BuildID,
		Format:      cfg.Format,
		Title:       cfg.Title,
		GeneratedAt: time.Now().UTC(),
		Files:       []ManifestEntry{},
	}
	x.Store(manifestKey{}, m)
	return pipeline.Map(x, in, func(_ context.Context, f *book.File) error {
		fp, err := frontmatter.Fingerprint(f.FrontMatter, f.Contents)
		if err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryBuild, "failed to fingerprint page").
				WithContext("file", f.RelativePath).Build()
		}
		m.add(ManifestEntry{Path: f.RelativePath, Part: f.PartLabel(), Fingerprint: fp})
		return nil
	}), nil
}
