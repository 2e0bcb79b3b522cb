package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/bookbuilder/internal/config"
)

// BuildService executes book builds.
type BuildService interface {
	// Run syncs the source when requested, then builds every format.
	Run(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// BuildRequest contains all inputs of one build.
type BuildRequest struct {
	Config *config.Config

	// Formats overrides the configured enabled formats when not empty.
	Formats []string

	// Sync pulls the git source before building when git.url is set.
	Sync bool
}

// BuildResult contains the outcome of a build.
type BuildResult struct {
	Status  BuildStatus
	Formats []FormatResult

	// Head is the source commit that was built, when the source is a git checkout.
	Head string

	FilesProcessed int
	Duration       time.Duration
	StartTime      time.Time
	EndTime        time.Time
}

// FormatResult describes the output of one format.
type FormatResult struct {
	Format      string
	BuildID     string
	Destination string
	Files       int
	Duration    time.Duration
}

// BuildStatus represents the outcome of a build.
type BuildStatus string

const (
	BuildStatusSuccess   BuildStatus = "success"
	BuildStatusFailed    BuildStatus = "failed"
	BuildStatusCancelled BuildStatus = "cancelled"
)

// IsSuccess returns true if the build completed successfully.
func (s BuildStatus) IsSuccess() bool {
	return s == BuildStatusSuccess
}
