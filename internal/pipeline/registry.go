package pipeline

import (
	"context"
	"errors"
	"slices"
	"sync"

	"git.home.luguber.info/inful/bookbuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
)

var (
	// ErrDuplicateStage is returned when a stage name is already registered.
	ErrDuplicateStage = errors.New("duplicate stage")
	// ErrUnknownStage is returned when Before or After names an anchor that is not registered.
	ErrUnknownStage = errors.New("unknown stage")
)

// Handler is a stage body. It receives the current stream and returns the
// stream for the next stage: in itself when the stage does nothing, a stream
// built on in, or a completely new stream. Returning is the stage's single
// continuation; a handler may block (for example to drain in) before it
// returns.
type Handler func(ctx context.Context, cfg *config.Build, in Stream, x *Extras) (Stream, error)

// Stage is a named handler.
type Stage struct {
	Name    string
	Handler Handler
}

// Plugin registers one or more stages on a registry.
type Plugin interface {
	Register(r *Registry) error
}

// Registry is the ordered list of stages.
type Registry struct {
	mu     sync.RWMutex
	stages []Stage
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a stage to the end of the sequence.
func (r *Registry) Register(name string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.check(name, h); err != nil {
		return err
	}
	r.stages = append(r.stages, Stage{Name: name, Handler: h})
	return nil
}

// Before inserts a stage immediately before anchor.
func (r *Registry) Before(anchor, name string, h Handler) error {
	return r.insert(anchor, name, h, 0)
}

// After inserts a stage immediately after anchor.
func (r *Registry) After(anchor, name string, h Handler) error {
	return r.insert(anchor, name, h, 1)
}

func (r *Registry) insert(anchor, name string, h Handler, offset int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.check(name, h); err != nil {
		return err
	}
	idx := r.index(anchor)
	if idx < 0 {
		return foundationerrors.WrapError(ErrUnknownStage, foundationerrors.CategoryStage, "anchor stage is not registered").
			Fatal().
			WithContext("anchor", anchor).
			WithContext("stage", name).
			Build()
	}
	r.stages = slices.Insert(r.stages, idx+offset, Stage{Name: name, Handler: h})
	return nil
}

func (r *Registry) check(name string, h Handler) error {
	if name == "" {
		return foundationerrors.ValidationError("stage name must not be empty").Build()
	}
	if h == nil {
		return foundationerrors.ValidationError("stage handler must not be nil").
			WithContext("stage", name).Build()
	}
	if r.index(name) >= 0 {
		return foundationerrors.WrapError(ErrDuplicateStage, foundationerrors.CategoryStage, "stage is already registered").
			Fatal().
			WithContext("stage", name).
			Build()
	}
	return nil
}

func (r *Registry) index(name string) int {
	return slices.IndexFunc(r.stages, func(s Stage) bool { return s.Name == name })
}

// Use registers every plugin in order, stopping at the first error.
func (r *Registry) Use(plugins ...Plugin) error {
	for _, p := range plugins {
		if err := p.Register(r); err != nil {
			return err
		}
	}
	return nil
}

// Stages returns a copy of the stage sequence in execution order.
func (r *Registry) Stages() []Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.stages)
}

// Names returns the stage names in execution order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.stages))
	for i, s := range r.stages {
		names[i] = s.Name
	}
	return names
}
