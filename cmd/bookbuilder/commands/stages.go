package commands

import (
	"fmt"

	"git.home.luguber.info/inful/bookbuilder/internal/build"
)

// StagesCmd implements the 'stages' command.
type StagesCmd struct{}

func (s *StagesCmd) Run(g *Global, root *CLI) error {
	if _, err := loadConfig(g, root); err != nil {
		return err
	}
	registry, err := build.NewBuildService().Registry()
	if err != nil {
		return err
	}
	for i, name := range registry.Names() {
		_, _ = fmt.Fprintf(g.out(), "%2d. %s\n", i+1, name)
	}
	return nil
}
