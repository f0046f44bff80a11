// ABOUTME: Registers the built-in commands selected by configuration
// ABOUTME: An empty selection registers every built-in

package builtins

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/2389/ergo/internal/command"
)

// ErrUnknownBuiltin indicates a configured command name with no built-in behind it.
var ErrUnknownBuiltin = errors.New("unknown built-in command")

// Names lists the built-in commands.
func Names() []string {
	return []string{"help", "join", "leave"}
}

// Register adds the selected built-ins to reg. Nil or empty selects all of them.
func Register(reg *command.Registry, selected []string) error {
	if len(selected) == 0 {
		selected = Names()
	}

	if unknown, _ := lo.Difference(selected, Names()); len(unknown) > 0 {
		slices.Sort(unknown)
		return fmt.Errorf("%w: %v", ErrUnknownBuiltin, unknown)
	}

	for _, name := range lo.Uniq(selected) {
		var d command.Descriptor
		switch name {
		case "help":
			d = Help(reg)
		case "join":
			d = Join()
		case "leave":
			d = Leave()
		}
		if err := reg.Register(d); err != nil {
			return fmt.Errorf("registering %s: %w", name, err)
		}
	}
	return nil
}
