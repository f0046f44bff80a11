// ABOUTME: The help command: lists registered commands or shows one command's help window
// ABOUTME: Reads the registry at call time so commands registered later are listed too

package builtins

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/ergo/internal/command"
)

// Help creates the help command bound to reg.
func Help(reg *command.Registry) command.Descriptor {
	h := &helpHandler{registry: reg}
	return command.Descriptor{
		Name:        "help",
		Description: "Usage information",
		Handler:     h.Handle,
		Help:        doc("help"),
	}
}

type helpHandler struct {
	registry *command.Registry
}

func (h *helpHandler) Handle(ctx context.Context, req *command.Request) (string, error) {
	if len(req.Args) == 0 {
		return h.overview(), nil
	}

	name := req.Args[0]
	desc, ok := h.registry.Lookup(name)
	if !ok {
		return "Unknown command: " + name, nil
	}

	text := desc.HelpText()
	if text == "" {
		return fmt.Sprintf("No help available for command '%s'", name), nil
	}

	content := fmt.Sprintf("Help on %s command:%s%s%s%s",
		desc.Name, Break(2),
		desc.Description, Break(2),
		RenderMarkdown(text),
	)
	return "Help on command: " + Window(desc.Name, content), nil
}

func (h *helpHandler) overview() string {
	all := h.registry.All()

	names := make([]string, 0, len(all))
	lines := make([]string, 0, len(all))
	for _, d := range all {
		names = append(names, d.Name)
		lines = append(lines, d.Name+": "+d.Description)
	}

	details := "Available commands:" + Break(1) + strings.Join(lines, Break(1))
	return fmt.Sprintf("Type 'help &lt;command&gt;' for command specified help. Available commands: %s. %s",
		strings.Join(names, ", "),
		Window("details", details),
	)
}
