// ABOUTME: Extracts a command invocation from message text using a scope prefix
// ABOUTME: An empty prefix makes every message a command candidate

package command

import "strings"

// Invocation is a parsed command name and its argument tokens.
type Invocation struct {
	Name string
	Args []string
}

// Parse trims text and, if it starts with prefix, splits the rest on whitespace.
// The first token is the command name. Returns false when text is not a command.
func Parse(prefix, text string) (Invocation, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, prefix) {
		return Invocation{}, false
	}

	fields := strings.Fields(strings.TrimPrefix(text, prefix))
	if len(fields) == 0 {
		return Invocation{}, false
	}

	return Invocation{Name: fields[0], Args: fields[1:]}, true
}

// String joins the invocation back into a single line.
func (inv Invocation) String() string {
	if len(inv.Args) == 0 {
		return inv.Name
	}
	return inv.Name + " " + strings.Join(inv.Args, " ")
}
