// ABOUTME: Thread-safe registry of command descriptors keyed by command name
// ABOUTME: Last registration for a name wins; collisions are logged as warnings

package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/2389/ergo/internal/chat"
)

// ErrInvalidDescriptor indicates a descriptor without a name or handler.
var ErrInvalidDescriptor = errors.New("invalid command descriptor")

// SessionInfo is the read-only view of a session handed to command handlers.
type SessionInfo interface {
	Name() string
	CharacterID() chat.CharacterID
	CharacterName() string
	ClanChannelID() chat.ChannelID
}

// Request carries everything a handler needs for one invocation.
type Request struct {
	Session SessionInfo
	Scope   Scope
	Sender  chat.CharacterID
	Args    []string
	Chat    chat.Actions
	Logger  *slog.Logger
}

// Handler executes a command. A non-empty result is sent back to the triggering scope.
type Handler func(ctx context.Context, req *Request) (string, error)

// Descriptor is one invocable command.
type Descriptor struct {
	Name        string
	Description string
	Handler     Handler

	// Help is static help text in Markdown. HelpFunc, when set, takes precedence.
	Help     string
	HelpFunc func() string
}

// HelpText returns the descriptor's help, or "" when it has none.
func (d *Descriptor) HelpText() string {
	if d.HelpFunc != nil {
		return d.HelpFunc()
	}
	return d.Help
}

// Registry maps command names to descriptors.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Descriptor
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		commands: make(map[string]*Descriptor),
		logger:   logger,
	}
}

// Register adds d to the registry, replacing any descriptor with the same name.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	}
	if d.Handler == nil {
		return fmt.Errorf("%w: command '%s' has no handler", ErrInvalidDescriptor, d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[d.Name]; exists {
		r.logger.Warn("command already registered, overwriting",
			"command", d.Name,
		)
	}
	r.commands[d.Name] = &d

	r.logger.Debug("=== COMMAND REGISTERED ===",
		"command", d.Name,
		"total_commands", len(r.commands),
	)
	return nil
}

// MustRegister is Register for startup code where a bad descriptor is a programming error.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.commands[name]
	return d, ok
}

// Names returns all registered command names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := lo.Keys(r.commands)
	slices.Sort(names)
	return names
}

// All returns all descriptors sorted by name.
func (r *Registry) All() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := lo.Values(r.commands)
	slices.SortFunc(all, func(a, b *Descriptor) int {
		return strings.Compare(a.Name, b.Name)
	})
	return all
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}
