// ABOUTME: Tests for the built-in commands and their registration.
// ABOUTME: Group actions are checked against the in-memory chat connection.

package builtins

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/ergo/internal/chat"
	"github.com/2389/ergo/internal/command"
)

func newRegistry(t *testing.T) *command.Registry {
	t.Helper()
	reg := command.NewRegistry(nil)
	require.NoError(t, Register(reg, nil))
	return reg
}

func run(t *testing.T, reg *command.Registry, req *command.Request, name string) (string, error) {
	t.Helper()
	d, ok := reg.Lookup(name)
	require.True(t, ok, "command %s should be registered", name)
	return d.Handler(context.Background(), req)
}

func TestRegister_AllByDefault(t *testing.T) {
	reg := newRegistry(t)
	assert.Equal(t, []string{"help", "join", "leave"}, reg.Names())
}

func TestRegister_Selection(t *testing.T) {
	reg := command.NewRegistry(nil)
	require.NoError(t, Register(reg, []string{"join", "help", "join"}))
	assert.Equal(t, []string{"help", "join"}, reg.Names())
}

func TestRegister_UnknownName(t *testing.T) {
	reg := command.NewRegistry(nil)
	err := Register(reg, []string{"help", "teleport"})
	require.ErrorIs(t, err, ErrUnknownBuiltin)
	assert.Contains(t, err.Error(), "teleport")
	assert.Equal(t, 0, reg.Len())
}

func TestHelp_Overview(t *testing.T) {
	reg := newRegistry(t)

	out, err := run(t, reg, &command.Request{}, "help")
	require.NoError(t, err)

	assert.Contains(t, out, "Type 'help &lt;command&gt;' for command specified help.")
	assert.Contains(t, out, "Available commands: help, join, leave.")
	assert.Contains(t, out, `<a href="text://`)
	assert.Contains(t, out, "join: Join private channel")
}

func TestHelp_ListsCommandsRegisteredLater(t *testing.T) {
	reg := newRegistry(t)
	reg.MustRegister(command.Descriptor{
		Name:        "about",
		Description: "About this bot",
		Handler:     func(ctx context.Context, req *command.Request) (string, error) { return "", nil },
	})

	out, err := run(t, reg, &command.Request{}, "help")
	require.NoError(t, err)
	assert.Contains(t, out, "Available commands: about, help, join, leave.")
}

func TestHelp_OneCommand(t *testing.T) {
	reg := newRegistry(t)

	out, err := run(t, reg, &command.Request{Args: []string{"join"}}, "help")
	require.NoError(t, err)

	assert.Contains(t, out, "Help on command: ")
	assert.Contains(t, out, "Help on join command:<br><br>Join private channel<br><br>")
	assert.Contains(t, out, "<strong>private channel</strong>")
	assert.Contains(t, out, ">join</a>")
}

func TestHelp_UnknownCommand(t *testing.T) {
	reg := newRegistry(t)

	out, err := run(t, reg, &command.Request{Args: []string{"nope"}}, "help")
	require.NoError(t, err)
	assert.Equal(t, "Unknown command: nope", out)
}

func TestHelp_NoHelpAvailable(t *testing.T) {
	reg := newRegistry(t)
	reg.MustRegister(command.Descriptor{
		Name:    "bare",
		Handler: func(ctx context.Context, req *command.Request) (string, error) { return "", nil },
	})

	out, err := run(t, reg, &command.Request{Args: []string{"bare"}}, "help")
	require.NoError(t, err)
	assert.Equal(t, "No help available for command 'bare'", out)
}

func TestHelp_HelpFuncPreferred(t *testing.T) {
	reg := newRegistry(t)
	reg.MustRegister(command.Descriptor{
		Name:     "dyn",
		Handler:  func(ctx context.Context, req *command.Request) (string, error) { return "", nil },
		Help:     "static",
		HelpFunc: func() string { return "dynamic *help*" },
	})

	out, err := run(t, reg, &command.Request{Args: []string{"dyn"}}, "help")
	require.NoError(t, err)
	assert.Contains(t, out, "dynamic <em>help</em>")
	assert.NotContains(t, out, "static")
}

func TestJoin_InvitesSender(t *testing.T) {
	reg := newRegistry(t)
	conn := chat.NewFakeConn()

	out, err := run(t, reg, &command.Request{Sender: 77, Chat: conn}, "join")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, []chat.CharacterID{77}, conn.Invites())
	assert.Empty(t, conn.Sent())
}

func TestLeave_KicksSender(t *testing.T) {
	reg := newRegistry(t)
	conn := chat.NewFakeConn()

	out, err := run(t, reg, &command.Request{Sender: 77, Chat: conn}, "leave")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, []chat.CharacterID{77}, conn.Kicks())
}

func TestGroupCommands_Errors(t *testing.T) {
	reg := newRegistry(t)

	_, err := run(t, reg, &command.Request{Sender: 1}, "join")
	assert.ErrorIs(t, err, ErrNoChat)

	conn := chat.NewFakeConn()
	require.NoError(t, conn.Close())
	_, err = run(t, reg, &command.Request{Sender: 1, Chat: conn}, "leave")
	assert.True(t, errors.Is(err, chat.ErrClosed))
}

func TestWindow_EscapesQuotes(t *testing.T) {
	assert.Equal(t, `<a href="text://say &quot;hi&quot;">a&amp;b</a>`, Window("a&b", `say "hi"`))
}

func TestRenderMarkdown(t *testing.T) {
	assert.Equal(t, "<p>Hello <strong>world</strong></p>", RenderMarkdown("Hello **world**"))
	assert.Equal(t, "<p>a</p><p>b</p>", RenderMarkdown("a\n\nb"))
}

func TestDocsEmbedded(t *testing.T) {
	for _, name := range Names() {
		assert.NotEmpty(t, doc(name), "missing docs/%s.md", name)
	}
}
