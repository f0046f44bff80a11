// ABOUTME: Tests for the Gateway orchestrator and its HTTP status API
// ABOUTME: Runs real supervisors against the in-memory chat transport with an in-memory SQLite store

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2389/ergo/internal/builtins"
	"github.com/2389/ergo/internal/chat"
	"github.com/2389/ergo/internal/config"
	"github.com/2389/ergo/internal/session"
	"github.com/2389/ergo/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const waitTimeout = 2 * time.Second

// testConfig creates a minimal config for the given characters on rk1.
func testConfig(t *testing.T, characters ...string) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Chat: config.ChatConfig{
			PrefixGroup:     "#",
			PrefixClan:      "#",
			ClanChannelName: "Clan (name unknown)",
		},
		Supervisor: config.SupervisorConfig{
			BackoffInitial:    time.Second,
			BackoffMax:        time.Minute,
			BackoffMultiplier: 2,
		},
		Dispatch: config.DispatchConfig{Timeout: 5 * time.Second},
		Database: config.DatabaseConfig{Path: ":memory:"},
	}
	for _, c := range characters {
		cfg.AO.Accounts = append(cfg.AO.Accounts, config.Account{
			Username:  "user-" + c,
			Dimension: "rk1",
			Character: c,
			Host:      "localhost",
			Port:      7101,
		})
	}
	return cfg
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockingWait holds a faulted session in backoff until shutdown.
func blockingWait(ctx context.Context, d time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

func offering(identities ...chat.Identity) *chat.FakeDialer {
	return chat.NewFakeDialer(func() *chat.FakeConn {
		return chat.NewFakeConn(identities...)
	})
}

type running struct {
	cancel context.CancelFunc
	done   chan error
}

func start(gw *Gateway) *running {
	ctx, cancel := context.WithCancel(context.Background())
	r := &running{cancel: cancel, done: make(chan error, 1)}
	go func() { r.done <- gw.Run(ctx) }()
	return r
}

func (r *running) stop(t *testing.T) error {
	t.Helper()
	r.cancel()
	select {
	case err := <-r.done:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("gateway did not stop")
		return nil
	}
}

func nextConn(t *testing.T, dialer *chat.FakeDialer) *chat.FakeConn {
	t.Helper()
	select {
	case conn := <-dialer.Dialed():
		select {
		case <-conn.Listening():
			return conn
		case <-time.After(waitTimeout):
			t.Fatal("connection never started listening")
		}
	case <-time.After(waitTimeout):
		t.Fatal("no connection dialed")
	}
	return nil
}

func deliver(t *testing.T, conn *chat.FakeConn, evt chat.Event) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, conn.Deliver(ctx, evt))
}

func get(t *testing.T, gw *Gateway, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGatewayNew(t *testing.T) {
	cfg := testConfig(t, "Ergo", "Other")

	gw, err := New(cfg, offering(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })

	assert.Len(t, gw.supervisors, 2)
	assert.Equal(t, builtins.Names(), gw.Registry().Names())
	assert.Nil(t, gw.httpServer, "empty http_addr disables the server")
	assert.Nil(t, gw.flood, "zero flood window disables the guard")
	assert.NotNil(t, gw.Store())
}

func TestGatewayNew_SelectsCommands(t *testing.T) {
	cfg := testConfig(t, "Ergo")
	cfg.Commands = map[string]map[string]any{"help": {}}

	gw, err := New(cfg, offering(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })

	assert.Equal(t, []string{"help"}, gw.Registry().Names())
}

func TestGatewayNew_UnknownCommand(t *testing.T) {
	cfg := testConfig(t, "Ergo")
	cfg.Commands = map[string]map[string]any{"dance": {}}

	_, err := New(cfg, offering(), testLogger())
	require.ErrorIs(t, err, builtins.ErrUnknownBuiltin)
}

func TestGateway_CommandRoundTripIsAudited(t *testing.T) {
	dialer := offering(chat.Identity{ID: 42, Name: "Ergo"})
	gw, err := New(testConfig(t, "Ergo"), dialer, testLogger(), WithWait(blockingWait))
	require.NoError(t, err)

	r := start(gw)
	conn := nextConn(t, dialer)

	deliver(t, conn, chat.Event{Type: chat.EventPrivateMessage, CharacterID: 7, Text: "help"})
	deliver(t, conn, chat.Event{Type: chat.EventPrivateMessage, CharacterID: 7, Text: "dance now"})

	sent := conn.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, chat.SendDirect, sent[0].Kind)
	assert.Equal(t, uint64(7), sent[0].Target)
	assert.Contains(t, sent[0].Text, "Available commands: help, join, leave.")
	assert.Equal(t, "Unknown command: dance. Type 'help' for list commands.", sent[1].Text)

	// Invocations, newest first.
	rec := get(t, gw, "/api/invocations?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	var invocations []InvocationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&invocations))
	require.Len(t, invocations, 2)
	assert.Equal(t, "dance", invocations[0].Command)
	assert.Equal(t, "unknown", invocations[0].Outcome)
	assert.Equal(t, []string{"now"}, invocations[0].Args)
	assert.Equal(t, "help", invocations[1].Command)
	assert.Equal(t, "ok", invocations[1].Outcome)
	assert.Equal(t, "direct", invocations[1].Scope)
	assert.Equal(t, uint32(7), invocations[1].Sender)
	assert.Equal(t, "Ergo@rk1", invocations[1].Session)

	rec = get(t, gw, "/api/invocations?outcome=ok")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&invocations))
	assert.Len(t, invocations, 1)

	// Session status and transition log.
	rec = get(t, gw, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready (1/1 sessions)", rec.Body.String())

	rec = get(t, gw, "/api/sessions")
	var statuses []session.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, "Ergo@rk1", statuses[0].Name)
	assert.Equal(t, session.StateLoggedIn, statuses[0].State)
	assert.Equal(t, chat.CharacterID(42), statuses[0].CharacterID)

	rec = get(t, gw, "/api/sessions/Ergo@rk1/events")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []SessionEventResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&events))
	require.NotEmpty(t, events)
	assert.Equal(t, "logged_in", events[0].State)

	require.NoError(t, r.stop(t))
	assert.True(t, conn.Closed())
}

func TestGateway_FloodGuardDropsRepeats(t *testing.T) {
	cfg := testConfig(t, "Ergo")
	cfg.Chat.FloodWindow = time.Minute

	dialer := offering(chat.Identity{ID: 42, Name: "Ergo"})
	gw, err := New(cfg, dialer, testLogger(), WithWait(blockingWait))
	require.NoError(t, err)
	require.NotNil(t, gw.flood)

	r := start(gw)
	conn := nextConn(t, dialer)

	deliver(t, conn, chat.Event{Type: chat.EventPrivateMessage, CharacterID: 7, Text: "help"})
	deliver(t, conn, chat.Event{Type: chat.EventPrivateMessage, CharacterID: 7, Text: "help"})
	deliver(t, conn, chat.Event{Type: chat.EventPrivateMessage, CharacterID: 8, Text: "help"})

	assert.Len(t, conn.Sent(), 2)

	var invocations []InvocationResponse
	require.NoError(t, json.NewDecoder(get(t, gw, "/api/invocations").Body).Decode(&invocations))
	assert.Len(t, invocations, 2)

	require.NoError(t, r.stop(t))
}

func TestGateway_AllSessionsFatal(t *testing.T) {
	dialer := offering(chat.Identity{ID: 1, Name: "Somebody"})
	gw, err := New(testConfig(t, "Ergo", "Ergotwo"), dialer, testLogger(), WithWait(blockingWait))
	require.NoError(t, err)

	r := start(gw)
	select {
	case err := <-r.done:
		require.Error(t, err)
		assert.ErrorIs(t, err, session.ErrUnknownCharacter)
	case <-time.After(waitTimeout):
		r.cancel()
		t.Fatal("gateway should return once every session is fatal")
	}
	r.cancel()
}

func TestGateway_FatalSessionDoesNotStopSiblings(t *testing.T) {
	dialer := offering(chat.Identity{ID: 42, Name: "Ergo"})
	gw, err := New(testConfig(t, "Ergo", "Ghost"), dialer, testLogger(), WithWait(blockingWait))
	require.NoError(t, err)

	r := start(gw)

	require.Eventually(t, func() bool {
		st, ok := gw.Manager().Get("Ghost@rk1")
		return ok && st.State == session.StateFatal
	}, waitTimeout, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		st, ok := gw.Manager().Get("Ergo@rk1")
		return ok && st.State == session.StateLoggedIn
	}, waitTimeout, 5*time.Millisecond)

	select {
	case err := <-r.done:
		t.Fatalf("gateway stopped early: %v", err)
	default:
	}

	require.NoError(t, r.stop(t), "shutdown is not an error while any session survived")
}

func TestGateway_ListenFailure(t *testing.T) {
	cfg := testConfig(t, "Ergo")
	cfg.Server.HTTPAddr = "127.0.0.1:99999"

	gw, err := New(cfg, offering(), testLogger())
	require.NoError(t, err)
	require.NotNil(t, gw.httpServer)

	err = gw.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on HTTP address")
}

func TestGatewayAPI_Errors(t *testing.T) {
	gw, err := New(testConfig(t, "Ergo"), offering(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"not ready", http.MethodGet, "/health/ready", http.StatusServiceUnavailable},
		{"bad limit", http.MethodGet, "/api/invocations?limit=abc", http.StatusBadRequest},
		{"zero limit", http.MethodGet, "/api/invocations?limit=0", http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/api/sessions/Nobody@rk1/events", http.StatusNotFound},
		{"post sessions", http.MethodPost, "/api/sessions", http.StatusMethodNotAllowed},
		{"post invocations", http.MethodPost, "/api/invocations", http.StatusMethodNotAllowed},
		{"empty sessions", http.MethodGet, "/api/sessions", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			gw.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestGatewayAPI_ListCommands(t *testing.T) {
	gw, err := New(testConfig(t, "Ergo"), offering(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })

	var commands []CommandResponse
	require.NoError(t, json.NewDecoder(get(t, gw, "/api/commands").Body).Decode(&commands))
	require.Len(t, commands, 3)
	assert.Equal(t, "help", commands[0].Name)
	assert.NotEmpty(t, commands[0].Description)
}

func TestShutdownIsIdempotent(t *testing.T) {
	gw, err := New(testConfig(t, "Ergo"), offering(), testLogger())
	require.NoError(t, err)

	require.NoError(t, gw.Shutdown(context.Background()))
	require.NoError(t, gw.Shutdown(context.Background()))
}

func TestRecorders_PropagateStoreErrors(t *testing.T) {
	gw, err := New(testConfig(t, "Ergo"), offering(), testLogger())
	require.NoError(t, err)
	require.NoError(t, gw.Shutdown(context.Background()))

	// The store is closed, so writes fail and the error reaches the caller.
	err = transitionRecorder{store: gw.Store()}.RecordTransition(context.Background(), session.Transition{
		Session: "Ergo@rk1",
		State:   session.StateConnecting,
		At:      time.Now(),
	})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestGatewayAPI_SessionStream(t *testing.T) {
	gw, err := New(testConfig(t, "Ergo"), offering(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })

	gw.Manager().Update(session.Status{Name: "Ergo@rk1", State: session.StateConnecting})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/stream?session=Ergo@rk1", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		gw.Handler().ServeHTTP(rec, req)
	}()

	require.Eventually(t, func() bool { return gw.Manager().Subscribers() == 1 }, waitTimeout, time.Millisecond)

	gw.Manager().Update(session.Status{Name: "Other@rk2", State: session.StateFaulted})
	gw.Manager().Update(session.Status{Name: "Ergo@rk1", State: session.StateLoggedIn})
	gw.Manager().Close()

	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("stream did not end after Close")
	}

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, `"state":"connecting"`)
	assert.Contains(t, body, `"state":"logged_in"`)
	assert.NotContains(t, body, "Other@rk2")
	assert.Contains(t, body, "event: done")
}

func TestGateway_StoreFailuresDoNotBreakDispatch(t *testing.T) {
	st := store.NewMockStore()
	st.Err = errors.New("disk full")

	dialer := offering(chat.Identity{ID: 42, Name: "Ergo"})
	gw, err := New(testConfig(t, "Ergo"), dialer, testLogger(), WithStore(st), WithWait(blockingWait))
	require.NoError(t, err)
	assert.Same(t, st, gw.Store())

	r := start(gw)
	conn := nextConn(t, dialer)

	deliver(t, conn, chat.Event{Type: chat.EventPrivateMessage, CharacterID: 7, Text: "help"})
	assert.Len(t, conn.Sent(), 1)

	rec := get(t, gw, "/api/invocations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	require.NoError(t, r.stop(t))
	assert.True(t, st.Closed())
}
