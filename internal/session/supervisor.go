// ABOUTME: Connection supervisor: dial, select character, log in, receive, reconnect with backoff
// ABOUTME: Unknown or already-online characters stop the session for good; everything else is retried

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/2389/ergo/internal/chat"
	"github.com/2389/ergo/internal/command"
	"github.com/2389/ergo/internal/logging"
)

// ErrUnknownCharacter indicates the configured character is not on the account.
var ErrUnknownCharacter = errors.New("unknown character")

// ErrCharacterOnline indicates the configured character is already logged in elsewhere.
var ErrCharacterOnline = errors.New("character is online")

// errListenEnded is reported when the receive loop returns without an error.
var errListenEnded = errors.New("receive loop ended")

// State is a supervisor lifecycle state.
type State string

const (
	StateIdle              State = "idle"
	StateConnecting        State = "connecting"
	StateAuthenticating    State = "authenticating"
	StateSelectingIdentity State = "selecting_identity"
	StateLoggedIn          State = "logged_in"
	StateFaulted           State = "faulted"
	StateStopped           State = "stopped"
	StateFatal             State = "fatal"
)

// MinBackoff is the shortest reconnect delay used with the real clock.
const MinBackoff = time.Second

// Backoff controls the reconnect delay.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff returns 1s doubling up to 5m.
func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Second, Max: 5 * time.Minute, Multiplier: 2}
}

// Next returns the delay following d.
func (b Backoff) Next(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * b.Multiplier)
	if next < d {
		next = d
	}
	if b.Max > 0 && next > b.Max {
		next = b.Max
	}
	return next
}

// Transition is one supervisor state change, for the audit log.
type Transition struct {
	Session string
	State   State
	Detail  string
	At      time.Time
}

// TransitionRecorder persists state transitions.
type TransitionRecorder interface {
	RecordTransition(ctx context.Context, tr Transition) error
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// SupervisorConfig contains configuration options for the Supervisor.
type SupervisorConfig struct {
	Session     *Session
	Dialer      chat.Dialer
	Dispatcher  *command.Dispatcher
	Logger      *slog.Logger
	Backoff     Backoff
	Limiter     *rate.Limiter      // outbound pacing, optional
	Manager     *Manager           // optional
	Transitions TransitionRecorder // optional
	Wait        WaitFunc           // optional, replaces the real clock
}

// Supervisor keeps one session connected until shutdown or a fatal condition.
type Supervisor struct {
	session     *Session
	dialer      chat.Dialer
	dispatcher  *command.Dispatcher
	logger      *slog.Logger
	backoff     Backoff
	limiter     *rate.Limiter
	manager     *Manager
	transitions TransitionRecorder
	wait        WaitFunc

	mu        sync.RWMutex
	state     State
	attempts  int
	lastError string
}

// NewSupervisor creates a supervisor. Backoff values below MinBackoff are
// raised to it unless a custom Wait is supplied.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	backoff := cfg.Backoff
	if backoff.Multiplier < 1 {
		backoff.Multiplier = 2
	}
	wait := cfg.Wait
	if wait == nil {
		wait = sleep
		if backoff.Initial < MinBackoff {
			backoff.Initial = MinBackoff
		}
	}
	if backoff.Max > 0 && backoff.Max < backoff.Initial {
		backoff.Max = backoff.Initial
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Supervisor{
		session:     cfg.Session,
		dialer:      cfg.Dialer,
		dispatcher:  cfg.Dispatcher,
		logger:      logger.With("session", cfg.Session.Name()),
		backoff:     backoff,
		limiter:     cfg.Limiter,
		manager:     cfg.Manager,
		transitions: cfg.Transitions,
		wait:        wait,
		state:       StateIdle,
	}
}

// Session returns the supervised session.
func (sv *Supervisor) Session() *Session { return sv.session }

// State returns the current lifecycle state.
func (sv *Supervisor) State() State {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	return sv.state
}

// Attempts returns the number of connection attempts so far.
func (sv *Supervisor) Attempts() int {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	return sv.attempts
}

// Run supervises the session until ctx is cancelled (returns nil) or a fatal
// condition occurs (returns an error wrapping ErrUnknownCharacter or
// ErrCharacterOnline).
func (sv *Supervisor) Run(ctx context.Context) error {
	sv.logger.Info("=== SESSION STARTING ===",
		"addr", sv.session.account.Addr(),
		"character", sv.session.characterName,
	)

	delay := sv.backoff.Initial
	for {
		if ctx.Err() != nil {
			sv.stop(ctx)
			return nil
		}

		loggedIn, err := sv.attempt(ctx)

		if isFatal(err) {
			sv.session.reset()
			logging.Critical(sv.logger, "session stopped", "error", err)
			sv.setState(ctx, StateFatal, err.Error())
			return err
		}
		if ctx.Err() != nil {
			sv.stop(ctx)
			return nil
		}

		if loggedIn {
			delay = sv.backoff.Initial
		}
		sv.session.reset()
		sv.logger.Error("session faulted, reconnecting",
			"error", err,
			"attempt", sv.Attempts(),
			"retry_in", delay,
		)
		sv.setState(ctx, StateFaulted, err.Error())

		if werr := sv.wait(ctx, delay); werr != nil {
			sv.stop(ctx)
			return nil
		}
		delay = sv.backoff.Next(delay)
	}
}

// attempt runs one connection from dial to the end of the receive loop.
// loggedIn reports whether login succeeded during this attempt.
func (sv *Supervisor) attempt(ctx context.Context) (loggedIn bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			sv.logger.Error("connection attempt panicked",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("connection attempt panicked: %v", r)
		}
	}()

	sv.session.reset()
	sv.mu.Lock()
	sv.attempts++
	sv.mu.Unlock()

	addr := sv.session.account.Addr()
	sv.setState(ctx, StateConnecting, addr)

	conn, err := sv.dialer.Dial(ctx, sv.session.account)
	if err != nil {
		return false, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, chat.ErrClosed) {
			sv.logger.Debug("error closing connection", "error", cerr)
		}
	}()

	sv.setState(ctx, StateAuthenticating, "")
	identities, err := conn.Characters(ctx)
	if err != nil {
		return false, fmt.Errorf("listing characters: %w", err)
	}

	sv.setState(ctx, StateSelectingIdentity, "")
	name := sv.session.characterName
	identity, found := lo.Find(identities, func(id chat.Identity) bool {
		return id.Name == name
	})
	if !found {
		return false, fmt.Errorf("%w: %s", ErrUnknownCharacter, name)
	}
	if identity.Online {
		return false, fmt.Errorf("%w: %s", ErrCharacterOnline, name)
	}
	sv.session.characterID = identity.ID

	if err := conn.Login(ctx, identity.ID); err != nil {
		return false, fmt.Errorf("logging in as %s: %w", name, err)
	}

	sv.setState(ctx, StateLoggedIn, "")
	sv.logger.Info("=== SESSION LOGGED IN ===",
		"character_id", identity.ID,
		"attempt", sv.Attempts(),
	)

	err = conn.Listen(ctx, func(evt chat.Event) {
		sv.handleEvent(ctx, conn, evt)
	})
	if ctx.Err() != nil {
		return true, nil
	}
	if err == nil {
		err = errListenEnded
	}
	return true, fmt.Errorf("receive loop: %w", err)
}

// handleEvent classifies and dispatches one event. Any panic is logged and the
// event discarded; the receive loop carries on.
func (sv *Supervisor) handleEvent(ctx context.Context, conn chat.Conn, evt chat.Event) {
	defer func() {
		if r := recover(); r != nil {
			sv.logger.Error("event processing panicked, event discarded",
				"panic", r,
				"event", evt.String(),
				"stack", string(debug.Stack()),
			)
		}
	}()

	clanBefore := sv.session.clanChannelID
	scope := Classify(sv.session, evt, sv.logger)
	if sv.session.clanChannelID != clanBefore {
		sv.publish(StateLoggedIn, "")
	}
	if scope.IsIgnored() {
		return
	}

	inv, ok := command.Parse(sv.session.Prefix(scope.Kind), evt.Text)
	if !ok {
		return
	}

	sv.dispatcher.Dispatch(ctx, command.Call{
		Session:    sv.session,
		Scope:      scope,
		Sender:     evt.CharacterID,
		Invocation: inv,
		Text:       evt.Text,
		Reply:      ReplyFor(sv.session, conn, scope, sv.limiter),
		Chat:       conn,
	})
}

func (sv *Supervisor) stop(ctx context.Context) {
	sv.session.reset()
	sv.setState(ctx, StateStopped, "")
	sv.logger.Info("=== SESSION STOPPED ===")
}

// setState records a transition in the manager and the audit log.
func (sv *Supervisor) setState(ctx context.Context, state State, detail string) {
	sv.logger.Debug("session state", "state", state, "detail", detail)
	sv.publish(state, detail)

	if sv.transitions == nil {
		return
	}
	tr := Transition{
		Session: sv.session.Name(),
		State:   state,
		Detail:  detail,
		At:      time.Now().UTC(),
	}
	if err := sv.transitions.RecordTransition(context.WithoutCancel(ctx), tr); err != nil {
		sv.logger.Warn("failed to record session transition", "error", err)
	}
}

func (sv *Supervisor) publish(state State, detail string) {
	sv.mu.Lock()
	sv.state = state
	if state == StateFaulted || state == StateFatal {
		sv.lastError = detail
	}
	st := Status{
		Name:          sv.session.Name(),
		Dimension:     sv.session.dimension,
		Character:     sv.session.characterName,
		State:         state,
		CharacterID:   sv.session.characterID,
		ClanChannelID: sv.session.clanChannelID,
		Attempts:      sv.attempts,
		LastError:     sv.lastError,
		UpdatedAt:     time.Now().UTC(),
	}
	sv.mu.Unlock()

	if sv.manager != nil {
		sv.manager.Update(st)
	}
}

func isFatal(err error) bool {
	return errors.Is(err, ErrUnknownCharacter) || errors.Is(err, ErrCharacterOnline)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
