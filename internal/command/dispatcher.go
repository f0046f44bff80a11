// ABOUTME: Resolves parsed invocations against the registry and runs their handlers.
// ABOUTME: Isolates handler failures, bounds handler time, and replies to the triggering scope.

package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/2389/ergo/internal/chat"
	"github.com/2389/ergo/internal/dedupe"
)

// DefaultTimeout is the default deadline for one handler invocation.
const DefaultTimeout = 30 * time.Second

// DefaultReplyTimeout bounds one reply send, including the wait for the send limiter.
const DefaultReplyTimeout = 5 * time.Second

// User-visible replies.
const (
	UnknownCommandFormat = "Unknown command: %s. Type 'help' for list commands."
	FailureReply         = "Unexpected error occurred. Please, try again later."
)

// Outcome is the result of one dispatch.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeUnknown Outcome = "unknown"
	OutcomeFailed  Outcome = "failed"
	OutcomeTimeout Outcome = "timeout"
	OutcomeDropped Outcome = "dropped" // flood guard, never recorded
)

// Replier sends text back to the scope an invocation came from.
type Replier func(ctx context.Context, text string) error

// Record describes one completed dispatch for auditing.
type Record struct {
	Session  string
	Scope    Scope
	Sender   chat.CharacterID
	Command  string
	Args     []string
	Outcome  Outcome
	Duration time.Duration
	Err      error
}

// Recorder persists dispatch records.
type Recorder interface {
	RecordInvocation(ctx context.Context, rec Record) error
}

// FloodGuard reports whether a key was already seen recently.
type FloodGuard interface {
	Seen(key string) bool
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("command panicked: %v", e.Value)
}

// Call is one invocation to dispatch.
type Call struct {
	Session    SessionInfo
	Scope      Scope
	Sender     chat.CharacterID
	Invocation Invocation
	Text       string // raw message text, used as the flood key
	Reply      Replier
	Chat       chat.Actions
}

// Dispatcher routes invocations to their handlers.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	timeout  time.Duration
	replyTTL time.Duration
	recorder Recorder
	flood    FloodGuard
}

// DispatcherConfig contains configuration options for the Dispatcher.
type DispatcherConfig struct {
	Registry *Registry
	Logger   *slog.Logger
	Timeout  time.Duration
	// ReplyTimeout bounds each reply send; defaults to DefaultReplyTimeout.
	ReplyTimeout time.Duration
	Recorder     Recorder   // optional
	Flood        FloodGuard // optional
}

// NewDispatcher creates a new Dispatcher with the given configuration.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	replyTTL := cfg.ReplyTimeout
	if replyTTL <= 0 {
		replyTTL = DefaultReplyTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		registry: cfg.Registry,
		logger:   logger,
		timeout:  timeout,
		replyTTL: replyTTL,
		recorder: cfg.Recorder,
		flood:    cfg.Flood,
	}
}

// Registry returns the registry the dispatcher resolves commands against.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs one invocation to completion. It never panics and never returns
// an error: every failure is answered in the triggering scope and logged.
// Cancelling ctx does not abort a running handler; a reply still pending after
// that is given at most the reply timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) Outcome {
	session := sessionName(call.Session)
	logger := d.logger.With(
		"session", session,
		"scope", call.Scope.String(),
		"sender", call.Sender,
		"command", call.Invocation.Name,
	)

	if d.flood != nil && d.flood.Seen(dedupe.Key(session, uint32(call.Sender), call.Text)) {
		logger.Debug("dropping repeated command")
		return OutcomeDropped
	}

	// Replies and handlers outlive shutdown so no reply is cut in half.
	detached := context.WithoutCancel(ctx)

	desc, ok := d.registry.Lookup(call.Invocation.Name)
	if !ok {
		logger.Debug("unknown command")
		d.reply(detached, logger, call.Reply, fmt.Sprintf(UnknownCommandFormat, call.Invocation.Name))
		d.record(detached, logger, call, OutcomeUnknown, 0, nil)
		return OutcomeUnknown
	}

	logger.Info("→ dispatching command", "args", call.Invocation.Args)

	start := time.Now()
	result, err := d.invoke(detached, desc, call, logger)
	elapsed := time.Since(start)

	outcome := OutcomeOK
	switch {
	case err == nil:
		logger.Debug("command completed", "duration", elapsed)
		if result != "" {
			d.reply(detached, logger, call.Reply, result)
		}
	case errors.Is(err, context.DeadlineExceeded):
		outcome = OutcomeTimeout
		logger.Error("command timed out",
			"duration", elapsed,
			"timeout", d.timeout,
			"error", err,
		)
		d.reply(detached, logger, call.Reply, FailureReply)
	default:
		outcome = OutcomeFailed
		var panicErr *PanicError
		if errors.As(err, &panicErr) {
			logger.Error("command panicked",
				"duration", elapsed,
				"error", err,
				"stack", string(panicErr.Stack),
			)
		} else {
			logger.Error("command failed",
				"duration", elapsed,
				"error", err,
			)
		}
		d.reply(detached, logger, call.Reply, FailureReply)
	}

	d.record(detached, logger, call, outcome, elapsed, err)
	return outcome
}

// invoke runs the handler under a deadline and converts panics into errors.
// A handler that overruns its deadline is reported as timed out even if it
// returned a result.
func (d *Dispatcher) invoke(ctx context.Context, desc *Descriptor, call Call, logger *slog.Logger) (result string, err error) {
	hctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			result = ""
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	req := &Request{
		Session: call.Session,
		Scope:   call.Scope,
		Sender:  call.Sender,
		Args:    call.Invocation.Args,
		Chat:    call.Chat,
		Logger:  logger,
	}

	result, err = desc.Handler(hctx, req)
	if errors.Is(hctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		overrun := fmt.Errorf("command '%s' exceeded %s: %w", desc.Name, d.timeout, context.DeadlineExceeded)
		return "", errors.Join(overrun, err)
	}
	return result, err
}

func (d *Dispatcher) reply(ctx context.Context, logger *slog.Logger, reply Replier, text string) {
	if reply == nil {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, d.replyTTL)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("reply panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := reply(rctx, text); err != nil {
		logger.Warn("failed to send reply", "error", err)
	}
}

func (d *Dispatcher) record(ctx context.Context, logger *slog.Logger, call Call, outcome Outcome, elapsed time.Duration, err error) {
	if d.recorder == nil {
		return
	}
	rec := Record{
		Session:  sessionName(call.Session),
		Scope:    call.Scope,
		Sender:   call.Sender,
		Command:  call.Invocation.Name,
		Args:     call.Invocation.Args,
		Outcome:  outcome,
		Duration: elapsed,
		Err:      err,
	}
	if rerr := d.recorder.RecordInvocation(ctx, rec); rerr != nil {
		logger.Warn("failed to record invocation", "error", rerr)
	}
}

func sessionName(s SessionInfo) string {
	if s == nil {
		return ""
	}
	return s.Name()
}
