// ABOUTME: Adapters that persist dispatcher records and supervisor transitions in the store
// ABOUTME: Keeps the store package independent of command and session types

package gateway

import (
	"context"

	"github.com/2389/ergo/internal/command"
	"github.com/2389/ergo/internal/session"
	"github.com/2389/ergo/internal/store"
)

type invocationRecorder struct {
	store store.Store
}

func (r invocationRecorder) RecordInvocation(ctx context.Context, rec command.Record) error {
	var errText string
	if rec.Err != nil {
		errText = rec.Err.Error()
	}
	return r.store.RecordInvocation(ctx, &store.InvocationRecord{
		Session:  rec.Session,
		Scope:    rec.Scope.Kind.String(),
		Sender:   uint32(rec.Sender),
		Command:  rec.Command,
		Args:     rec.Args,
		Outcome:  string(rec.Outcome),
		Duration: rec.Duration,
		Error:    errText,
	})
}

type transitionRecorder struct {
	store store.Store
}

func (r transitionRecorder) RecordTransition(ctx context.Context, t session.Transition) error {
	return r.store.RecordSessionEvent(ctx, &store.SessionEvent{
		Session:   t.Session,
		State:     string(t.State),
		Detail:    t.Detail,
		CreatedAt: t.At,
	})
}
