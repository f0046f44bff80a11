// ABOUTME: HTTP status API for health checks, session status and the invocation audit trail
// ABOUTME: Read-only JSON endpoints served next to the running sessions

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/2389/ergo/internal/command"
	"github.com/2389/ergo/internal/session"
	"github.com/2389/ergo/internal/store"
)

// InvocationResponse is one row of GET /api/invocations.
type InvocationResponse struct {
	ID         string   `json:"id"`
	Session    string   `json:"session"`
	Scope      string   `json:"scope"`
	Sender     uint32   `json:"sender"`
	Command    string   `json:"command"`
	Args       []string `json:"args"`
	Outcome    string   `json:"outcome"`
	DurationMS int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
	CreatedAt  string   `json:"created_at"`
}

// SessionEventResponse is one row of GET /api/sessions/{name}/events.
type SessionEventResponse struct {
	State     string `json:"state"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

// CommandResponse is one row of GET /api/commands.
type CommandResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleHealth returns 200 OK if the process is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if at least one session is logged in.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if !g.manager.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no sessions logged in"))
		return
	}
	counts := g.manager.CountByState()
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d/%d sessions)", counts[session.StateLoggedIn], len(g.supervisors))
}

// handleListSessions handles GET /api/sessions requests.
func (g *Gateway) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	g.writeJSON(w, g.manager.List())
}

// handleSessionStream handles GET /api/sessions/stream requests.
// It sends the current status of every session, then each change as it
// happens, as Server-Sent Events. Supports ?session= to follow one session.
func (g *Gateway) handleSessionStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before the snapshot so no change falls between them.
	updates := g.manager.Subscribe(r.Context())
	only := r.URL.Query().Get("session")
	wanted := func(st session.Status) bool { return only == "" || st.Name == only }

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, st := range lo.Filter(g.manager.List(), func(st session.Status, _ int) bool { return wanted(st) }) {
		g.writeSSEEvent(w, "status", st)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case st, ok := <-updates:
			if !ok {
				g.writeSSEEvent(w, "done", map[string]string{"reason": "shutdown"})
				flusher.Flush()
				return
			}
			if !wanted(st) {
				continue
			}
			g.writeSSEEvent(w, "status", st)
			flusher.Flush()
		}
	}
}

// handleSessionEvents handles GET /api/sessions/{name}/events requests.
func (g *Gateway) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	name := r.PathValue("name")
	if _, ok := g.manager.Get(name); !ok {
		g.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	limit, ok := g.parseLimit(w, r)
	if !ok {
		return
	}

	events, err := g.store.ListSessionEvents(r.Context(), name, limit)
	if err != nil {
		g.logger.Error("failed to list session events", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.writeJSON(w, lo.Map(events, func(evt store.SessionEvent, _ int) SessionEventResponse {
		return SessionEventResponse{
			State:     evt.State,
			Detail:    evt.Detail,
			CreatedAt: evt.CreatedAt.Format(time.RFC3339),
		}
	}))
}

// handleListInvocations handles GET /api/invocations requests.
// Supports ?limit=N, ?session=, ?command= and ?outcome= filters.
func (g *Gateway) handleListInvocations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit, ok := g.parseLimit(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := store.InvocationFilter{Limit: limit}
	if v := q.Get("session"); v != "" {
		filter.Session = &v
	}
	if v := q.Get("command"); v != "" {
		filter.Command = &v
	}
	if v := q.Get("outcome"); v != "" {
		filter.Outcome = &v
	}

	records, err := g.store.ListInvocations(r.Context(), filter)
	if err != nil {
		g.logger.Error("failed to list invocations", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.writeJSON(w, lo.Map(records, func(rec store.InvocationRecord, _ int) InvocationResponse {
		args := rec.Args
		if args == nil {
			args = []string{}
		}
		return InvocationResponse{
			ID:         rec.ID,
			Session:    rec.Session,
			Scope:      rec.Scope,
			Sender:     rec.Sender,
			Command:    rec.Command,
			Args:       args,
			Outcome:    rec.Outcome,
			DurationMS: rec.Duration.Milliseconds(),
			Error:      rec.Error,
			CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
		}
	}))
}

// handleListCommands handles GET /api/commands requests.
func (g *Gateway) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	g.writeJSON(w, lo.Map(g.registry.All(), func(d *command.Descriptor, _ int) CommandResponse {
		return CommandResponse{Name: d.Name, Description: d.Description}
	}))
}

// parseLimit reads the optional limit parameter (default 20, max 100).
// It writes a 400 response and returns false when the value is invalid.
func (g *Gateway) parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			g.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return 0, false
		}
		limit = min(parsed, 100)
	}
	return limit, true
}

// writeSSEEvent writes one Server-Sent Event with a JSON payload.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

func (g *Gateway) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
