// Package gateway orchestrates the ergo bot components.
//
// # Overview
//
// The gateway is the central coordinator: it opens the audit store, builds
// the command registry and dispatcher shared by all sessions, and creates one
// session.Supervisor per configured account.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, dialer, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx) // blocks until every session has ended
//
// Run starts each supervisor in its own goroutine. Sessions are independent:
// one ending fatally (unknown or already-online character) leaves the others
// running. Run returns nil after ctx is cancelled, or the joined fatal errors
// when no session is left.
//
// # HTTP API
//
// When server.http_addr is set the following read-only endpoints are served:
//
//	GET /health                      liveness, always 200
//	GET /health/ready                200 once any session is logged in, else 503
//	GET /api/sessions                status of every session
//	GET /api/sessions/stream         status changes as Server-Sent Events (?session)
//	GET /api/sessions/{name}/events  supervisor transitions of one session
//	GET /api/invocations             dispatched commands (?limit, ?session, ?command, ?outcome)
//	GET /api/commands                registered commands
package gateway
