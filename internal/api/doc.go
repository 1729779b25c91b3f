// Package api provides the HTTP and WebSocket surface of the relay.
//
// It exposes the public gate endpoint, the battery read-through, and an
// admin area for credential management and the attempt log, plus a
// WebSocket feed that streams attempts as they happen.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
