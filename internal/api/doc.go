// Package api implements the HTTP REST API and WebSocket server for
// EdgeFlow Core.
//
// This package provides:
//   - REST endpoints for action templates, ad hoc execution, the host
//     table, service watches and the variable store
//   - WebSocket hub broadcasting engine events to subscribed clients
//   - JWT bearer authentication on all mutating routes
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// The server sits in front of the action engine: requests admit work
// onto the bounded queue exactly like any other caller and receive the
// same result records. Execution events flow back out through the hub.
package api
