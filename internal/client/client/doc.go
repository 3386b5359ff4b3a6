// Package client talks to the picshare gRPC service.
//
// GRPCClient owns the connection and the session token handed out by Login.
// The token is attached to every outgoing call by a unary interceptor, so the
// per-call methods never deal with metadata themselves. gRPC status codes are
// mapped back to the sentinel errors in errors.go and can be matched with
// errors.Is.
//
// A GRPCClient is not safe for concurrent Login/Logout; read-only calls may be
// issued from several goroutines once a session is established.
package client
