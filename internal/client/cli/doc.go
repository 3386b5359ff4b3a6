// Package cli provides the interactive picshare command-line client.
//
// App wires the client config, a gRPC connection and a read-eval-print loop.
// A background watcher pings the server and reports when it goes offline or
// comes back. Passwords are read from the terminal without echo.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
