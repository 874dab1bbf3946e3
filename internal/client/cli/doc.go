// Package cli provides the interactive Conduit command-line client.
//
// It connects to the server over gRPC and runs a REPL with the commands
// register, login, whoami, bio, avatar, logout and exit. Passwords are read
// from the terminal without echo and wiped after use.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
