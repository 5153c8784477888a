// Package server holds the editor HTTP server configuration.
//
// The main command owns the Fiber application; this package only defines the
// settings it is started with: whether the API is served at all, the port,
// the API key and how long a graceful shutdown may take.
package server
