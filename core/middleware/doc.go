// Package middleware contains HTTP middleware for the Fiber application.
//
// It provides cross-cutting concerns that sit between the request and the handler.
//
// # Components
//
//   - auth: API key validation protecting the editor API.
//   - rayid: a unique request id (RayID) for every incoming request, stored in
//     the context and echoed in the X-Ray-ID response header for tracing.
//
// Both are registered globally in the start command.
package middleware
