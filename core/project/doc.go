// Package project ties the asset bank, the compiler and the code module host
// together and drives them from a single main timeline.
//
// # Reload ordering
//
// Reload first finishes any rebuild. After a successful build the new module is
// instantiated, every bank entry of a module-dependent kind is unloaded, and
// only then is the new module activated and the old one retired. A failed build
// leaves both the module and the cache untouched and exposes its diagnostics
// through Errors. Asset changes are synchronized afterwards.
//
// # Main loop
//
// Loop calls Reload on a ticker. Other goroutines, such as HTTP handlers,
// never touch the bank directly: they submit closures through Loop.Do, which
// runs them between ticks.
package project
