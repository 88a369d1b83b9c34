// Package pkg provides shared utilities for the softpdm capture driver.
//
// This package contains common functionality used by the driver core, the
// peripheral abstraction and its implementations, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for driver and peripheral errors
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a component attribute:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentAudio, "capture enabled", "skip", 2)
//
// Loggers built with nil handler options share the package level, so
// [SetLogLevel] also applies to a logger installed with [SetLogOutput].
// [ParseLogLevel] and [ParseLogFormat] read the names used in
// configuration files.
//
// # Errors
//
// Driver and peripheral errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrInvalidState) {
//	    // Peripheral was not initialized or is already running
//	}
package pkg
