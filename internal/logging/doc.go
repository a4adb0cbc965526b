// Package logging builds slog loggers for the daemon and CLI.
//
// It maps config values onto console or JSON handlers, fans output out to
// stdout plus a log file, and supplies typed attribute helpers with the
// standardized field keys used across the sync engine (component, entity_type,
// cycle_id, ...). Tests use NewNop to silence components.
package logging
