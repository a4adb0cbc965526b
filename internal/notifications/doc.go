// Package notifications delivers sync engine events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Cycle summaries and error alerts can be toggled independently.
//
// Extend this package if you need alternative transports; the engine depends
// only on the Service interface.
package notifications
