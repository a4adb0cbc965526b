// Package config loads, normalizes, and validates feltsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FELTSYNC_API_TOKEN. The Config type centralizes every knob the daemon and
// CLI need: local state directories, remote store credentials, and sync
// timing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
