// Package main hosts the feltsync CLI entrypoint and command graph.
//
// The Cobra-based command tree covers queue inspection and maintenance,
// on-demand sync cycles, sync status reporting, and configuration
// scaffolding. It centralizes configuration resolution and store access so
// subcommands can focus on presentation.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
