// Package engine coordinates full synchronization cycles over the registered
// entity types.
//
// A cycle is gated on connectivity, then runs a pull pass and a push pass in
// dependency order so referenced records always land before records that
// reference them. At most one cycle runs at a time; triggers during a running
// cycle coalesce into a single follow-up run. The scheduler layers periodic
// execution and immediate triggers on top of the orchestrator.
package engine
