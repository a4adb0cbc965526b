// Package entity declares the synchronized entity types and their dependency
// graph.
//
// Each type is a Descriptor record: remote collection, referenced types, and
// approval-field overrides for the conflict resolver. The Registry computes a
// single topological sync order from the declared graph at startup and rejects
// cycles, replacing hand-maintained ordered lists.
package entity
