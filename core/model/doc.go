// Package model defines the canonical datapoint schema shared by every
// parser, validator and store in the pipeline.
//
// All timestamps are UTC instants; naive local times never cross a package
// boundary. Constructors enforce the field-level invariants (non-negative
// production, closed fuel vocabulary, sorted exchange keys, timestamp
// horizon) and reject violations instead of fixing them. Events are treated
// as immutable values once constructed.
package model
