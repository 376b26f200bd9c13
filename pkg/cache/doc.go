// Package cache implements the keyed store of Δ-collections.
//
// SourceCache is the source of truth: a key→value map addressed by a key selector, edited in
// batches, each batch emitting one consolidated change set to its subscribers. Connect replays
// the current content as an Add-only change set before streaming live batches.
//
// Cache and ChangeAwareCache are the insertion-ordered building blocks the stores and the
// operators keep their state in; Query and Snapshot are the read-only views over that state.
package cache
