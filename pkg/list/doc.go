// Package list implements SourceList, the index-ordered source of Δ-collections, together with
// the change-aware slice that records list changes and the Clone materializer that replays them.
//
// A SourceList emits one change.ListChangeSet per edit batch. Connect replays the current items as
// a single AddRange before the live batches; LimitSizeTo keeps a list within a size bound by
// evicting items inside the batch that overflowed it.
package list
