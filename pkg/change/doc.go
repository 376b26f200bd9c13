// Package change contains the kernel types of Δ-collections: keyed changes and change sets,
// index-ordered list changes, sorted change sets and the Optional presence wrapper.
//
// A change set is the unit of propagation: one edit batch on a store, or one reactive
// re-evaluation inside an operator, produces exactly one change set. Empty change sets are never
// emitted. Aggregate counts (Adds, Updates, ...) are derived from the changes on demand.
package change
