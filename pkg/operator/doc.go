// Package operator contains the stages that derive new collections from keyed change-set
// streams: filtering, projection, flattening, sorting, grouping, joining, windowing and the key
// adapters.
//
// Every operator is a function from one or more upstream streams to a new stream. Nothing happens
// until the result is subscribed; each subscription builds its own derived state from the replay
// the upstream sends on subscribe and maintains it incrementally from then on, emitting only the
// delta each upstream change set implies. Empty change sets are never emitted.
//
// Invalid construction arguments panic with an error wrapping ErrInvalidArgument. Errors raised
// while the pipeline runs travel downstream through OnError and terminate the pipeline.
package operator
