package operator

import "github.com/go-logr/logr"

var log = logr.Discard()

// SetLogger sets the logger used by every operator. Call it before building pipelines.
func SetLogger(l logr.Logger) { log = l.WithName("operator") }
