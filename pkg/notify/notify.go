// Package notify defines the change-notification capability items implement to have in-place
// mutations picked up by operator.AutoRefresh.
package notify

import (
	"sync"

	"github.com/l7mp/dcollections/pkg/stream"
)

// PropertyNotifier is implemented by items that announce in-place mutations. The stream emits
// the name of the mutated property.
type PropertyNotifier interface {
	WhenPropertyChanged() stream.Stream[string]
}

// Notifier is an embeddable PropertyNotifier. The zero value is ready to use.
type Notifier struct {
	mu      sync.Mutex
	subject *stream.Subject[string]
}

var _ PropertyNotifier = &Notifier{}

func (n *Notifier) get() *stream.Subject[string] {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subject == nil {
		n.subject = stream.NewSubject[string]()
	}
	return n.subject
}

// WhenPropertyChanged implements PropertyNotifier.
func (n *Notifier) WhenPropertyChanged() stream.Stream[string] { return n.get() }

// NotifyChanged announces that property was mutated.
func (n *Notifier) NotifyChanged(property string) { n.get().OnNext(property) }

// WhenChanged streams the value selected by accessor every time one of the given properties of
// item changes, or any property when none is given.
func WhenChanged[T PropertyNotifier, P any](item T, accessor func(T) P, properties ...string) stream.Stream[P] {
	return stream.Map(Properties(item, properties...), func(string) P { return accessor(item) })
}

// Properties streams the change notifications of item restricted to the given properties, or all
// notifications when none is given.
func Properties[T PropertyNotifier](item T, properties ...string) stream.Stream[string] {
	src := item.WhenPropertyChanged()
	if len(properties) == 0 {
		return src
	}
	watched := make(map[string]bool, len(properties))
	for _, p := range properties {
		watched[p] = true
	}
	return stream.Filter(src, func(p string) bool { return watched[p] })
}
