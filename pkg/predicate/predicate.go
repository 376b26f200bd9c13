// Package predicate compiles expr-lang expressions into item predicates for operator.Filter and
// operator.FilterDynamic.
package predicate

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-logr/logr"

	"github.com/l7mp/dcollections/pkg/stream"
)

// ErrInvalidPredicate is returned for expressions that do not compile to a boolean.
var ErrInvalidPredicate = errors.New("invalid predicate")

// Predicate is the serialized form of a predicate, as read from scenario files.
type Predicate struct {
	// Expression is an expr-lang boolean expression over the fields of the item, e.g.
	// `age > 30 && name startsWith "a"`.
	Expression string `json:"expression"`
}

// Option configures compiled predicates.
type Option func(*options)

type options struct {
	log logr.Logger
}

// WithLogger sets the logger evaluation failures are reported to.
func WithLogger(log logr.Logger) Option { return func(o *options) { o.log = log } }

// Compile compiles expression into a predicate over V. The item is the environment of the
// expression: fields of a struct or keys of a map are variables. For struct items the expression
// is type checked at compile time; for maps unknown variables evaluate to nil. An item the
// expression fails on at run time does not match.
func Compile[V any](expression string, opts ...Option) (func(V) bool, error) {
	o := options{log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	if expression == "" {
		return nil, errors.Wrap(ErrInvalidPredicate, "expression must not be empty")
	}

	program, err := expr.Compile(expression, append(envOptions[V](), expr.AsBool())...)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidPredicate, "%q: %s", expression, err.Error())
	}
	return newPredicate[V](program, expression, o.log), nil
}

// ToPredicate compiles a serialized predicate.
func ToPredicate[V any](p Predicate, opts ...Option) (func(V) bool, error) {
	return Compile[V](p.Expression, opts...)
}

// FromExpressions compiles every expression arriving on src into a predicate, for use with
// operator.FilterDynamic. Expressions that do not compile are logged and skipped, keeping the
// previous predicate in effect.
func FromExpressions[V any](src stream.Stream[string], opts ...Option) stream.Stream[func(V) bool] {
	o := options{log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return stream.Create(func(out stream.Observer[func(V) bool]) stream.Subscription {
		return src.Subscribe(stream.Forward(out, func(expression string) {
			pred, err := Compile[V](expression, opts...)
			if err != nil {
				o.log.Error(err, "ignoring predicate")
				return
			}
			o.log.V(4).Info("predicate: compiled", "expression", expression)
			out.OnNext(pred)
		}))
	})
}

func envOptions[V any]() []expr.Option {
	var zero V
	t := reflect.TypeOf(&zero).Elem()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		return []expr.Option{expr.Env(reflect.New(t).Elem().Interface())}
	}
	return []expr.Option{expr.Env(map[string]any{}), expr.AllowUndefinedVariables()}
}

func newPredicate[V any](program *vm.Program, expression string, log logr.Logger) func(V) bool {
	return func(item V) bool {
		ret, err := expr.Run(program, item)
		if err != nil {
			log.V(4).Info("predicate: evaluation failed", "expression", expression, "error", err.Error())
			return false
		}
		b, ok := ret.(bool)
		return ok && b
	}
}
