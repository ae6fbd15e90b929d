// Package instrumentation measures the duration of host operations by
// replacing their bindings with measuring decorators.
package instrumentation

import (
	"strings"

	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/tree"
)

// SampleFunc receives the duration of one invocation on behalf of receiver.
type SampleFunc func(receiver tree.Node, durationMs float64)

// Wrap returns an operation that calls op with the same receiver and
// arguments, returns exactly what op returns and reports the elapsed time to
// onSample. The sample is reported once per invocation, also when op fails
// or panics. Panics are not recovered.
func Wrap(op tree.Operation, clock Clock, onSample SampleFunc) tree.Operation {
	if clock == nil {
		clock = WallClock{}
	}

	return func(receiver tree.Node, args ...any) (any, error) {
		start := clock.Now()

		defer func() {
			onSample(receiver, Milliseconds(clock.Now().Sub(start)))
		}()

		return op(receiver, args...)
	}
}

var lifecycleCatalog = []frame.Kind{
	frame.KindOnInit,
	frame.KindOnDestroy,
	frame.KindOnChanges,
	frame.KindDoCheck,
	frame.KindAfterContentInit,
	frame.KindAfterContentChecked,
	frame.KindAfterViewInit,
	frame.KindAfterViewChecked,
}

// Classify maps an operation name to a lifecycle kind. The match is a
// case-insensitive substring match and the last matching catalog entry wins.
func Classify(name string) frame.Kind {
	name = strings.ToLower(name)
	kind := frame.KindUnknown

	for _, k := range lifecycleCatalog {
		if strings.Contains(name, strings.ToLower(string(k))) {
			kind = k
		}
	}

	return kind
}
