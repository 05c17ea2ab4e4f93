package replay

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
)

// ErrKind classifies a failure. Only Configuration, IO, and State ever
// surface from Context methods; transient send failures stay in
// stats.failed and an abort is not an error at all (distinguished only by
// comparing stats before/after).
type ErrKind int

const (
	ErrConfiguration ErrKind = iota
	ErrIO
	ErrState
)

func (k ErrKind) String() string {
	switch k {
	case ErrConfiguration:
		return "configuration"
	case ErrIO:
		return "io"
	case ErrState:
		return "state"
	default:
		return "unknown"
	}
}

// ReplayError is a tagged error variant with a formatted description.
// Func/Line record where the error originated, so callers get the
// equivalent of "errors carry originating function and line" without a
// fixed C-style buffer.
type ReplayError struct {
	Kind ErrKind
	Func string
	Line int
	Err  error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("%s (%s:%d): %v", e.Kind, e.Func, e.Line, e.Err)
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}

func newErr(kind ErrKind, skip int, format string, args ...interface{}) *ReplayError {
	pc, _, line, ok := runtime.Caller(skip)
	funcName := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			funcName = fn.Name()
		}
	}
	return &ReplayError{
		Kind: kind,
		Func: funcName,
		Line: line,
		Err:  errors.Errorf(format, args...),
	}
}

func configErrorf(format string, args ...interface{}) *ReplayError {
	return newErr(ErrConfiguration, 2, format, args...)
}

func ioErrorf(format string, args ...interface{}) *ReplayError {
	return newErr(ErrIO, 2, format, args...)
}

func stateErrorf(format string, args ...interface{}) *ReplayError {
	return newErr(ErrState, 2, format, args...)
}

// wrapIOErr tags an arbitrary lower-level error (e.g. from gopacket/pcap) as
// an ErrIO failure while preserving Cause()/Unwrap() chains.
func wrapIOErr(err error, format string, args ...interface{}) *ReplayError {
	e := newErr(ErrIO, 2, format, args...)
	e.Err = errors.Wrap(err, e.Err.Error())
	return e
}
