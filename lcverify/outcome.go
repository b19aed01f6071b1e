// Package lcverify compares an expected line sequence with the lines a
// program actually produced.
//
// A comparison yields exactly one of three states. Success and Failure
// are values, never errors; Error carries the execution fault that kept the
// comparison from happening at all.
package lcverify

import "fmt"

// State is the discriminant of an Outcome.
type State int

const (
	Success State = iota
	Failure
	Error
)

func (s State) String() string {
	switch s {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// NoIndex is the offending index of every outcome that is not a content
// mismatch at a specific line.
const NoIndex = -1

// Outcome is the result of one comparison. The zero value is Success.
type Outcome struct {
	state   State
	index   int
	message string
	err     error
}

// Succeeded returns a Success outcome.
func Succeeded() Outcome {
	return Outcome{state: Success, index: NoIndex}
}

// Failed returns a Failure outcome. index is the first offending line, or
// NoIndex for a length mismatch.
func Failed(index int, message string) Outcome {
	if index < 0 {
		index = NoIndex
	}
	return Outcome{state: Failure, index: index, message: message}
}

// Errored returns an Error outcome carrying cause.
func Errored(cause error) Outcome {
	msg := "execution failed"
	if cause != nil {
		msg = cause.Error()
	}
	return Outcome{state: Error, index: NoIndex, message: msg, err: cause}
}

func (o Outcome) State() State { return o.state }

// Index is the zero-based first offending line, or NoIndex.
func (o Outcome) Index() int {
	if o.state != Failure {
		return NoIndex
	}
	return o.index
}

func (o Outcome) Message() string { return o.message }

// Err is the execution fault of an Error outcome, and nil otherwise.
func (o Outcome) Err() error { return o.err }

func (o Outcome) OK() bool { return o.state == Success }

func (o Outcome) String() string {
	switch o.state {
	case Success:
		return "success"
	case Failure:
		if o.index == NoIndex {
			return "failure: " + o.message
		}
		return fmt.Sprintf("failure at line %d: %s", o.index, o.message)
	default:
		return "error: " + o.message
	}
}
