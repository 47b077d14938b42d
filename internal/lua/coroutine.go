// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"context"
	"errors"
	"fmt"
)

// CoroutineStatus describes a coroutine's lifecycle state.
type CoroutineStatus int

// Coroutine states.
const (
	CoroutineSuspended CoroutineStatus = iota
	CoroutineRunning
	CoroutineDead
)

// String returns the status name reported by coroutine.status.
func (s CoroutineStatus) String() string {
	switch s {
	case CoroutineSuspended:
		return "suspended"
	case CoroutineRunning:
		return "running"
	case CoroutineDead:
		return "dead"
	default:
		return fmt.Sprintf("CoroutineStatus(%d)", int(s))
	}
}

// A Coroutine is a cooperatively scheduled thread [Value].
//
// Each coroutine runs its body on a dedicated goroutine,
// but execution is strictly serialized:
// resume hands control to the body and blocks,
// and yield hands control back and blocks,
// so exactly one goroutine makes progress at any time.
// The goroutine's native stack preserves the coroutine's frames
// across suspensions, which keeps the executor re-enterable
// without ripping it into an instruction-step machine.
type Coroutine struct {
	id     uint64
	state  *State
	body   Value
	status CoroutineStatus

	// depth is this coroutine's call depth,
	// independent of its siblings' (see State.depth).
	depth int

	started bool
	killed  bool
	// resume delivers arguments into the body;
	// transfer delivers yields, returns, and errors back out.
	resume   chan []Value
	transfer chan transferMsg
}

type transferMsg struct {
	values []Value
	err    error
	// done is true when the body returned or raised
	// rather than yielded.
	done bool
}

func (co *Coroutine) valueType() Type { return TypeThread }

// NewCoroutine creates a suspended coroutine that will run the given
// function value when first resumed. No execution happens yet.
func (l *State) NewCoroutine(body Value) (*Coroutine, error) {
	if tp := TypeOf(body); tp != TypeFunction {
		return nil, fmt.Errorf("cannot create coroutine from a %v value", tp)
	}
	co := &Coroutine{
		id:       nextID(),
		state:    l,
		body:     body,
		resume:   make(chan []Value),
		transfer: make(chan transferMsg),
	}
	l.coroutines = append(l.coroutines, co)
	return co, nil
}

// Status returns the coroutine's state.
func (co *Coroutine) Status() CoroutineStatus {
	return co.status
}

// Resume transfers control to the coroutine.
//
// On the first resume, args become the body's parameters;
// on later resumes, args become the results of the pending yield.
// Resume returns the yielded values (ok=true, the coroutine suspended),
// the body's return values (ok=true, the coroutine is now dead),
// or the error the body raised (ok=false, the coroutine is now dead).
// Resuming a coroutine that is not suspended fails with ok=false.
//
// A context error is returned as a Go error rather than through ok,
// because cancellation must tear down the host, not the script.
func (co *Coroutine) Resume(ctx context.Context, args ...Value) (results []Value, ok bool, err error) {
	l := co.state
	if co.status != CoroutineSuspended || co.killed {
		var what string
		switch {
		case co == l.current:
			what = "non-suspended"
		case co.status == CoroutineDead || co.killed:
			what = "dead"
		default:
			what = "non-suspended"
		}
		return []Value{String("cannot resume " + what + " coroutine")}, false, nil
	}

	prev := l.current
	l.current = co
	co.status = CoroutineRunning
	if !co.started {
		co.started = true
		go co.run(ctx)
	}

	co.resume <- args
	msg := <-co.transfer

	l.current = prev
	if msg.done {
		co.status = CoroutineDead
		if msg.err != nil {
			if errors.Is(msg.err, context.Canceled) || errors.Is(msg.err, context.DeadlineExceeded) {
				return nil, false, msg.err
			}
			return []Value{errorToValue(msg.err)}, false, nil
		}
		return msg.values, true, nil
	}
	co.status = CoroutineSuspended
	return msg.values, true, nil
}

// run is the body goroutine:
// it waits for the first resume's arguments,
// executes the body, and reports the outcome.
func (co *Coroutine) run(ctx context.Context) {
	args, alive := <-co.resume, !co.killed
	if !alive {
		return
	}
	results, err := co.state.call(ctx, co.body, args)
	if co.killed {
		return
	}
	co.transfer <- transferMsg{values: results, err: err, done: true}
}

// Yield suspends the running coroutine,
// delivering values to the resume that started it.
// The results of the next resume become Yield's results.
// Yielding with no coroutine running is an error.
func (l *State) Yield(values []Value) ([]Value, error) {
	co := l.current
	if co == nil {
		return nil, errors.New("attempt to yield from outside a coroutine")
	}
	co.transfer <- transferMsg{values: values}
	args, alive := <-co.resume, !co.killed
	if !alive {
		return nil, errors.New("coroutine state was closed")
	}
	return args, nil
}

// kill abandons a coroutine during [State.Close].
// A suspended body goroutine is woken so that it can exit.
func (co *Coroutine) kill() {
	if co.status == CoroutineDead || co.killed {
		co.status = CoroutineDead
		return
	}
	co.killed = true
	co.status = CoroutineDead
	if co.started {
		// Unblock the body's pending receive; run and Yield observe
		// killed and unwind without touching the transfer channel.
		close(co.resume)
	}
}
