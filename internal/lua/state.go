// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"luna/internal/luacode"
)

// maxCallDepth bounds the depth of nested function calls
// (and therefore the interpreter's use of the Go stack).
const maxCallDepth = 200

// maxMetaDepth bounds chains of __index, __newindex, and __call metamethods.
const maxMetaDepth = 100

var errStackOverflow = errors.New("stack overflow")

// Options configures a [State].
// The zero value is a usable default.
type Options struct {
	// Output is where the print global writes.
	// If nil, os.Stdout is used.
	Output io.Writer
	// Random is the source used by math.random.
	// If nil, a randomly seeded source is used.
	Random rand.Source
	// Libraries restricts which standard libraries are opened,
	// by name ("base", "math", "string", "coroutine").
	// If nil, all of them are opened.
	Libraries []string
}

// State is a Lua 5.1 virtual machine
// holding a loaded chunk and its global environment.
// A State is not safe for concurrent use.
type State struct {
	proto   *luacode.Prototype
	globals *Table
	// stringMeta is the library-wide metatable shared by all strings.
	// It is reserved to the host and absent by default.
	stringMeta *Table
	out        io.Writer
	rand       *rand.Rand

	// current is the coroutine being executed,
	// or nil when the root chunk is running.
	current    *Coroutine
	rootDepth  int
	coroutines []*Coroutine
	closed     bool
}

// New constructs a [State] from a binary chunk
// (the contents of a luac file),
// opens the configured standard libraries,
// and prepares the main chunk for [State.Run].
// Errors from a malformed chunk wrap [luacode.ErrFormat].
func New(chunk []byte, opts *Options) (*State, error) {
	if opts == nil {
		opts = new(Options)
	}
	proto := new(luacode.Prototype)
	if err := proto.UnmarshalBinary(chunk); err != nil {
		return nil, err
	}
	if proto.NumUpvalues != 0 {
		return nil, fmt.Errorf("load lua chunk: %w: main chunk declares %d upvalues", luacode.ErrFormat, proto.NumUpvalues)
	}

	l := &State{
		proto:   proto,
		globals: NewTable(0, 32),
		out:     opts.Output,
	}
	if l.out == nil {
		l.out = os.Stdout
	}
	src := opts.Random
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	l.rand = rand.New(src)

	if err := l.openLibraries(opts.Libraries); err != nil {
		return nil, err
	}
	return l, nil
}

// Close releases the resources associated with the state.
// Any suspended coroutines are discarded;
// resuming them afterward reports them as dead.
func (l *State) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	for _, co := range l.coroutines {
		co.kill()
	}
	l.coroutines = nil
	return nil
}

// Run executes the main chunk and returns its results.
// The context is checked at call boundaries and backward jumps,
// so canceling it terminates a runaway script.
func (l *State) Run(ctx context.Context, args ...Value) ([]Value, error) {
	if l.closed {
		return nil, errors.New("run lua chunk: state is closed")
	}
	main := &Closure{id: nextID(), proto: l.proto}
	return l.call(ctx, main, args)
}

// Globals returns the state's global table.
func (l *State) Globals() *Table {
	return l.globals
}

// Global returns the value of the named global variable.
// The access is raw: no metamethods are consulted.
func (l *State) Global(name string) Value {
	return l.globals.Get(String(name))
}

// SetGlobal sets the named global variable.
// The access is raw: no metamethods are consulted.
func (l *State) SetGlobal(name string, v Value) {
	if err := l.globals.Set(String(name), v); err != nil {
		// Only nil or NaN keys error, and name is a string.
		panic(err)
	}
}

// Register makes a host function available as a global.
func (l *State) Register(name string, cb GoFunc) {
	l.SetGlobal(name, NewFunction(name, cb))
}

// reseed replaces the math.random source with a deterministic one.
func (l *State) reseed(seed uint64) {
	l.rand = rand.New(rand.NewPCG(seed, seed))
}

// depth returns the call depth counter for the running coroutine
// (or the root chunk).
// Each coroutine tracks its own depth:
// a suspended coroutine keeps its frames
// without affecting its siblings.
func (l *State) depth() *int {
	if l.current != nil {
		return &l.current.depth
	}
	return &l.rootDepth
}

// call invokes a callable value with the given arguments
// and returns all of its results.
// Values that are not functions are invoked
// through their "__call" metamethod
// with the original value prepended to the arguments.
func (l *State) call(ctx context.Context, f Value, args []Value) ([]Value, error) {
	depth := l.depth()
	if *depth >= maxCallDepth {
		return nil, errStackOverflow
	}
	*depth++
	defer func() { *depth-- }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for range maxMetaDepth {
		switch f := f.(type) {
		case *Closure:
			fr := newFrame(f, args)
			return l.exec(ctx, fr)
		case *Function:
			results, err := f.cb(ctx, l, args)
			if err != nil {
				if _, ok := err.(*Error); !ok && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					err = &Error{value: String(err.Error())}
				}
				return nil, err
			}
			return results, nil
		default:
			tm := l.metamethod(f, luacode.TagMethodCall)
			if tm == nil {
				return nil, &Error{value: String(fmt.Sprintf("attempt to call a %v value", TypeOf(f)))}
			}
			args = append([]Value{f}, args...)
			f = tm
		}
	}
	return nil, fmt.Errorf("'%v' chain too long; possible loop", luacode.TagMethodCall)
}

// call1 calls a function and returns its first result.
func (l *State) call1(ctx context.Context, f Value, args ...Value) (Value, error) {
	results, err := l.call(ctx, f, args)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// metatable returns the metatable for a value:
// the table's own metatable,
// the shared string metatable for strings,
// or nil.
func (l *State) metatable(v Value) *Table {
	switch v := v.(type) {
	case *Table:
		return v.meta
	case String:
		return l.stringMeta
	default:
		return nil
	}
}

// metamethod returns a field from v's metatable
// or nil if no such field (or metatable) exists.
func (l *State) metamethod(v Value, tm luacode.TagMethod) Value {
	return l.metatable(v).Get(String(tm.String()))
}

// binaryMetamethod returns a metamethod from v1's or v2's metatable,
// preferring v1's,
// or nil if neither value has one.
func (l *State) binaryMetamethod(v1, v2 Value, tm luacode.TagMethod) Value {
	eventName := String(tm.String())
	if mm := l.metatable(v1).Get(eventName); mm != nil {
		return mm
	}
	if mm := l.metatable(v2).Get(eventName); mm != nil {
		return mm
	}
	return nil
}

func (l *State) typeName(v Value) string {
	return TypeOf(v).String()
}

// ToString renders a value the way print does.
func (l *State) ToString(v Value) string {
	return displayString(v)
}
