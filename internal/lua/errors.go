// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"context"
	"errors"
	"fmt"

	"luna/internal/luacode"
)

// Error is a Lua runtime error.
// The wrapped value is what propagates to a coroutine.resume boundary
// (or the embedder) as the error object.
// Errors raised by the interpreter itself carry string values
// prefixed with a "source:line:" position.
type Error struct {
	value Value
}

// NewError returns an [*Error] carrying the given error object.
func NewError(value Value) *Error {
	return &Error{value: value}
}

// Value returns the error object.
func (e *Error) Value() Value {
	return e.value
}

// Error renders the error object without calling metamethods.
func (e *Error) Error() string {
	return displayString(e.value)
}

// errorToValue converts a Go error to the Lua value
// observed by coroutine.resume.
// errorToValue(nil) returns nil.
func errorToValue(err error) Value {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e.value
	}
	return String(err.Error())
}

// position renders the "source:line" prefix for a runtime error
// raised at instruction pc of the prototype.
func position(proto *luacode.Prototype, pc int) string {
	line := proto.LineAt(pc)
	if line <= 0 {
		return proto.Source.String()
	}
	return fmt.Sprintf("%v:%d", proto.Source, line)
}

// runtimeError wraps err with the frame's current source position
// unless it already carries one.
// Context cancellation passes through untouched
// so the embedder can distinguish it from script errors.
func (fr *frame) runtimeError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{value: String(fmt.Sprintf("%s: %v", position(fr.closure.proto, fr.pc-1), err))}
}

// errorf raises a runtime error at the frame's current position.
func (fr *frame) errorf(format string, args ...any) error {
	return &Error{value: String(fmt.Sprintf("%s: %s", position(fr.closure.proto, fr.pc-1), fmt.Sprintf(format, args...)))}
}
