// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import "fmt"

// arg returns the i'th (0-based) argument or nil if absent.
func arg(args []Value, i int) Value {
	if i < 0 || i >= len(args) {
		return nil
	}
	return args[i]
}

// NewArgError returns an error reporting a problem
// with the i'th (1-based) argument to the named function.
func NewArgError(fname string, i int, msg string) error {
	return &Error{value: String(fmt.Sprintf("bad argument #%d to '%s' (%s)", i, fname, msg))}
}

// newTypeError returns an argument error
// for a value of the wrong type.
func newTypeError(fname string, i int, want string, got Value) error {
	return NewArgError(fname, i, fmt.Sprintf("%s expected, got %v", want, TypeOf(got)))
}

// checkNumber coerces the i'th (1-based) argument to a number.
func checkNumber(fname string, args []Value, i int) (float64, error) {
	v := arg(args, i-1)
	n, ok := toNumber(v)
	if !ok {
		return 0, newTypeError(fname, i, "number", v)
	}
	return float64(n), nil
}

// optNumber coerces the i'th (1-based) argument to a number,
// substituting def if the argument is nil or absent.
func optNumber(fname string, args []Value, i int, def float64) (float64, error) {
	if arg(args, i-1) == nil {
		return def, nil
	}
	return checkNumber(fname, args, i)
}

// checkString coerces the i'th (1-based) argument to a string.
func checkString(fname string, args []Value, i int) (string, error) {
	v := arg(args, i-1)
	s, ok := toString(v)
	if !ok {
		return "", newTypeError(fname, i, "string", v)
	}
	return string(s), nil
}

// checkTable requires the i'th (1-based) argument to be a table.
func checkTable(fname string, args []Value, i int) (*Table, error) {
	v := arg(args, i-1)
	t, ok := v.(*Table)
	if !ok {
		return nil, newTypeError(fname, i, "table", v)
	}
	return t, nil
}

// checkCoroutine requires the i'th (1-based) argument to be a coroutine.
func checkCoroutine(fname string, args []Value, i int) (*Coroutine, error) {
	v := arg(args, i-1)
	co, ok := v.(*Coroutine)
	if !ok {
		return nil, newTypeError(fname, i, "coroutine", v)
	}
	return co, nil
}
