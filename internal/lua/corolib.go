// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"context"
	"errors"
)

// openCoroutine installs the coroutine library.
func (l *State) openCoroutine() error {
	lib := NewTable(0, 8)
	funcs := map[string]GoFunc{
		"create": coroCreate,
		"resume": coroResume,
		"status": coroStatus,
		"wrap":   coroWrap,
		"yield":  coroYield,
	}
	for name, cb := range funcs {
		if err := lib.Set(String(name), NewFunction("coroutine."+name, cb)); err != nil {
			return err
		}
	}
	l.SetGlobal("coroutine", lib)
	return nil
}

func coroCreate(ctx context.Context, l *State, args []Value) ([]Value, error) {
	body := arg(args, 0)
	if TypeOf(body) != TypeFunction {
		return nil, newTypeError("create", 1, "function", body)
	}
	co, err := l.NewCoroutine(body)
	if err != nil {
		return nil, err
	}
	return []Value{co}, nil
}

func coroResume(ctx context.Context, l *State, args []Value) ([]Value, error) {
	co, err := checkCoroutine("resume", args, 1)
	if err != nil {
		return nil, err
	}
	results, ok, err := co.Resume(ctx, args[1:]...)
	if err != nil {
		return nil, err
	}
	return append([]Value{Boolean(ok)}, results...), nil
}

func coroYield(ctx context.Context, l *State, args []Value) ([]Value, error) {
	return l.Yield(args)
}

func coroStatus(ctx context.Context, l *State, args []Value) ([]Value, error) {
	co, err := checkCoroutine("status", args, 1)
	if err != nil {
		return nil, err
	}
	return []Value{String(co.Status().String())}, nil
}

func coroWrap(ctx context.Context, l *State, args []Value) ([]Value, error) {
	body := arg(args, 0)
	if TypeOf(body) != TypeFunction {
		return nil, newTypeError("wrap", 1, "function", body)
	}
	co, err := l.NewCoroutine(body)
	if err != nil {
		return nil, err
	}
	wrapper := NewFunction("coroutine.wrap", func(ctx context.Context, l *State, args []Value) ([]Value, error) {
		results, ok, err := co.Resume(ctx, args...)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Unlike resume, a wrapped coroutine propagates the error.
			if len(results) > 0 {
				return nil, &Error{value: results[0]}
			}
			return nil, errors.New("coroutine failed")
		}
		return results, nil
	})
	return []Value{wrapper}, nil
}
