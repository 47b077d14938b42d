// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"luna/internal/luacode"
)

// openBase installs the basic library into the global table.
func (l *State) openBase() error {
	funcs := map[string]GoFunc{
		"assert":       baseAssert,
		"error":        baseError,
		"getmetatable": baseGetMetatable,
		"ipairs":       baseIPairs,
		"next":         baseNext,
		"pairs":        basePairs,
		"print":        basePrint,
		"rawequal":     baseRawEqual,
		"rawget":       baseRawGet,
		"rawset":       baseRawSet,
		"select":       baseSelect,
		"setmetatable": baseSetMetatable,
		"tonumber":     baseToNumber,
		"tostring":     baseToString,
		"type":         baseType,
		"unpack":       baseUnpack,
	}
	for name, cb := range funcs {
		l.Register(name, cb)
	}
	// pairs hands out the same next function it is registered with.
	l.SetGlobal("_G", l.globals)
	return nil
}

func basePrint(ctx context.Context, l *State, args []Value) ([]Value, error) {
	parts := make([]string, len(args))
	for i, v := range args {
		parts[i] = l.ToString(v)
	}
	if _, err := fmt.Fprintln(l.out, strings.Join(parts, "\t")); err != nil {
		return nil, fmt.Errorf("print: %v", err)
	}
	return nil, nil
}

func baseToString(ctx context.Context, l *State, args []Value) ([]Value, error) {
	if len(args) == 0 {
		return nil, NewArgError("tostring", 1, "value expected")
	}
	return []Value{String(l.ToString(args[0]))}, nil
}

func baseToNumber(ctx context.Context, l *State, args []Value) ([]Value, error) {
	if len(args) == 0 {
		return nil, NewArgError("tonumber", 1, "value expected")
	}
	base := 10
	if arg(args, 1) != nil {
		b, err := checkNumber("tonumber", args, 2)
		if err != nil {
			return nil, err
		}
		base = int(b)
		if base < 2 || base > 36 {
			return nil, NewArgError("tonumber", 2, "base out of range")
		}
	}

	if base == 10 {
		if n, ok := toNumber(args[0]); ok {
			return []Value{n}, nil
		}
		return []Value{nil}, nil
	}
	s, ok := args[0].(String)
	if !ok {
		return nil, newTypeError("tonumber", 1, "string", args[0])
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(s)), base, 64)
	if err != nil {
		return []Value{nil}, nil
	}
	return []Value{Number(n)}, nil
}

func baseType(ctx context.Context, l *State, args []Value) ([]Value, error) {
	if len(args) == 0 {
		return nil, NewArgError("type", 1, "value expected")
	}
	return []Value{String(TypeOf(args[0]).String())}, nil
}

func baseNext(ctx context.Context, l *State, args []Value) ([]Value, error) {
	t, err := checkTable("next", args, 1)
	if err != nil {
		return nil, err
	}
	k, v, ok, err := t.Next(arg(args, 1))
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Value{nil}, nil
	}
	return []Value{k, v}, nil
}

func basePairs(ctx context.Context, l *State, args []Value) ([]Value, error) {
	t, err := checkTable("pairs", args, 1)
	if err != nil {
		return nil, err
	}
	next := l.Global("next")
	if next == nil {
		next = NewFunction("next", baseNext)
	}
	return []Value{next, t, nil}, nil
}

func baseIPairs(ctx context.Context, l *State, args []Value) ([]Value, error) {
	t, err := checkTable("ipairs", args, 1)
	if err != nil {
		return nil, err
	}
	iterator := NewFunction("ipairs iterator", func(ctx context.Context, l *State, args []Value) ([]Value, error) {
		t, err := checkTable("ipairs iterator", args, 1)
		if err != nil {
			return nil, err
		}
		i, err := checkNumber("ipairs iterator", args, 2)
		if err != nil {
			return nil, err
		}
		i++
		v := t.Get(Number(i))
		if v == nil {
			return []Value{nil}, nil
		}
		return []Value{Number(i), v}, nil
	})
	return []Value{iterator, t, Number(0)}, nil
}

func baseSelect(ctx context.Context, l *State, args []Value) ([]Value, error) {
	if s, ok := arg(args, 0).(String); ok && s == "#" {
		return []Value{Number(len(args) - 1)}, nil
	}
	n, err := checkNumber("select", args, 1)
	if err != nil {
		return nil, err
	}
	i := int(n)
	rest := args[1:]
	switch {
	case i < 0:
		// A negative index counts from the end of the argument list.
		i = len(rest) + i
		if i < 0 {
			return nil, NewArgError("select", 1, "index out of range")
		}
		return rest[i:], nil
	case i == 0:
		return nil, NewArgError("select", 1, "index out of range")
	case i > len(rest):
		return nil, nil
	default:
		return rest[i-1:], nil
	}
}

func baseSetMetatable(ctx context.Context, l *State, args []Value) ([]Value, error) {
	t, err := checkTable("setmetatable", args, 1)
	if err != nil {
		return nil, err
	}
	var meta *Table
	switch m := arg(args, 1).(type) {
	case nil:
	case *Table:
		meta = m
	default:
		return nil, newTypeError("setmetatable", 2, "nil or table", m)
	}
	if l.metamethod(t, luacode.TagMethodMetatable) != nil {
		return nil, errors.New("cannot change a protected metatable")
	}
	t.SetMetatable(meta)
	return []Value{t}, nil
}

func baseGetMetatable(ctx context.Context, l *State, args []Value) ([]Value, error) {
	if len(args) == 0 {
		return nil, NewArgError("getmetatable", 1, "value expected")
	}
	meta := l.metatable(args[0])
	if meta == nil {
		return []Value{nil}, nil
	}
	if protected := meta.Get(String(luacode.TagMethodMetatable.String())); protected != nil {
		return []Value{protected}, nil
	}
	return []Value{meta}, nil
}

func baseRawGet(ctx context.Context, l *State, args []Value) ([]Value, error) {
	t, err := checkTable("rawget", args, 1)
	if err != nil {
		return nil, err
	}
	return []Value{t.Get(arg(args, 1))}, nil
}

func baseRawSet(ctx context.Context, l *State, args []Value) ([]Value, error) {
	t, err := checkTable("rawset", args, 1)
	if err != nil {
		return nil, err
	}
	if err := t.Set(arg(args, 1), arg(args, 2)); err != nil {
		return nil, err
	}
	return []Value{t}, nil
}

func baseRawEqual(ctx context.Context, l *State, args []Value) ([]Value, error) {
	if len(args) < 2 {
		return nil, NewArgError("rawequal", 2, "value expected")
	}
	return []Value{Boolean(valuesEqual(args[0], args[1]))}, nil
}

func baseAssert(ctx context.Context, l *State, args []Value) ([]Value, error) {
	if len(args) == 0 {
		return nil, NewArgError("assert", 1, "value expected")
	}
	if !toBoolean(args[0]) {
		if msg := arg(args, 1); msg != nil {
			return nil, &Error{value: msg}
		}
		return nil, errors.New("assertion failed!")
	}
	return args, nil
}

func baseError(ctx context.Context, l *State, args []Value) ([]Value, error) {
	return nil, &Error{value: arg(args, 0)}
}

func baseUnpack(ctx context.Context, l *State, args []Value) ([]Value, error) {
	t, err := checkTable("unpack", args, 1)
	if err != nil {
		return nil, err
	}
	first, err := optNumber("unpack", args, 2, 1)
	if err != nil {
		return nil, err
	}
	last, err := optNumber("unpack", args, 3, float64(t.Len()))
	if err != nil {
		return nil, err
	}
	var results []Value
	for i := int(first); i <= int(last); i++ {
		results = append(results, t.Get(Number(i)))
	}
	return results, nil
}
