// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"context"
	"strings"
)

// openString installs the string library.
func (l *State) openString() error {
	lib := NewTable(0, 8)
	funcs := map[string]GoFunc{
		"byte":    stringByte,
		"char":    stringChar,
		"len":     stringLen,
		"lower":   stringLower,
		"rep":     stringRep,
		"reverse": stringReverse,
		"sub":     stringSub,
		"upper":   stringUpper,
	}
	for name, cb := range funcs {
		if err := lib.Set(String(name), NewFunction("string."+name, cb)); err != nil {
			return err
		}
	}
	l.SetGlobal("string", lib)
	return nil
}

// stringIndex converts a 1-based, possibly negative string position
// to a non-negative 1-based position.
// Positions count from the end when negative,
// and negative positions before the start become 0.
// Non-negative positions are returned unchanged (not clamped to len).
func stringIndex(pos int, length int) int {
	if pos >= 0 {
		return pos
	}
	if -pos > length {
		return 0
	}
	return length + pos + 1
}

func stringSub(ctx context.Context, l *State, args []Value) ([]Value, error) {
	s, err := checkString("sub", args, 1)
	if err != nil {
		return nil, err
	}
	first, err := checkNumber("sub", args, 2)
	if err != nil {
		return nil, err
	}
	last, err := optNumber("sub", args, 3, -1)
	if err != nil {
		return nil, err
	}
	i := stringIndex(int(first), len(s))
	j := stringIndex(int(last), len(s))
	if i < 1 {
		i = 1
	}
	if j > len(s) {
		j = len(s)
	}
	if i > j {
		return []Value{String("")}, nil
	}
	return []Value{String(s[i-1 : j])}, nil
}

func stringLen(ctx context.Context, l *State, args []Value) ([]Value, error) {
	s, err := checkString("len", args, 1)
	if err != nil {
		return nil, err
	}
	return []Value{Number(len(s))}, nil
}

// stringUpper and stringLower operate per byte on the ASCII letters,
// like the C locale functions the reference implementation uses.
func stringUpper(ctx context.Context, l *State, args []Value) ([]Value, error) {
	s, err := checkString("upper", args, 1)
	if err != nil {
		return nil, err
	}
	b := []byte(s)
	for i, c := range b {
		if 'a' <= c && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return []Value{String(b)}, nil
}

func stringLower(ctx context.Context, l *State, args []Value) ([]Value, error) {
	s, err := checkString("lower", args, 1)
	if err != nil {
		return nil, err
	}
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return []Value{String(b)}, nil
}

func stringRep(ctx context.Context, l *State, args []Value) ([]Value, error) {
	s, err := checkString("rep", args, 1)
	if err != nil {
		return nil, err
	}
	n, err := checkNumber("rep", args, 2)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []Value{String("")}, nil
	}
	return []Value{String(strings.Repeat(s, int(n)))}, nil
}

func stringReverse(ctx context.Context, l *State, args []Value) ([]Value, error) {
	s, err := checkString("reverse", args, 1)
	if err != nil {
		return nil, err
	}
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return []Value{String(b)}, nil
}

func stringByte(ctx context.Context, l *State, args []Value) ([]Value, error) {
	s, err := checkString("byte", args, 1)
	if err != nil {
		return nil, err
	}
	first, err := optNumber("byte", args, 2, 1)
	if err != nil {
		return nil, err
	}
	last, err := optNumber("byte", args, 3, first)
	if err != nil {
		return nil, err
	}
	i := stringIndex(int(first), len(s))
	j := stringIndex(int(last), len(s))
	if i < 1 {
		i = 1
	}
	if j > len(s) {
		j = len(s)
	}
	var results []Value
	for ; i <= j; i++ {
		results = append(results, Number(s[i-1]))
	}
	return results, nil
}

func stringChar(ctx context.Context, l *State, args []Value) ([]Value, error) {
	b := make([]byte, len(args))
	for i := range args {
		n, err := checkNumber("char", args, i+1)
		if err != nil {
			return nil, err
		}
		if n < 0 || n > 255 {
			return nil, NewArgError("char", i+1, "value out of range")
		}
		b[i] = byte(n)
	}
	return []Value{String(b)}, nil
}
