// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"bytes"
	"io"
	"math"
	"math/rand/v2"
	"strings"
	"testing"
)

// testState builds a State with an empty chunk slot,
// suitable for exercising libraries and operators directly.
func testState(out io.Writer) *State {
	if out == nil {
		out = io.Discard
	}
	l := &State{
		globals: NewTable(0, 32),
		out:     out,
		rand:    rand.New(rand.NewPCG(1, 2)),
	}
	if err := l.openLibraries(nil); err != nil {
		panic(err)
	}
	return l
}

func TestToString(t *testing.T) {
	l := testState(nil)
	tests := []struct {
		v    Value
		want string
	}{
		{nil, "nil"},
		{Boolean(true), "true"},
		{Boolean(false), "false"},
		{Number(3), "3"},
		{Number(-0.5), "-0.5"},
		{Number(math.Inf(1)), "inf"},
		{String("hi"), "hi"},
	}
	for _, test := range tests {
		if got := l.ToString(test.v); got != test.want {
			t.Errorf("ToString(%#v) = %q; want %q", test.v, got, test.want)
		}
	}

	tab := NewTable(0, 0)
	if got := l.ToString(tab); !strings.HasPrefix(got, "table: 0x") {
		t.Errorf("ToString(table) = %q; want table: 0x prefix", got)
	}
	fn := NewFunction("f", nil)
	if got := l.ToString(fn); !strings.HasPrefix(got, "function: 0x") {
		t.Errorf("ToString(function) = %q; want function: 0x prefix", got)
	}
}

func TestToNumberCoercion(t *testing.T) {
	tests := []struct {
		v    Value
		want float64
		ok   bool
	}{
		{Number(4), 4, true},
		{String("4"), 4, true},
		{String(" -2.5 "), -2.5, true},
		{String("0x10"), 16, true},
		{String("beef"), 0, false},
		{Boolean(true), 0, false},
		{nil, 0, false},
	}
	for _, test := range tests {
		got, ok := toNumber(test.v)
		if float64(got) != test.want || ok != test.ok {
			t.Errorf("toNumber(%#v) = %v, %t; want %v, %t", test.v, got, ok, test.want, test.ok)
		}
	}
}

func TestTruthiness(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{nil, false},
		{Boolean(false), false},
		{Boolean(true), true},
		{Number(0), true},
		{String(""), true},
	}
	for _, test := range tests {
		if got := toBoolean(test.v); got != test.want {
			t.Errorf("toBoolean(%#v) = %t; want %t", test.v, got, test.want)
		}
	}
}

func TestTypeOf(t *testing.T) {
	l := testState(nil)
	tests := []struct {
		v    Value
		want Type
	}{
		{nil, TypeNil},
		{Boolean(true), TypeBoolean},
		{Number(1), TypeNumber},
		{String(""), TypeString},
		{NewTable(0, 0), TypeTable},
		{NewFunction("f", nil), TypeFunction},
		{l.Global("print"), TypeFunction},
	}
	for _, test := range tests {
		if got := TypeOf(test.v); got != test.want {
			t.Errorf("TypeOf(%#v) = %v; want %v", test.v, got, test.want)
		}
	}
}

func TestDisplayOutput(t *testing.T) {
	out := new(bytes.Buffer)
	l := testState(out)
	_, err := l.call(t.Context(), l.Global("print"), []Value{Number(1.5), String("x"), Boolean(false), nil})
	if err != nil {
		t.Fatal("print:", err)
	}
	if got, want := out.String(), "1.5\tx\tfalse\tnil\n"; got != want {
		t.Errorf("print wrote %q; want %q", got, want)
	}
}
