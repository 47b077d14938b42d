// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// callGlobal invokes a global function (possibly inside a library table)
// by dotted name.
func callGlobal(t *testing.T, l *State, name string, args ...Value) ([]Value, error) {
	t.Helper()
	var f Value
	if lib, entry, isLib := strings.Cut(name, "."); isLib {
		libTable, ok := l.Global(lib).(*Table)
		if !ok {
			t.Fatalf("global %s is not a table", lib)
		}
		f = libTable.Get(String(entry))
	} else {
		f = l.Global(name)
	}
	if f == nil {
		t.Fatalf("global %s is not defined", name)
	}
	return l.call(context.Background(), f, args)
}

func mustCall(t *testing.T, l *State, name string, args ...Value) []Value {
	t.Helper()
	results, err := callGlobal(t, l, name, args...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return results
}

func TestBaseSelect(t *testing.T) {
	l := testState(nil)

	tests := []struct {
		name string
		args []Value
		want []Value
	}{
		{
			name: "Count",
			args: []Value{String("#"), String("a"), String("b"), String("c")},
			want: []Value{Number(3)},
		},
		{
			name: "Tail",
			args: []Value{Number(2), String("a"), String("b"), String("c")},
			want: []Value{String("b"), String("c")},
		},
		{
			name: "NegativeCountsFromEnd",
			args: []Value{Number(-1), String("a"), String("b"), String("c")},
			want: []Value{String("c")},
		},
		{
			name: "PastEnd",
			args: []Value{Number(5), String("a")},
			want: nil,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := mustCall(t, l, "select", test.args...)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("select (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("ZeroIsError", func(t *testing.T) {
		if _, err := callGlobal(t, l, "select", Number(0), String("a")); err == nil {
			t.Error("select(0) did not return an error")
		}
	})
	t.Run("NegativeOutOfRangeIsError", func(t *testing.T) {
		if _, err := callGlobal(t, l, "select", Number(-4), String("a")); err == nil {
			t.Error("select(-4, 'a') did not return an error")
		}
	})
}

func TestBaseToNumberToString(t *testing.T) {
	l := testState(nil)

	got := mustCall(t, l, "tonumber", String("42"))
	if diff := cmp.Diff([]Value{Number(42)}, got); diff != "" {
		t.Errorf("tonumber('42') (-want +got):\n%s", diff)
	}
	got = mustCall(t, l, "tonumber", String("zzz"))
	if diff := cmp.Diff([]Value{nil}, got); diff != "" {
		t.Errorf("tonumber('zzz') (-want +got):\n%s", diff)
	}
	got = mustCall(t, l, "tonumber", String("ff"), Number(16))
	if diff := cmp.Diff([]Value{Number(255)}, got); diff != "" {
		t.Errorf("tonumber('ff', 16) (-want +got):\n%s", diff)
	}
	got = mustCall(t, l, "tostring", Number(2.5))
	if diff := cmp.Diff([]Value{String("2.5")}, got); diff != "" {
		t.Errorf("tostring(2.5) (-want +got):\n%s", diff)
	}
}

func TestBasePairsAndNext(t *testing.T) {
	l := testState(nil)
	tab := NewTable(0, 0)
	for i, k := range []string{"one", "two", "three"} {
		if err := tab.Set(String(k), Number(i+1)); err != nil {
			t.Fatal("Set:", err)
		}
	}

	triple := mustCall(t, l, "pairs", tab)
	if len(triple) != 3 {
		t.Fatalf("pairs returned %d values; want 3", len(triple))
	}
	if TypeOf(triple[0]) != TypeFunction {
		t.Errorf("pairs first result is %v; want function", TypeOf(triple[0]))
	}
	if triple[1] != Value(tab) || triple[2] != nil {
		t.Errorf("pairs returned (%v, %v) tail; want (t, nil)", triple[1], triple[2])
	}

	var keys []Value
	control := Value(nil)
	for {
		results, err := l.call(context.Background(), triple[0], []Value{tab, control})
		if err != nil {
			t.Fatal("next:", err)
		}
		if results[0] == nil {
			break
		}
		keys = append(keys, results[0])
		control = results[0]
	}
	want := []Value{String("one"), String("two"), String("three")}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("traversal (-want +got):\n%s", diff)
	}

	if _, err := callGlobal(t, l, "next", tab, String("absent")); err == nil {
		t.Error("next with invalid key did not return an error")
	} else if !strings.Contains(err.Error(), "invalid key to 'next'") {
		t.Errorf("next error = %v; want invalid key to 'next'", err)
	}
}

func TestBaseMetatableProtection(t *testing.T) {
	l := testState(nil)
	tab := NewTable(0, 0)
	meta := NewTable(0, 0)
	if err := meta.Set(String("__metatable"), String("locked")); err != nil {
		t.Fatal("Set:", err)
	}

	mustCall(t, l, "setmetatable", tab, meta)

	got := mustCall(t, l, "getmetatable", tab)
	if diff := cmp.Diff([]Value{String("locked")}, got); diff != "" {
		t.Errorf("getmetatable (-want +got):\n%s", diff)
	}
	if _, err := callGlobal(t, l, "setmetatable", tab, NewTable(0, 0)); err == nil {
		t.Error("setmetatable on protected metatable did not return an error")
	}
}

func TestBaseRawAccess(t *testing.T) {
	l := testState(nil)
	tab := NewTable(0, 0)
	meta := NewTable(0, 0)
	index := NewTable(0, 0)
	if err := index.Set(String("k"), String("from-meta")); err != nil {
		t.Fatal("Set:", err)
	}
	if err := meta.Set(String("__index"), index); err != nil {
		t.Fatal("Set:", err)
	}
	tab.SetMetatable(meta)

	// The metamethod-aware path sees the __index table.
	got, err := l.index(context.Background(), tab, String("k"))
	if err != nil {
		t.Fatal("index:", err)
	}
	if got != String("from-meta") {
		t.Errorf("index = %v; want from-meta", got)
	}
	// rawget does not.
	raw := mustCall(t, l, "rawget", tab, String("k"))
	if diff := cmp.Diff([]Value{nil}, raw); diff != "" {
		t.Errorf("rawget (-want +got):\n%s", diff)
	}

	mustCall(t, l, "rawset", tab, String("k"), Number(9))
	if got := tab.Get(String("k")); got != Number(9) {
		t.Errorf("after rawset Get = %v; want 9", got)
	}
}

func TestBaseUnpack(t *testing.T) {
	l := testState(nil)
	tab := NewTable(0, 0)
	for i := 1; i <= 3; i++ {
		if err := tab.Set(Number(i), Number(i*11)); err != nil {
			t.Fatal("Set:", err)
		}
	}
	got := mustCall(t, l, "unpack", tab)
	want := []Value{Number(11), Number(22), Number(33)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unpack (-want +got):\n%s", diff)
	}
	got = mustCall(t, l, "unpack", tab, Number(2))
	want = []Value{Number(22), Number(33)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unpack from 2 (-want +got):\n%s", diff)
	}
}

func TestMathLibrary(t *testing.T) {
	l := testState(nil)

	tests := []struct {
		name string
		args []Value
		want []Value
	}{
		{"math.abs", []Value{Number(-4)}, []Value{Number(4)}},
		{"math.floor", []Value{Number(2.7)}, []Value{Number(2)}},
		{"math.ceil", []Value{Number(2.2)}, []Value{Number(3)}},
		{"math.sqrt", []Value{Number(9)}, []Value{Number(3)}},
		{"math.max", []Value{Number(1), Number(7), Number(3)}, []Value{Number(7)}},
		{"math.min", []Value{Number(1), Number(7), Number(3)}, []Value{Number(1)}},
		{"math.fmod", []Value{Number(7), Number(3)}, []Value{Number(1)}},
		{"math.deg", []Value{Number(math.Pi)}, []Value{Number(180)}},
		{"math.rad", []Value{Number(180)}, []Value{Number(math.Pi)}},
		{"math.modf", []Value{Number(3.25)}, []Value{Number(3), Number(0.25)}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := mustCall(t, l, test.name, test.args...)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}

	t.Run("Constants", func(t *testing.T) {
		lib := l.Global("math").(*Table)
		if got := lib.Get(String("pi")); got != Number(math.Pi) {
			t.Errorf("math.pi = %v; want %v", got, math.Pi)
		}
		if got := lib.Get(String("huge")); got != Number(math.Inf(1)) {
			t.Errorf("math.huge = %v; want +Inf", got)
		}
	})

	t.Run("RandomRange", func(t *testing.T) {
		for range 100 {
			results := mustCall(t, l, "math.random", Number(1), Number(6))
			n := float64(results[0].(Number))
			if n < 1 || n > 6 || n != math.Trunc(n) {
				t.Fatalf("math.random(1, 6) = %v; want integer in [1, 6]", n)
			}
		}
	})

	t.Run("RandomSeedDeterministic", func(t *testing.T) {
		mustCall(t, l, "math.randomseed", Number(99))
		first := mustCall(t, l, "math.random")
		mustCall(t, l, "math.randomseed", Number(99))
		second := mustCall(t, l, "math.random")
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("reseeded sequence diverged (-first +second):\n%s", diff)
		}
	})
}

func TestStringLibrary(t *testing.T) {
	l := testState(nil)

	tests := []struct {
		name string
		args []Value
		want []Value
	}{
		{"string.len", []Value{String("hello")}, []Value{Number(5)}},
		{"string.sub", []Value{String("hello"), Number(2), Number(4)}, []Value{String("ell")}},
		{"string.sub", []Value{String("hello"), Number(-3)}, []Value{String("llo")}},
		{"string.sub", []Value{String("hello"), Number(4), Number(2)}, []Value{String("")}},
		{"string.upper", []Value{String("mixed Case 1")}, []Value{String("MIXED CASE 1")}},
		{"string.lower", []Value{String("mixed Case 1")}, []Value{String("mixed case 1")}},
		{"string.rep", []Value{String("ab"), Number(3)}, []Value{String("ababab")}},
		{"string.reverse", []Value{String("abc")}, []Value{String("cba")}},
		{"string.byte", []Value{String("ABC"), Number(1), Number(3)}, []Value{Number(65), Number(66), Number(67)}},
		{"string.char", []Value{Number(104), Number(105)}, []Value{String("hi")}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := mustCall(t, l, test.name, test.args...)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestCoroutineLibrary(t *testing.T) {
	l := testState(nil)

	ping := NewFunction("ping", func(ctx context.Context, l *State, args []Value) ([]Value, error) {
		got, err := l.Yield([]Value{String("pong")})
		if err != nil {
			return nil, err
		}
		return got, nil
	})

	created := mustCall(t, l, "coroutine.create", ping)
	co, ok := created[0].(*Coroutine)
	if !ok {
		t.Fatalf("coroutine.create returned %T; want *Coroutine", created[0])
	}

	status := mustCall(t, l, "coroutine.status", co)
	if diff := cmp.Diff([]Value{String("suspended")}, status); diff != "" {
		t.Errorf("status (-want +got):\n%s", diff)
	}

	got := mustCall(t, l, "coroutine.resume", co)
	want := []Value{Boolean(true), String("pong")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resume #1 (-want +got):\n%s", diff)
	}

	got = mustCall(t, l, "coroutine.resume", co, String("back"))
	want = []Value{Boolean(true), String("back")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resume #2 (-want +got):\n%s", diff)
	}

	status = mustCall(t, l, "coroutine.status", co)
	if diff := cmp.Diff([]Value{String("dead")}, status); diff != "" {
		t.Errorf("status (-want +got):\n%s", diff)
	}

	t.Run("Wrap", func(t *testing.T) {
		wrapped := mustCall(t, l, "coroutine.wrap", ping)
		got, err := l.call(context.Background(), wrapped[0], nil)
		if err != nil {
			t.Fatal("wrapped call:", err)
		}
		if diff := cmp.Diff([]Value{String("pong")}, got); diff != "" {
			t.Errorf("wrap (-want +got):\n%s", diff)
		}
	})
}

func TestEqualityMetamethodRules(t *testing.T) {
	ctx := context.Background()
	l := testState(nil)

	eq := NewFunction("eq", func(ctx context.Context, l *State, args []Value) ([]Value, error) {
		return []Value{Boolean(true)}, nil
	})
	metaWithEq := func() *Table {
		m := NewTable(0, 0)
		if err := m.Set(String("__eq"), eq); err != nil {
			t.Fatal("Set:", err)
		}
		return m
	}

	t1, t2 := NewTable(0, 0), NewTable(0, 0)
	shared := metaWithEq()
	t1.SetMetatable(shared)
	t2.SetMetatable(shared)
	if got, err := l.equal(ctx, t1, t2); err != nil || !got {
		t.Errorf("equal with shared __eq = %t, %v; want true", got, err)
	}

	// Distinct metamethod references do not fire.
	t3 := NewTable(0, 0)
	other := NewTable(0, 0)
	if err := other.Set(String("__eq"), NewFunction("eq2", eq.cb)); err != nil {
		t.Fatal("Set:", err)
	}
	t3.SetMetatable(other)
	if got, err := l.equal(ctx, t1, t3); err != nil || got {
		t.Errorf("equal with differing __eq = %t, %v; want false", got, err)
	}

	// Different types are never equal.
	if got, err := l.equal(ctx, t1, Number(1)); err != nil || got {
		t.Errorf("equal across types = %t, %v; want false", got, err)
	}
}

func TestCompareRules(t *testing.T) {
	ctx := context.Background()
	l := testState(nil)

	if got, err := l.compare(ctx, Number(1), Number(2), false); err != nil || !got {
		t.Errorf("1 < 2 = %t, %v; want true", got, err)
	}
	if got, err := l.compare(ctx, String("abc"), String("abd"), false); err != nil || !got {
		t.Errorf("abc < abd = %t, %v; want true", got, err)
	}
	if got, err := l.compare(ctx, String("b"), String("b"), true); err != nil || !got {
		t.Errorf("b <= b = %t, %v; want true", got, err)
	}
	if _, err := l.compare(ctx, Number(1), String("1"), false); err == nil {
		t.Error("number < string did not return an error")
	}

	// __le falls back to not (b < a) through __lt.
	lt := NewFunction("lt", func(ctx context.Context, l *State, args []Value) ([]Value, error) {
		a := args[0].(*Table)
		b := args[1].(*Table)
		return []Value{Boolean(a.Get(String("n")).(Number) < b.Get(String("n")).(Number))}, nil
	})
	meta := NewTable(0, 0)
	if err := meta.Set(String("__lt"), lt); err != nil {
		t.Fatal("Set:", err)
	}
	mk := func(n float64) *Table {
		tab := NewTable(0, 0)
		if err := tab.Set(String("n"), Number(n)); err != nil {
			t.Fatal("Set:", err)
		}
		tab.SetMetatable(meta)
		return tab
	}
	a, b := mk(1), mk(2)
	if got, err := l.compare(ctx, a, b, true); err != nil || !got {
		t.Errorf("a <= b via __lt fallback = %t, %v; want true", got, err)
	}
	if got, err := l.compare(ctx, b, a, true); err != nil || got {
		t.Errorf("b <= a via __lt fallback = %t, %v; want false", got, err)
	}
}
