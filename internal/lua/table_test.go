// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTableArrayRouting(t *testing.T) {
	tab := NewTable(0, 0)
	for i := 1; i <= 5; i++ {
		if err := tab.Set(Number(i), Number(i*10)); err != nil {
			t.Fatal("Set:", err)
		}
	}
	if got := tab.Len(); got != 5 {
		t.Errorf("Len() = %d; want 5", got)
	}
	for i := 1; i <= 5; i++ {
		if got := tab.Get(Number(i)); got != Number(i*10) {
			t.Errorf("Get(%d) = %v; want %d", i, got, i*10)
		}
	}
	if got := tab.Get(Number(6)); got != nil {
		t.Errorf("Get(6) = %v; want nil", got)
	}
}

func TestTableBorder(t *testing.T) {
	tab := NewTable(0, 0)
	// A sparse write does not extend the border.
	if err := tab.Set(Number(10), Boolean(true)); err != nil {
		t.Fatal("Set:", err)
	}
	if got := tab.Len(); got != 0 {
		t.Errorf("Len() = %d; want 0", got)
	}
	// Filling 1..9 merges the sparse entry into the array part.
	for i := 1; i <= 9; i++ {
		if err := tab.Set(Number(i), Number(i)); err != nil {
			t.Fatal("Set:", err)
		}
	}
	if got := tab.Len(); got != 10 {
		t.Errorf("Len() = %d; want 10", got)
	}
	// Clearing an element in the middle moves the border.
	if err := tab.Set(Number(4), nil); err != nil {
		t.Fatal("Set:", err)
	}
	if got := tab.Len(); got != 3 {
		t.Errorf("Len() after hole = %d; want 3", got)
	}
	// The tail entries are still reachable.
	if got := tab.Get(Number(10)); got != Boolean(true) {
		t.Errorf("Get(10) = %v; want true", got)
	}
}

func TestTableNilAssignmentRemovesKey(t *testing.T) {
	tab := NewTable(0, 0)
	if err := tab.Set(String("k"), Number(1)); err != nil {
		t.Fatal("Set:", err)
	}
	if err := tab.Set(String("k"), nil); err != nil {
		t.Fatal("Set nil:", err)
	}
	if got := tab.Get(String("k")); got != nil {
		t.Errorf("Get(k) = %v; want nil", got)
	}
	if _, _, ok, err := tab.Next(nil); err != nil || ok {
		t.Errorf("Next(nil) = ok=%t, err=%v; want empty traversal", ok, err)
	}
	// Removing an absent key is a no-op.
	if err := tab.Set(String("missing"), nil); err != nil {
		t.Fatal("Set nil on absent key:", err)
	}
}

func TestTableInvalidKeys(t *testing.T) {
	tab := NewTable(0, 0)
	if err := tab.Set(nil, Number(1)); err == nil {
		t.Error("Set(nil) did not return an error")
	}
	if err := tab.Set(Number(math.NaN()), Number(1)); err == nil {
		t.Error("Set(NaN) did not return an error")
	}
}

func TestTableNegativeZeroKey(t *testing.T) {
	tab := NewTable(0, 0)
	if err := tab.Set(Number(math.Copysign(0, -1)), String("zero")); err != nil {
		t.Fatal("Set:", err)
	}
	if got := tab.Get(Number(0)); got != String("zero") {
		t.Errorf("Get(0) = %v; want zero", got)
	}
}

func TestTableNextInsertionOrder(t *testing.T) {
	tab := NewTable(0, 0)
	keys := []Value{String("b"), String("a"), Number(1), Boolean(true)}
	for i, k := range keys {
		if err := tab.Set(k, Number(i)); err != nil {
			t.Fatal("Set:", err)
		}
	}

	var got []Value
	var k Value
	for {
		nk, _, ok, err := tab.Next(k)
		if err != nil {
			t.Fatal("Next:", err)
		}
		if !ok {
			break
		}
		got = append(got, nk)
		k = nk
	}
	if diff := cmp.Diff(keys, got); diff != "" {
		t.Errorf("traversal order (-want +got):\n%s", diff)
	}
}

func TestTableNextInvalidKey(t *testing.T) {
	tab := NewTable(0, 0)
	if err := tab.Set(String("a"), Number(1)); err != nil {
		t.Fatal("Set:", err)
	}
	if _, _, _, err := tab.Next(String("nope")); err == nil {
		t.Error("Next with unknown key did not return an error")
	}
}

func TestTableReinsertMovesToEnd(t *testing.T) {
	tab := NewTable(0, 0)
	for _, k := range []string{"a", "b", "c"} {
		if err := tab.Set(String(k), Boolean(true)); err != nil {
			t.Fatal("Set:", err)
		}
	}
	if err := tab.Set(String("a"), nil); err != nil {
		t.Fatal("Set:", err)
	}
	if err := tab.Set(String("a"), Boolean(true)); err != nil {
		t.Fatal("Set:", err)
	}

	var got []Value
	var k Value
	for {
		nk, _, ok, err := tab.Next(k)
		if err != nil {
			t.Fatal("Next:", err)
		}
		if !ok {
			break
		}
		got = append(got, nk)
		k = nk
	}
	want := []Value{String("b"), String("c"), String("a")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("traversal order (-want +got):\n%s", diff)
	}
}
