// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCoroutineLifecycle(t *testing.T) {
	ctx := context.Background()
	l := testState(nil)

	var observed []CoroutineStatus
	body := NewFunction("body", func(ctx context.Context, l *State, args []Value) ([]Value, error) {
		observed = append(observed, l.current.Status())
		got, err := l.Yield([]Value{String("first"), args[0]})
		if err != nil {
			return nil, err
		}
		return append([]Value{String("done")}, got...), nil
	})

	co, err := l.NewCoroutine(body)
	if err != nil {
		t.Fatal("NewCoroutine:", err)
	}
	if got := co.Status(); got != CoroutineSuspended {
		t.Fatalf("Status() = %v; want suspended", got)
	}

	results, ok, err := co.Resume(ctx, Number(1))
	if err != nil {
		t.Fatal("Resume #1:", err)
	}
	if !ok {
		t.Fatalf("Resume #1 not ok: %v", results)
	}
	if diff := cmp.Diff([]Value{String("first"), Number(1)}, results); diff != "" {
		t.Errorf("Resume #1 results (-want +got):\n%s", diff)
	}
	if got := co.Status(); got != CoroutineSuspended {
		t.Errorf("Status() after yield = %v; want suspended", got)
	}
	if diff := cmp.Diff([]CoroutineStatus{CoroutineRunning}, observed); diff != "" {
		t.Errorf("status observed inside body (-want +got):\n%s", diff)
	}

	results, ok, err = co.Resume(ctx, Number(2))
	if err != nil {
		t.Fatal("Resume #2:", err)
	}
	if !ok {
		t.Fatalf("Resume #2 not ok: %v", results)
	}
	if diff := cmp.Diff([]Value{String("done"), Number(2)}, results); diff != "" {
		t.Errorf("Resume #2 results (-want +got):\n%s", diff)
	}
	if got := co.Status(); got != CoroutineDead {
		t.Errorf("Status() after return = %v; want dead", got)
	}

	// Resuming a dead coroutine reports failure without running anything.
	results, ok, err = co.Resume(ctx)
	if err != nil {
		t.Fatal("Resume #3:", err)
	}
	if ok {
		t.Error("Resume #3 ok = true; want false")
	}
	if diff := cmp.Diff([]Value{String("cannot resume dead coroutine")}, results); diff != "" {
		t.Errorf("Resume #3 results (-want +got):\n%s", diff)
	}
}

func TestCoroutineResumeYieldParity(t *testing.T) {
	ctx := context.Background()
	l := testState(nil)

	const yields = 10
	body := NewFunction("body", func(ctx context.Context, l *State, args []Value) ([]Value, error) {
		for i := range yields {
			if _, err := l.Yield([]Value{Number(i)}); err != nil {
				return nil, err
			}
		}
		return []Value{String("end")}, nil
	})
	co, err := l.NewCoroutine(body)
	if err != nil {
		t.Fatal("NewCoroutine:", err)
	}

	// Each yield pairs with exactly one resume.
	for i := range yields {
		results, ok, err := co.Resume(ctx)
		if err != nil || !ok {
			t.Fatalf("Resume #%d = %v, %t, %v", i+1, results, ok, err)
		}
		if diff := cmp.Diff([]Value{Number(i)}, results); diff != "" {
			t.Errorf("Resume #%d results (-want +got):\n%s", i+1, diff)
		}
	}
	results, ok, err := co.Resume(ctx)
	if err != nil || !ok {
		t.Fatalf("final Resume = %v, %t, %v", results, ok, err)
	}
	if diff := cmp.Diff([]Value{String("end")}, results); diff != "" {
		t.Errorf("final results (-want +got):\n%s", diff)
	}
}

func TestCoroutineError(t *testing.T) {
	ctx := context.Background()
	l := testState(nil)

	body := NewFunction("body", func(ctx context.Context, l *State, args []Value) ([]Value, error) {
		return nil, errors.New("boom")
	})
	co, err := l.NewCoroutine(body)
	if err != nil {
		t.Fatal("NewCoroutine:", err)
	}
	results, ok, err := co.Resume(ctx)
	if err != nil {
		t.Fatal("Resume:", err)
	}
	if ok {
		t.Error("Resume ok = true; want false")
	}
	if diff := cmp.Diff([]Value{String("boom")}, results); diff != "" {
		t.Errorf("results (-want +got):\n%s", diff)
	}
	if got := co.Status(); got != CoroutineDead {
		t.Errorf("Status() = %v; want dead", got)
	}
}

func TestYieldOutsideCoroutine(t *testing.T) {
	l := testState(nil)
	if _, err := l.Yield(nil); err == nil {
		t.Error("Yield outside a coroutine did not return an error")
	}
}

func TestNestedCoroutines(t *testing.T) {
	ctx := context.Background()
	l := testState(nil)

	inner := NewFunction("inner", func(ctx context.Context, l *State, args []Value) ([]Value, error) {
		if _, err := l.Yield([]Value{String("inner-yield")}); err != nil {
			return nil, err
		}
		return []Value{String("inner-done")}, nil
	})
	innerCo, err := l.NewCoroutine(inner)
	if err != nil {
		t.Fatal("NewCoroutine:", err)
	}

	outer := NewFunction("outer", func(ctx context.Context, l *State, args []Value) ([]Value, error) {
		// Resuming from inside another coroutine suspends only the inner one.
		results, ok, err := innerCo.Resume(ctx)
		if err != nil || !ok {
			return nil, errors.New("inner resume failed")
		}
		return results, nil
	})
	outerCo, err := l.NewCoroutine(outer)
	if err != nil {
		t.Fatal("NewCoroutine:", err)
	}

	results, ok, err := outerCo.Resume(ctx)
	if err != nil || !ok {
		t.Fatalf("Resume = %v, %t, %v", results, ok, err)
	}
	if diff := cmp.Diff([]Value{String("inner-yield")}, results); diff != "" {
		t.Errorf("results (-want +got):\n%s", diff)
	}
	if got := outerCo.Status(); got != CoroutineDead {
		t.Errorf("outer Status() = %v; want dead", got)
	}
	if got := innerCo.Status(); got != CoroutineSuspended {
		t.Errorf("inner Status() = %v; want suspended", got)
	}
}

func TestCloseWakesSuspendedCoroutines(t *testing.T) {
	ctx := context.Background()
	l := testState(nil)

	body := NewFunction("body", func(ctx context.Context, l *State, args []Value) ([]Value, error) {
		_, err := l.Yield(nil)
		return nil, err
	})
	co, err := l.NewCoroutine(body)
	if err != nil {
		t.Fatal("NewCoroutine:", err)
	}
	if _, ok, err := co.Resume(ctx); err != nil || !ok {
		t.Fatalf("Resume failed: %t, %v", ok, err)
	}

	if err := l.Close(); err != nil {
		t.Fatal("Close:", err)
	}
	if got := co.Status(); got != CoroutineDead {
		t.Errorf("Status() after Close = %v; want dead", got)
	}
	results, ok, err := co.Resume(ctx)
	if err != nil {
		t.Fatal("Resume after Close:", err)
	}
	if ok {
		t.Errorf("Resume after Close ok = true; want false (results %v)", results)
	}
}
