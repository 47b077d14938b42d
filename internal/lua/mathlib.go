// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"context"
	"math"
)

// openMath installs the math library.
// Random numbers come from the state's configured source,
// so embedders can make scripts deterministic.
func (l *State) openMath() error {
	lib := NewTable(0, 24)
	funcs := map[string]GoFunc{
		"abs":        mathAbs,
		"acos":       math1("acos", math.Acos),
		"asin":       math1("asin", math.Asin),
		"atan":       math1("atan", math.Atan),
		"ceil":       math1("ceil", math.Ceil),
		"cos":        math1("cos", math.Cos),
		"deg":        math1("deg", func(x float64) float64 { return x * 180 / math.Pi }),
		"exp":        math1("exp", math.Exp),
		"floor":      math1("floor", math.Floor),
		"fmod":       mathFmod,
		"log":        math1("log", math.Log),
		"max":        mathMax,
		"min":        mathMin,
		"modf":       mathModf,
		"rad":        math1("rad", func(x float64) float64 { return x * math.Pi / 180 }),
		"random":     l.mathRandom,
		"randomseed": l.mathRandomSeed,
		"sin":        math1("sin", math.Sin),
		"sqrt":       math1("sqrt", math.Sqrt),
		"tan":        math1("tan", math.Tan),
	}
	for name, cb := range funcs {
		if err := lib.Set(String(name), NewFunction("math."+name, cb)); err != nil {
			return err
		}
	}
	if err := lib.Set(String("pi"), Number(math.Pi)); err != nil {
		return err
	}
	if err := lib.Set(String("huge"), Number(math.Inf(1))); err != nil {
		return err
	}
	l.SetGlobal("math", lib)
	return nil
}

// math1 adapts a unary Go math function to a library entry.
func math1(name string, f func(float64) float64) GoFunc {
	return func(ctx context.Context, l *State, args []Value) ([]Value, error) {
		x, err := checkNumber(name, args, 1)
		if err != nil {
			return nil, err
		}
		return []Value{Number(f(x))}, nil
	}
}

func mathAbs(ctx context.Context, l *State, args []Value) ([]Value, error) {
	x, err := checkNumber("abs", args, 1)
	if err != nil {
		return nil, err
	}
	return []Value{Number(math.Abs(x))}, nil
}

func mathFmod(ctx context.Context, l *State, args []Value) ([]Value, error) {
	x, err := checkNumber("fmod", args, 1)
	if err != nil {
		return nil, err
	}
	y, err := checkNumber("fmod", args, 2)
	if err != nil {
		return nil, err
	}
	return []Value{Number(math.Mod(x, y))}, nil
}

func mathModf(ctx context.Context, l *State, args []Value) ([]Value, error) {
	x, err := checkNumber("modf", args, 1)
	if err != nil {
		return nil, err
	}
	i, frac := math.Modf(x)
	return []Value{Number(i), Number(frac)}, nil
}

func mathMin(ctx context.Context, l *State, args []Value) ([]Value, error) {
	best, err := checkNumber("min", args, 1)
	if err != nil {
		return nil, err
	}
	for i := 2; i <= len(args); i++ {
		x, err := checkNumber("min", args, i)
		if err != nil {
			return nil, err
		}
		best = math.Min(best, x)
	}
	return []Value{Number(best)}, nil
}

func mathMax(ctx context.Context, l *State, args []Value) ([]Value, error) {
	best, err := checkNumber("max", args, 1)
	if err != nil {
		return nil, err
	}
	for i := 2; i <= len(args); i++ {
		x, err := checkNumber("max", args, i)
		if err != nil {
			return nil, err
		}
		best = math.Max(best, x)
	}
	return []Value{Number(best)}, nil
}

func (l *State) mathRandom(ctx context.Context, _ *State, args []Value) ([]Value, error) {
	switch len(args) {
	case 0:
		return []Value{Number(l.rand.Float64())}, nil
	case 1:
		m, err := checkNumber("random", args, 1)
		if err != nil {
			return nil, err
		}
		if m < 1 {
			return nil, NewArgError("random", 1, "interval is empty")
		}
		return []Value{Number(1 + l.rand.Int64N(int64(m)))}, nil
	default:
		lo, err := checkNumber("random", args, 1)
		if err != nil {
			return nil, err
		}
		hi, err := checkNumber("random", args, 2)
		if err != nil {
			return nil, err
		}
		if lo > hi {
			return nil, NewArgError("random", 2, "interval is empty")
		}
		return []Value{Number(int64(lo) + l.rand.Int64N(int64(hi)-int64(lo)+1))}, nil
	}
}

func (l *State) mathRandomSeed(ctx context.Context, _ *State, args []Value) ([]Value, error) {
	x, err := checkNumber("randomseed", args, 1)
	if err != nil {
		return nil, err
	}
	l.reseed(uint64(int64(x)))
	return nil, nil
}
