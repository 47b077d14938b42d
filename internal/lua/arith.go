// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"context"
	"fmt"
	"math"

	"luna/internal/luacode"
)

// arithmetic performs a binary or unary (-) operation
// following the dispatch rules of the Lua 5.1 virtual machine:
// if both operands are numbers or numeric strings,
// the float result is computed natively;
// otherwise the operation's metamethod is consulted,
// on the left operand first, then the right.
func (l *State) arithmetic(ctx context.Context, op luacode.OpCode, v1, v2 Value) (Value, error) {
	n1, ok1 := toNumber(v1)
	n2, ok2 := toNumber(v2)
	if ok1 && ok2 {
		return Number(floatArithmetic(op, float64(n1), float64(n2))), nil
	}

	event, ok := luacode.ArithmeticTagMethod(op)
	if !ok {
		return nil, fmt.Errorf("%v is not an arithmetic opcode", op)
	}
	if mm := l.binaryMetamethod(v1, v2, event); mm != nil {
		return l.call1(ctx, mm, v1, v2)
	}

	bad := v1
	if ok1 {
		bad = v2
	}
	return nil, fmt.Errorf("attempt to perform arithmetic on a %s value", l.typeName(bad))
}

func floatArithmetic(op luacode.OpCode, v1, v2 float64) float64 {
	switch op {
	case luacode.OpAdd:
		return v1 + v2
	case luacode.OpSub:
		return v1 - v2
	case luacode.OpMul:
		return v1 * v2
	case luacode.OpDiv:
		return floatDivide(v1, v2)
	case luacode.OpMod:
		// Lua's % is a floored modulo: a - floor(a/b)*b.
		return v1 - math.Floor(v1/v2)*v2
	case luacode.OpPow:
		return math.Pow(v1, v2)
	case luacode.OpUNM:
		return -v1
	default:
		panic("unhandled arithmetic opcode")
	}
}

// floatDivide returns the result of v1 divided by v2.
// If v2 is zero, then the result is ±Inf (or NaN for 0/0).
func floatDivide(v1, v2 float64) float64 {
	if v2 == 0 {
		// We handle this case ourselves
		// because as per https://go.dev/ref/spec#Floating_point_operators,
		// "whether a run-time panic occurs [on division by zero] is implementation-specific."
		switch {
		case v1 == 0 || math.IsNaN(v1):
			return math.NaN()
		case math.Signbit(v1) != math.Signbit(v2):
			return math.Inf(-1)
		default:
			return math.Inf(1)
		}
	}
	return v1 / v2
}

// equal reports whether v1 == v2 according to Lua's full equality rules.
// Values of different types are never equal;
// primitives compare by value;
// tables compare by identity,
// falling back to "__eq" only when both operands
// expose the same metamethod reference.
func (l *State) equal(ctx context.Context, v1, v2 Value) (bool, error) {
	if TypeOf(v1) != TypeOf(v2) {
		return false, nil
	}
	if valuesEqual(v1, v2) {
		return true, nil
	}
	if _, isTable := v1.(*Table); !isTable {
		return false, nil
	}
	mm1 := l.metamethod(v1, luacode.TagMethodEQ)
	mm2 := l.metamethod(v2, luacode.TagMethodEQ)
	if mm1 == nil || mm1 != mm2 {
		return false, nil
	}
	result, err := l.call1(ctx, mm1, v1, v2)
	if err != nil {
		return false, err
	}
	return toBoolean(result), nil
}

// compare evaluates v1 < v2 (or v1 <= v2 when orEqual is set).
// Numbers compare numerically and strings lexicographically by byte.
// Otherwise both operands must expose the same "__lt" ("__le") metamethod;
// v1 <= v2 falls back to not (v2 < v1) when "__le" is absent.
func (l *State) compare(ctx context.Context, v1, v2 Value, orEqual bool) (bool, error) {
	switch v1 := v1.(type) {
	case Number:
		if v2, ok := v2.(Number); ok {
			if orEqual {
				return v1 <= v2, nil
			}
			return v1 < v2, nil
		}
	case String:
		if v2, ok := v2.(String); ok {
			if orEqual {
				return v1 <= v2, nil
			}
			return v1 < v2, nil
		}
	}

	event := luacode.TagMethodLT
	if orEqual {
		event = luacode.TagMethodLE
	}
	if mm := l.sharedMetamethod(v1, v2, event); mm != nil {
		result, err := l.call1(ctx, mm, v1, v2)
		if err != nil {
			return false, err
		}
		return toBoolean(result), nil
	}
	if orEqual {
		// a <= b can be evaluated as not (b < a).
		if mm := l.sharedMetamethod(v1, v2, luacode.TagMethodLT); mm != nil {
			result, err := l.call1(ctx, mm, v2, v1)
			if err != nil {
				return false, err
			}
			return !toBoolean(result), nil
		}
	}

	tn1, tn2 := l.typeName(v1), l.typeName(v2)
	if tn1 == tn2 {
		return false, fmt.Errorf("attempt to compare two %s values", tn1)
	}
	return false, fmt.Errorf("attempt to compare %s with %s", tn1, tn2)
}

// sharedMetamethod returns the metamethod for the event
// only if both operands expose the identical function reference.
func (l *State) sharedMetamethod(v1, v2 Value, tm luacode.TagMethod) Value {
	mm1 := l.metamethod(v1, tm)
	if mm1 == nil || mm1 != l.metamethod(v2, tm) {
		return nil
	}
	return mm1
}

// concat concatenates two values:
// strings and numbers concatenate byte-wise
// (numbers are formatted as decimal text first);
// anything else dispatches "__concat" on the left operand, then the right.
func (l *State) concat(ctx context.Context, v1, v2 Value) (Value, error) {
	s1, ok1 := toString(v1)
	s2, ok2 := toString(v2)
	if ok1 && ok2 {
		return s1 + s2, nil
	}
	if mm := l.binaryMetamethod(v1, v2, luacode.TagMethodConcat); mm != nil {
		return l.call1(ctx, mm, v1, v2)
	}
	bad := v1
	if ok1 {
		bad = v2
	}
	return nil, fmt.Errorf("attempt to concatenate a %s value", l.typeName(bad))
}

// lengthOf evaluates the length ("#") operator:
// byte count for strings,
// the array border for tables (or their "__len" metamethod).
func (l *State) lengthOf(ctx context.Context, v Value) (Value, error) {
	if s, ok := v.(String); ok {
		return Number(len(s)), nil
	}
	if mm := l.metamethod(v, luacode.TagMethodLen); mm != nil {
		return l.call1(ctx, mm, v)
	}
	if t, ok := v.(*Table); ok {
		return Number(t.Len()), nil
	}
	return nil, fmt.Errorf("attempt to get length of a %s value", l.typeName(v))
}

// index evaluates t[k],
// raw on tables but following "__index" chains
// when the key is absent (or the value is not a table).
func (l *State) index(ctx context.Context, t, k Value) (Value, error) {
	for range maxMetaDepth {
		if tab, ok := t.(*Table); ok {
			if v := tab.Get(k); v != nil {
				return v, nil
			}
		}
		tm := l.metamethod(t, luacode.TagMethodIndex)
		switch tm := tm.(type) {
		case nil:
			if _, ok := t.(*Table); !ok {
				return nil, fmt.Errorf("attempt to index a %s value", l.typeName(t))
			}
			return nil, nil
		case *Table:
			t = tm
		default:
			return l.call1(ctx, tm, t, k)
		}
	}
	return nil, fmt.Errorf("'%v' chain too long; possible loop", luacode.TagMethodIndex)
}

// setIndex evaluates t[k] = v,
// raw on tables that already contain the key
// and following "__newindex" chains otherwise.
func (l *State) setIndex(ctx context.Context, t, k, v Value) error {
	for range maxMetaDepth {
		if tab, ok := t.(*Table); ok && tab.Get(k) != nil {
			return tab.Set(k, v)
		}
		tm := l.metamethod(t, luacode.TagMethodNewIndex)
		switch tm := tm.(type) {
		case nil:
			tab, ok := t.(*Table)
			if !ok {
				return fmt.Errorf("attempt to index a %s value", l.typeName(t))
			}
			return tab.Set(k, v)
		case *Table:
			t = tm
		default:
			_, err := l.call(ctx, tm, []Value{t, k, v})
			return err
		}
	}
	return fmt.Errorf("'%v' chain too long; possible loop", luacode.TagMethodNewIndex)
}
