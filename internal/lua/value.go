// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"context"
	"fmt"
	"sync"

	"luna/internal/luacode"
)

// Type is an enumeration of Lua data types.
type Type int

// Value types.
const (
	TypeNil      Type = 0
	TypeBoolean  Type = 1
	TypeNumber   Type = 3
	TypeString   Type = 4
	TypeTable    Type = 5
	TypeFunction Type = 6
	TypeThread   Type = 8
)

// String returns the name of the type encoded by the value tp.
func (tp Type) String() string {
	switch tp {
	case TypeNil:
		return "nil"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeFunction:
		return "function"
	case TypeThread:
		return "thread"
	default:
		return fmt.Sprintf("lua.Type(%d)", int(tp))
	}
}

// Value is the representation of a Lua value.
// A nil interface value represents Lua nil.
// The other implementations are [Boolean], [Number], [String],
// [*Table], [*Function], [*Closure], and [*Coroutine].
//
// Every non-nil implementation is either a primitive or a pointer,
// so values compare with == by Lua's raw identity rules
// and may be used as Go map keys.
type Value interface {
	valueType() Type
}

// TypeOf returns the [Type] of a [Value].
func TypeOf(v Value) Type {
	if v == nil {
		return TypeNil
	}
	return v.valueType()
}

// Boolean is a boolean [Value].
type Boolean bool

func (v Boolean) valueType() Type { return TypeBoolean }

// Number is a floating-point [Value].
// Lua 5.1 numbers are IEEE-754 doubles;
// there is no separate integer representation.
type Number float64

func (v Number) valueType() Type { return TypeNumber }

// String is a string [Value]:
// an immutable sequence of bytes.
type String string

func (v String) valueType() Type { return TypeString }

// A GoFunc is the implementation of a [*Function]:
// a Lua function implemented in Go.
// It receives its arguments in order
// and returns its results in order.
// Returning a Go error raises a Lua error;
// the error is caught at the nearest coroutine.resume boundary
// or surfaces from [State.Run].
type GoFunc func(ctx context.Context, l *State, args []Value) ([]Value, error)

// A Function is a host (Go) function [Value].
type Function struct {
	id   uint64
	name string
	cb   GoFunc
}

// NewFunction returns a new [*Function] with the given name and implementation.
// The name is used in error messages.
func NewFunction(name string, cb GoFunc) *Function {
	return &Function{id: nextID(), name: name, cb: cb}
}

func (f *Function) valueType() Type { return TypeFunction }

// Name returns the name the function was registered with.
func (f *Function) Name() string { return f.name }

// A Closure is a Lua function [Value]:
// a compiled prototype plus the upvalue cells it captured.
type Closure struct {
	id       uint64
	proto    *luacode.Prototype
	upvalues []*upvalue
}

func (f *Closure) valueType() Type { return TypeFunction }

// Prototype returns the compiled function the closure executes.
func (f *Closure) Prototype() *luacode.Prototype { return f.proto }

// importConstant converts a compile-time constant to a [Value].
func importConstant(v luacode.Value) Value {
	switch {
	case v.IsNil():
		return nil
	case v.IsBoolean():
		b, _ := v.Bool()
		return Boolean(b)
	case v.IsNumber():
		f, _ := v.Float64()
		return Number(f)
	case v.IsString():
		s, _ := v.Unquoted()
		return String(s)
	default:
		panic("unreachable")
	}
}

// toBoolean reports whether the value is anything except nil or false.
func toBoolean(v Value) bool {
	b, ok := v.(Boolean)
	return v != nil && (!ok || bool(b))
}

// toNumber coerces a value to a number
// following Lua's arithmetic coercion rules:
// numbers convert to themselves
// and strings that parse as numbers convert to their numeric value.
func toNumber(v Value) (_ Number, ok bool) {
	switch v := v.(type) {
	case Number:
		return v, true
	case String:
		f, ok := luacode.ParseNumber(string(v))
		return Number(f), ok
	default:
		return 0, false
	}
}

// toString coerces a value to a string:
// strings convert to themselves
// and numbers are formatted with the %.14g rule.
func toString(v Value) (_ String, ok bool) {
	switch v := v.(type) {
	case String:
		return v, true
	case Number:
		return String(luacode.FormatNumber(float64(v))), true
	default:
		return "", false
	}
}

// displayString renders a value the way print and tostring do:
// primitives by their text
// and reference values as "type: 0x<id>".
func displayString(v Value) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case Boolean:
		if v {
			return "true"
		}
		return "false"
	case Number:
		return luacode.FormatNumber(float64(v))
	case String:
		return string(v)
	case *Table:
		return formatObject(TypeTable, v.id)
	case *Function:
		return formatObject(TypeFunction, v.id)
	case *Closure:
		return formatObject(TypeFunction, v.id)
	case *Coroutine:
		return formatObject(TypeThread, v.id)
	default:
		return fmt.Sprintf("(%v value)", TypeOf(v))
	}
}

func formatObject(tp Type, id uint64) string {
	return fmt.Sprintf("%v: %#08x", tp, id)
}

// valuesEqual reports whether v1 and v2 are primitively equal,
// that is, equal in Lua without consulting the "__eq" metamethod.
func valuesEqual(v1, v2 Value) bool {
	switch v1 := v1.(type) {
	case nil:
		return v2 == nil
	case Boolean:
		b2, ok := v2.(Boolean)
		return ok && v1 == b2
	case Number:
		n2, ok := v2.(Number)
		return ok && v1 == n2
	case String:
		s2, ok := v2.(String)
		return ok && v1 == s2
	default:
		return v1 == v2
	}
}

var globalIDs struct {
	mu sync.Mutex
	n  uint64
}

func nextID() uint64 {
	globalIDs.mu.Lock()
	defer globalIDs.mu.Unlock()
	globalIDs.n++
	return globalIDs.n
}
