// Copyright (C) 1994-2012 Lua.org, PUC-Rio.
// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"math"
	"strconv"
	"strings"
)

type valueType byte

// Value type tags as they appear in the constant table of a binary chunk.
const (
	valueTypeNil     valueType = 0
	valueTypeBoolean valueType = 1
	valueTypeNumber  valueType = 3
	valueTypeString  valueType = 4
)

// Variants. The boolean payload is stored in the high nibble
// so that noVariant recovers the dump tag.
const (
	valueTypeFalse = valueTypeBoolean
	valueTypeTrue  = valueTypeBoolean | 1<<4
)

func (t valueType) noVariant() valueType {
	return t & 0x0f
}

// Value is the subset of Lua values that can appear in a constant table:
// nil, booleans, numbers, and strings.
// The zero value is nil.
type Value struct {
	_    [0]func() // Prevent comparing with "==".
	bits uint64
	s    string
	t    valueType
}

// BoolValue converts a boolean to a [Value].
func BoolValue(b bool) Value {
	if b {
		return Value{t: valueTypeTrue}
	}
	return Value{t: valueTypeFalse}
}

// NumberValue converts a floating-point number to a [Value].
func NumberValue(f float64) Value {
	return Value{
		t:    valueTypeNumber,
		bits: math.Float64bits(f),
	}
}

// StringValue converts a string to a [Value].
func StringValue(s string) Value {
	return Value{
		t: valueTypeString,
		s: s,
	}
}

// IsNil reports whether v is the zero value.
func (v Value) IsNil() bool {
	return v.t == valueTypeNil
}

// IsBoolean reports whether the value is a boolean.
func (v Value) IsBoolean() bool {
	return v.t.noVariant() == valueTypeBoolean
}

// IsNumber reports whether the value is a number.
func (v Value) IsNumber() bool {
	return v.t == valueTypeNumber
}

// IsString reports whether the value is a string.
func (v Value) IsString() bool {
	return v.t == valueTypeString
}

// Bool reports whether the value tests true in Lua
// and whether the value is a boolean.
func (v Value) Bool() (_ bool, isBool bool) {
	return v.t != valueTypeNil && v.t != valueTypeFalse, v.IsBoolean()
}

// Float64 returns the value as a floating-point number
// and reports whether the value is a number.
// No coercion occurs.
func (v Value) Float64() (_ float64, isNumber bool) {
	if !v.IsNumber() {
		return 0, false
	}
	return math.Float64frombits(v.bits), true
}

// Unquoted returns the value as a string
// and reports whether the value is a string.
// Numbers are coerced to a string using the %.14g format
// of the Lua 5.1 reference implementation,
// but isString will be false.
func (v Value) Unquoted() (s string, isString bool) {
	switch v.t {
	case valueTypeString:
		return v.s, true
	case valueTypeNumber:
		f, _ := v.Float64()
		return FormatNumber(f), false
	default:
		return "", false
	}
}

// String returns the value formatted as a Lua constant,
// suitable for debugging.
func (v Value) String() string {
	switch v.t {
	case valueTypeNil:
		return "nil"
	case valueTypeFalse:
		return "false"
	case valueTypeTrue:
		return "true"
	case valueTypeNumber:
		s, _ := v.Unquoted()
		return s
	case valueTypeString:
		return strconv.Quote(v.s)
	default:
		return `error("invalid value")`
	}
}

// Equal reports whether two values are equivalent according to Lua equality.
func (v Value) Equal(v2 Value) bool {
	switch v.t.noVariant() {
	case valueTypeNil, valueTypeBoolean:
		return v.t == v2.t
	case valueTypeNumber:
		f1, _ := v.Float64()
		f2, ok := v2.Float64()
		return ok && f1 == f2
	case valueTypeString:
		return v2.IsString() && v.s == v2.s
	default:
		return false
	}
}

// IdenticalTo reports whether two values represent the same value.
// This is mostly the same as [Value.Equal],
// but will report true for two NaNs, for example.
func (v Value) IdenticalTo(v2 Value) bool {
	if v.t != v2.t {
		return false
	}
	switch v.t.noVariant() {
	case valueTypeNil, valueTypeBoolean:
		return true
	case valueTypeString:
		return v.s == v2.s
	default:
		return v.bits == v2.bits
	}
}

// FormatNumber formats a floating-point number
// the way the Lua 5.1 reference implementation's
// tostring does (the C "%.14g" conversion).
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(f, 'g', 14, 64)
	}
}

// ParseNumber converts a string to a floating-point number
// using Lua's conversion rules:
// optional surrounding space,
// decimal or hexadecimal (0x) notation,
// and an optional sign.
// ok is false if the string does not encode a number.
func ParseNumber(s string) (_ float64, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	sign := 1.0
	body := s
	switch s[0] {
	case '-':
		sign = -1.0
		body = s[1:]
	case '+':
		body = s[1:]
	}
	if rest, isHex := strings.CutPrefix(body, "0x"); isHex || strings.HasPrefix(body, "0X") {
		if !isHex {
			rest = body[2:]
		}
		i, err := strconv.ParseUint(rest, 16, 64)
		if err != nil {
			return 0, false
		}
		return sign * float64(i), true
	}
	f, err := strconv.ParseFloat(body, 64)
	if err != nil {
		return 0, false
	}
	return sign * f, true
}
