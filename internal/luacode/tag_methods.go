// Copyright (C) 1994-2012 Lua.org, PUC-Rio.
// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package luacode

import "fmt"

// TagMethod is an enumeration of built-in metamethods.
type TagMethod uint8

// Metamethods.
const (
	TagMethodAdd       TagMethod = iota // __add
	TagMethodSub                        // __sub
	TagMethodMul                        // __mul
	TagMethodDiv                        // __div
	TagMethodMod                        // __mod
	TagMethodPow                        // __pow
	TagMethodUNM                        // __unm
	TagMethodConcat                     // __concat
	TagMethodLen                        // __len
	TagMethodEQ                         // __eq
	TagMethodLT                         // __lt
	TagMethodLE                         // __le
	TagMethodIndex                      // __index
	TagMethodNewIndex                   // __newindex
	TagMethodCall                       // __call
	TagMethodMetatable                  // __metatable

	numTagMethods
)

var tagMethodNames = [numTagMethods]string{
	TagMethodAdd:       "__add",
	TagMethodSub:       "__sub",
	TagMethodMul:       "__mul",
	TagMethodDiv:       "__div",
	TagMethodMod:       "__mod",
	TagMethodPow:       "__pow",
	TagMethodUNM:       "__unm",
	TagMethodConcat:    "__concat",
	TagMethodLen:       "__len",
	TagMethodEQ:        "__eq",
	TagMethodLT:        "__lt",
	TagMethodLE:        "__le",
	TagMethodIndex:     "__index",
	TagMethodNewIndex:  "__newindex",
	TagMethodCall:      "__call",
	TagMethodMetatable: "__metatable",
}

// String returns the metatable key for the metamethod.
func (tm TagMethod) String() string {
	if tm >= numTagMethods {
		return fmt.Sprintf("TagMethod(%d)", uint8(tm))
	}
	return tagMethodNames[tm]
}

// ArithmeticTagMethod returns the metamethod for the arithmetic opcode,
// or ok=false if the opcode is not an arithmetic instruction.
func ArithmeticTagMethod(op OpCode) (_ TagMethod, ok bool) {
	switch op {
	case OpAdd:
		return TagMethodAdd, true
	case OpSub:
		return TagMethodSub, true
	case OpMul:
		return TagMethodMul, true
	case OpDiv:
		return TagMethodDiv, true
	case OpMod:
		return TagMethodMod, true
	case OpPow:
		return TagMethodPow, true
	case OpUNM:
		return TagMethodUNM, true
	default:
		return 0, false
	}
}
