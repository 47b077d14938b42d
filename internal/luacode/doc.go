// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

/*
Package luacode handles the binary representation of Lua 5.1 functions.

A precompiled chunk (as produced by luac) is loaded with
[*Prototype.UnmarshalBinary], which reconstructs the tree of [Prototype]
values along with their constants, instructions, and debug information.
[*Prototype.MarshalBinary] writes the tree back out in the same format.

[Instruction] decodes the fixed 32-bit instruction words of the Lua 5.1
virtual machine. The package performs no execution; see the lua package
for the interpreter.
*/
package luacode
