// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

/*
Package lua interprets pre-compiled Lua 5.1 bytecode.

A [State] is constructed from the bytes of a luac file with [New],
which loads the chunk, builds the global environment,
and registers the host-provided standard library.
[State.Run] then executes the main chunk on a register-based
virtual machine implementing the full Lua 5.1 value model:
closures with shared upvalue cells, metatables and metamethods,
variadic arguments, tail calls, and cooperative coroutines.

The host extends the environment with [State.Register],
[State.SetGlobal], and [State.Global].
Execution is single-threaded and cooperative;
canceling the context passed to [State.Run]
(or declining to resume a coroutine)
is the only way to interrupt a script.

The binary chunk format itself is handled by the luacode package.
*/
package lua
