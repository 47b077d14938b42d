// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"context"
	"slices"

	"luna/internal/luacode"
)

// frame is the activation record of a Lua function:
// a register file sized to the prototype's MaxStackSize,
// the program counter,
// the extra arguments beyond the named parameters,
// and the open upvalue cells that alias this frame's registers.
//
// The register file is heap-allocated and owned by the frame,
// so a suspended coroutine keeps its registers
// and open upvalues stay valid until explicitly closed.
type frame struct {
	closure *Closure
	regs    []Value
	pc      int
	// top is the number of live registers
	// after an instruction that produces a variable number of values
	// (OpCall with C=0 or OpVararg with B=0).
	// Instructions with open operand counts read it.
	top          int
	varargs      []Value
	openUpvalues []*upvalue
}

func newFrame(f *Closure, args []Value) *frame {
	proto := f.proto
	regs := make([]Value, proto.MaxStackSize)
	copy(regs, args[:min(len(args), int(proto.NumParams))])
	var varargs []Value
	if proto.HasVarargs() && len(args) > int(proto.NumParams) {
		varargs = slices.Clone(args[proto.NumParams:])
	}
	return &frame{
		closure: f,
		regs:    regs,
		varargs: varargs,
		top:     int(proto.NumParams),
	}
}

// register returns a pointer to the i'th register,
// or an error for an index outside the frame's register file.
func (fr *frame) register(i int) (*Value, error) {
	if i < 0 || i >= len(fr.regs) {
		return nil, fr.errorf("decode instruction: register %d out-of-bounds (stack is %d slots)", i, len(fr.regs))
	}
	return &fr.regs[i], nil
}

// constant returns the i'th constant of the executing prototype.
func (fr *frame) constant(i int) (Value, error) {
	ks := fr.closure.proto.Constants
	if i < 0 || i >= len(ks) {
		return nil, fr.errorf("decode instruction: constant %d out-of-bounds (table has %d entries)", i, len(ks))
	}
	return importConstant(ks[i]), nil
}

// rk resolves a 9-bit B or C operand
// to either a register value or a constant.
func (fr *frame) rk(arg uint16) (Value, error) {
	if luacode.IsConstant(arg) {
		return fr.constant(luacode.ConstantIndex(arg))
	}
	rv, err := fr.register(int(arg))
	if err != nil {
		return nil, err
	}
	return *rv, nil
}

// grow extends the register file to hold at least n registers.
// The file can exceed MaxStackSize only while holding
// the open results of a call or vararg expression.
func (fr *frame) grow(n int) {
	if n > len(fr.regs) {
		fr.regs = append(fr.regs, make([]Value, n-len(fr.regs))...)
	}
}

// exec drives the instruction stream of a frame until it returns.
// Tail calls to Lua closures replace the frame in place,
// keeping native and frame stack depth constant.
// On error, every open upvalue of the frame is closed
// before the error propagates.
func (l *State) exec(ctx context.Context, fr *frame) (results []Value, err error) {
	defer func() {
		if err != nil {
			fr.closeUpvalues(0)
		}
	}()

	for {
		proto := fr.closure.proto
		if fr.pc < 0 || fr.pc >= len(proto.Code) {
			fr.pc++ // Point position at the offending slot.
			return nil, fr.errorf("jumped out of bounds")
		}
		i := proto.Code[fr.pc]
		fr.pc++

		switch op := i.OpCode(); op {
		case luacode.OpMove:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			rb, err := fr.register(int(i.ArgB()))
			if err != nil {
				return nil, err
			}
			*ra = *rb
		case luacode.OpLoadK:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			kb, err := fr.constant(int(i.ArgBx()))
			if err != nil {
				return nil, err
			}
			*ra = kb
		case luacode.OpLoadBool:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			*ra = Boolean(i.ArgB() != 0)
			if i.ArgC() != 0 {
				fr.pc++
			}
		case luacode.OpLoadNil:
			a, b := int(i.ArgA()), int(i.ArgB())
			if _, err := fr.register(b); err != nil {
				return nil, err
			}
			if a <= b {
				clear(fr.regs[a : b+1])
			}
		case luacode.OpGetUpval:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			uv, err := fr.upvalue(int(i.ArgB()))
			if err != nil {
				return nil, err
			}
			*ra = uv.get()
		case luacode.OpSetUpval:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			uv, err := fr.upvalue(int(i.ArgB()))
			if err != nil {
				return nil, err
			}
			uv.set(*ra)
		case luacode.OpGetGlobal:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			kb, err := fr.constant(int(i.ArgBx()))
			if err != nil {
				return nil, err
			}
			result, err := l.index(ctx, l.globals, kb)
			if err != nil {
				return nil, fr.runtimeError(err)
			}
			*ra = result
		case luacode.OpSetGlobal:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			kb, err := fr.constant(int(i.ArgBx()))
			if err != nil {
				return nil, err
			}
			if err := l.setIndex(ctx, l.globals, kb, *ra); err != nil {
				return nil, fr.runtimeError(err)
			}
		case luacode.OpGetTable:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			rb, err := fr.register(int(i.ArgB()))
			if err != nil {
				return nil, err
			}
			kc, err := fr.rk(i.ArgC())
			if err != nil {
				return nil, err
			}
			result, err := l.index(ctx, *rb, kc)
			if err != nil {
				return nil, fr.runtimeError(err)
			}
			*ra = result
		case luacode.OpSetTable:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			kb, err := fr.rk(i.ArgB())
			if err != nil {
				return nil, err
			}
			kc, err := fr.rk(i.ArgC())
			if err != nil {
				return nil, err
			}
			if err := l.setIndex(ctx, *ra, kb, kc); err != nil {
				return nil, fr.runtimeError(err)
			}
		case luacode.OpNewTable:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			arraySize := luacode.FloatingByteToInt(uint8(i.ArgB()))
			hashSize := luacode.FloatingByteToInt(uint8(i.ArgC()))
			*ra = NewTable(arraySize, hashSize)
		case luacode.OpSelf:
			a := int(i.ArgA())
			if _, err := fr.register(a + 1); err != nil {
				return nil, err
			}
			rb, err := fr.register(int(i.ArgB()))
			if err != nil {
				return nil, err
			}
			kc, err := fr.rk(i.ArgC())
			if err != nil {
				return nil, err
			}
			fr.regs[a+1] = *rb
			result, err := l.index(ctx, *rb, kc)
			if err != nil {
				return nil, fr.runtimeError(err)
			}
			fr.regs[a] = result
		case luacode.OpAdd, luacode.OpSub, luacode.OpMul, luacode.OpDiv, luacode.OpMod, luacode.OpPow:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			kb, err := fr.rk(i.ArgB())
			if err != nil {
				return nil, err
			}
			kc, err := fr.rk(i.ArgC())
			if err != nil {
				return nil, err
			}
			result, err := l.arithmetic(ctx, op, kb, kc)
			if err != nil {
				return nil, fr.runtimeError(err)
			}
			*ra = result
		case luacode.OpUNM:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			rb, err := fr.register(int(i.ArgB()))
			if err != nil {
				return nil, err
			}
			result, err := l.arithmetic(ctx, op, *rb, *rb)
			if err != nil {
				return nil, fr.runtimeError(err)
			}
			*ra = result
		case luacode.OpNot:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			rb, err := fr.register(int(i.ArgB()))
			if err != nil {
				return nil, err
			}
			*ra = Boolean(!toBoolean(*rb))
		case luacode.OpLen:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			rb, err := fr.register(int(i.ArgB()))
			if err != nil {
				return nil, err
			}
			result, err := l.lengthOf(ctx, *rb)
			if err != nil {
				return nil, fr.runtimeError(err)
			}
			*ra = result
		case luacode.OpConcat:
			a, b, c := int(i.ArgA()), int(i.ArgB()), int(i.ArgC())
			if _, err := fr.register(a); err != nil {
				return nil, err
			}
			if _, err := fr.register(c); err != nil {
				return nil, err
			}
			// Concatenation is right-associative.
			acc := fr.regs[c]
			for j := c - 1; j >= b; j-- {
				acc, err = l.concat(ctx, fr.regs[j], acc)
				if err != nil {
					return nil, fr.runtimeError(err)
				}
			}
			fr.regs[a] = acc
		case luacode.OpJMP:
			// The A argument of a jump is a break-scope hint:
			// leaving a block closes the block's upvalues.
			if a := int(i.ArgA()); a > 0 {
				fr.closeUpvalues(a - 1)
			}
			sbx := int(i.ArgSBx())
			fr.pc += sbx
			if sbx < 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
		case luacode.OpEQ, luacode.OpLT, luacode.OpLE:
			kb, err := fr.rk(i.ArgB())
			if err != nil {
				return nil, err
			}
			kc, err := fr.rk(i.ArgC())
			if err != nil {
				return nil, err
			}
			var result bool
			switch op {
			case luacode.OpEQ:
				result, err = l.equal(ctx, kb, kc)
			case luacode.OpLT:
				result, err = l.compare(ctx, kb, kc, false)
			case luacode.OpLE:
				result, err = l.compare(ctx, kb, kc, true)
			}
			if err != nil {
				return nil, fr.runtimeError(err)
			}
			if result != (i.ArgA() != 0) {
				fr.pc++
			}
		case luacode.OpTest:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			if toBoolean(*ra) != (i.ArgC() != 0) {
				fr.pc++
			}
		case luacode.OpTestSet:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			rb, err := fr.register(int(i.ArgB()))
			if err != nil {
				return nil, err
			}
			if toBoolean(*rb) == (i.ArgC() != 0) {
				*ra = *rb
			} else {
				fr.pc++
			}
		case luacode.OpCall:
			a, c := int(i.ArgA()), int(i.ArgC())
			f, args, err := fr.callOperands(a, int(i.ArgB()))
			if err != nil {
				return nil, err
			}
			results, err := l.call(ctx, f, args)
			if err != nil {
				return nil, fr.runtimeError(err)
			}
			if c == 0 {
				fr.grow(a + len(results))
				copy(fr.regs[a:], results)
				fr.top = a + len(results)
			} else {
				want := c - 1
				if want > 0 {
					if _, err := fr.register(a + want - 1); err != nil {
						return nil, err
					}
				}
				for j := range want {
					if j < len(results) {
						fr.regs[a+j] = results[j]
					} else {
						fr.regs[a+j] = nil
					}
				}
			}
		case luacode.OpTailCall:
			f, args, err := fr.callOperands(int(i.ArgA()), int(i.ArgB()))
			if err != nil {
				return nil, err
			}
			// The frame is about to be replaced or abandoned.
			fr.closeUpvalues(0)
			callee, isClosure := f.(*Closure)
			if !isClosure {
				results, err := l.call(ctx, f, args)
				if err != nil {
					return nil, fr.runtimeError(err)
				}
				return results, nil
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			// Reuse this frame so that recursive tail calls
			// run in constant stack depth.
			*fr = *newFrame(callee, args)
		case luacode.OpReturn:
			a, b := int(i.ArgA()), int(i.ArgB())
			fr.closeUpvalues(0)
			switch {
			case b == 0:
				if a > fr.top {
					return nil, fr.errorf("decode instruction: return past top (%d > %d)", a, fr.top)
				}
				return slices.Clone(fr.regs[a:fr.top]), nil
			case b == 1:
				return nil, nil
			default:
				if _, err := fr.register(a + b - 2); err != nil {
					return nil, err
				}
				return slices.Clone(fr.regs[a : a+b-1]), nil
			}
		case luacode.OpForPrep:
			a := int(i.ArgA())
			if _, err := fr.register(a + 3); err != nil {
				return nil, err
			}
			init, ok := toNumber(fr.regs[a])
			if !ok {
				return nil, fr.errorf("'for' initial value must be a number")
			}
			limit, ok := toNumber(fr.regs[a+1])
			if !ok {
				return nil, fr.errorf("'for' limit must be a number")
			}
			step, ok := toNumber(fr.regs[a+2])
			if !ok {
				return nil, fr.errorf("'for' step must be a number")
			}
			fr.regs[a] = init - step
			fr.regs[a+1] = limit
			fr.regs[a+2] = step
			fr.pc += int(i.ArgSBx())
		case luacode.OpForLoop:
			a := int(i.ArgA())
			if _, err := fr.register(a + 3); err != nil {
				return nil, err
			}
			idx, ok1 := fr.regs[a].(Number)
			limit, ok2 := fr.regs[a+1].(Number)
			step, ok3 := fr.regs[a+2].(Number)
			if !ok1 || !ok2 || !ok3 {
				return nil, fr.errorf("'for' control variables must be numbers")
			}
			idx += step
			if (step > 0 && idx <= limit) || (step <= 0 && limit <= idx) {
				fr.regs[a] = idx
				fr.regs[a+3] = idx
				fr.pc += int(i.ArgSBx())
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
		case luacode.OpTForLoop:
			a, c := int(i.ArgA()), int(i.ArgC())
			if c < 1 {
				return nil, fr.errorf("decode instruction: generic 'for' loop call must return at least 1 value")
			}
			if _, err := fr.register(a + 2 + c); err != nil {
				return nil, err
			}
			results, err := l.call(ctx, fr.regs[a], []Value{fr.regs[a+1], fr.regs[a+2]})
			if err != nil {
				return nil, fr.runtimeError(err)
			}
			for j := range c {
				if j < len(results) {
					fr.regs[a+3+j] = results[j]
				} else {
					fr.regs[a+3+j] = nil
				}
			}
			if fr.regs[a+3] != nil {
				fr.regs[a+2] = fr.regs[a+3]
			} else {
				fr.pc++
			}
		case luacode.OpSetList:
			a := int(i.ArgA())
			ra, err := fr.register(a)
			if err != nil {
				return nil, err
			}
			t, isTable := (*ra).(*Table)
			if !isTable {
				return nil, fr.errorf("set list: value in register %d is a %s (need table)", a, l.typeName(*ra))
			}
			n := int(i.ArgB())
			if n == 0 {
				n = fr.top - (a + 1)
			} else if _, err := fr.register(a + n); err != nil {
				return nil, err
			}
			c := int(i.ArgC())
			if c == 0 {
				// The block index is in the next instruction word.
				if fr.pc >= len(proto.Code) {
					return nil, fr.errorf("decode instruction: %v expects extra argument", op)
				}
				c = int(uint32(proto.Code[fr.pc]))
				fr.pc++
			}
			base := (c - 1) * luacode.FieldsPerFlush
			for j := 1; j <= n; j++ {
				if err := t.Set(Number(base+j), fr.regs[a+j]); err != nil {
					return nil, fr.runtimeError(err)
				}
			}
		case luacode.OpClose:
			fr.closeUpvalues(int(i.ArgA()))
		case luacode.OpClosure:
			ra, err := fr.register(int(i.ArgA()))
			if err != nil {
				return nil, err
			}
			bx := int(i.ArgBx())
			if bx >= len(proto.Functions) {
				return nil, fr.errorf("decode instruction: closure %d out of range", bx)
			}
			p := proto.Functions[bx]
			upvalues := make([]*upvalue, p.NumUpvalues)
			for j := range upvalues {
				if fr.pc >= len(proto.Code) {
					return nil, fr.errorf("decode instruction: missing upvalue binding for closure %d", bx)
				}
				pseudo := proto.Code[fr.pc]
				fr.pc++
				switch pseudo.OpCode() {
				case luacode.OpMove:
					b := int(pseudo.ArgB())
					if _, err := fr.register(b); err != nil {
						return nil, err
					}
					upvalues[j] = fr.openUpvalue(b)
				case luacode.OpGetUpval:
					uv, err := fr.upvalue(int(pseudo.ArgB()))
					if err != nil {
						return nil, err
					}
					upvalues[j] = uv
				default:
					return nil, fr.errorf("decode instruction: invalid upvalue binding instruction %v", pseudo.OpCode())
				}
			}
			*ra = &Closure{id: nextID(), proto: p, upvalues: upvalues}
		case luacode.OpVararg:
			a, b := int(i.ArgA()), int(i.ArgB())
			if b == 0 {
				fr.grow(a + len(fr.varargs))
				copy(fr.regs[a:], fr.varargs)
				fr.top = a + len(fr.varargs)
			} else {
				n := b - 1
				if n > 0 {
					if _, err := fr.register(a + n - 1); err != nil {
						return nil, err
					}
				}
				for j := range n {
					if j < len(fr.varargs) {
						fr.regs[a+j] = fr.varargs[j]
					} else {
						fr.regs[a+j] = nil
					}
				}
			}
		default:
			return nil, fr.errorf("decode instruction: unknown opcode %v", op)
		}
	}
}

// upvalue returns the executing closure's i'th upvalue cell.
func (fr *frame) upvalue(i int) (*upvalue, error) {
	if i < 0 || i >= len(fr.closure.upvalues) {
		return nil, fr.errorf("decode instruction: upvalue %d out-of-bounds (function has %d upvalues)", i, len(fr.closure.upvalues))
	}
	return fr.closure.upvalues[i], nil
}

// callOperands gathers the callee and arguments
// for an OpCall or OpTailCall instruction.
// The arguments are copied out of the register file,
// so the callee may freely reuse its registers.
func (fr *frame) callOperands(a, b int) (f Value, args []Value, err error) {
	if _, err := fr.register(a); err != nil {
		return nil, nil, err
	}
	var argEnd int
	if b == 0 {
		argEnd = fr.top
		if argEnd < a+1 {
			argEnd = a + 1
		}
	} else {
		argEnd = a + b
		if argEnd > a+1 {
			if _, err := fr.register(argEnd - 1); err != nil {
				return nil, nil, err
			}
		}
	}
	return fr.regs[a], slices.Clone(fr.regs[a+1 : argEnd]), nil
}
