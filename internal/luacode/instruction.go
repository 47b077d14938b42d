// Copyright (C) 1994-2012 Lua.org, PUC-Rio.
// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package luacode

import "fmt"

// Instruction is a single virtual machine instruction.
//
// Lua 5.1 packs an instruction into 32 bits:
// the opcode in the lowest 6 bits,
// the A argument in the next 8,
// the C argument in the next 9,
// and the B argument in the highest 9.
// Bx overlays B and C as a single 18-bit unsigned argument;
// sBx is the same field biased by [OffsetSBx].
type Instruction uint32

const (
	sizeOpCode = 6

	sizeA = 8
	posA  = sizeOpCode

	sizeC = 9
	posC  = posA + sizeA

	sizeB = 9
	posB  = posC + sizeC

	sizeBx = sizeB + sizeC
	posBx  = posC
)

// Argument limits.
const (
	MaxArgA  = 1<<sizeA - 1
	MaxArgB  = 1<<sizeB - 1
	MaxArgC  = 1<<sizeC - 1
	MaxArgBx = 1<<sizeBx - 1

	// OffsetSBx is the bias applied to the Bx field
	// to obtain the signed sBx argument.
	OffsetSBx = MaxArgBx >> 1
)

// ABCInstruction returns a new [OpModeABC] [Instruction]
// with the given arguments.
// ABCInstruction panics if the [OpCode] given
// does not return [OpModeABC] from [OpCode.OpMode]
// or an argument is out of range.
func ABCInstruction(op OpCode, a uint8, b, c uint16) Instruction {
	if op.OpMode() != OpModeABC {
		panic("ABCInstruction with invalid OpCode")
	}
	if b > MaxArgB || c > MaxArgC {
		panic("ABCInstruction argument out of range")
	}
	return Instruction(op) |
		Instruction(a)<<posA |
		Instruction(c)<<posC |
		Instruction(b)<<posB
}

// ABxInstruction returns a new [OpModeABx] [Instruction]
// with the given arguments.
// ABxInstruction panics if the [OpCode] given
// does not return [OpModeABx] from [OpCode.OpMode]
// or the argument is out of range.
func ABxInstruction(op OpCode, a uint8, bx uint32) Instruction {
	if op.OpMode() != OpModeABx {
		panic("ABxInstruction with invalid OpCode")
	}
	if bx > MaxArgBx {
		panic("Bx argument out of range")
	}
	return Instruction(op) |
		Instruction(a)<<posA |
		Instruction(bx)<<posBx
}

// AsBxInstruction returns a new [OpModeAsBx] [Instruction]
// with the given arguments.
// AsBxInstruction panics if the [OpCode] given
// does not return [OpModeAsBx] from [OpCode.OpMode]
// or the argument is out of range.
func AsBxInstruction(op OpCode, a uint8, sbx int32) Instruction {
	if op.OpMode() != OpModeAsBx {
		panic("AsBxInstruction with invalid OpCode")
	}
	if sbx < -OffsetSBx || sbx > MaxArgBx-OffsetSBx {
		panic("sBx argument out of range")
	}
	return Instruction(op) |
		Instruction(a)<<posA |
		Instruction(uint32(sbx+OffsetSBx))<<posBx
}

// OpCode returns the instruction's type.
func (i Instruction) OpCode() OpCode {
	return OpCode(i & (1<<sizeOpCode - 1))
}

// ArgA returns the first (A) argument of the instruction.
func (i Instruction) ArgA() uint8 {
	return uint8(i >> posA)
}

// ArgB returns the second (B) argument of an [OpModeABC] instruction.
func (i Instruction) ArgB() uint16 {
	if i.OpCode().OpMode() != OpModeABC {
		return 0
	}
	return uint16(i>>posB) & MaxArgB
}

// ArgC returns the third (C) argument of an [OpModeABC] instruction.
func (i Instruction) ArgC() uint16 {
	if i.OpCode().OpMode() != OpModeABC {
		return 0
	}
	return uint16(i>>posC) & MaxArgC
}

// ArgBx returns the unsigned Bx argument of an [OpModeABx] instruction.
func (i Instruction) ArgBx() uint32 {
	if i.OpCode().OpMode() != OpModeABx {
		return 0
	}
	return uint32(i >> posBx)
}

// ArgSBx returns the signed Bx argument of an [OpModeAsBx] instruction.
func (i Instruction) ArgSBx() int32 {
	if i.OpCode().OpMode() != OpModeAsBx {
		return 0
	}
	return int32(i>>posBx) - OffsetSBx
}

// bitRK is the flag bit that marks a B or C argument
// as a constant table index rather than a register.
const bitRK = 1 << (sizeB - 1)

// IsConstant reports whether a 9-bit B or C operand
// names an entry in the constant table
// instead of a register.
func IsConstant(arg uint16) bool {
	return arg&bitRK != 0
}

// ConstantIndex returns the constant table index encoded in arg.
func ConstantIndex(arg uint16) int {
	return int(arg &^ bitRK)
}

// RKConstant encodes a constant table index as a B or C operand.
// RKConstant panics if the index does not fit in 8 bits.
func RKConstant(i int) uint16 {
	if i < 0 || i >= bitRK {
		panic("RKConstant index out of range")
	}
	return uint16(i) | bitRK
}

// FloatingByteToInt decodes the compact exponent/mantissa encoding
// used for table size hints:
// (eeeeexxx) represents (1xxx) << (eeeee - 1) when eeeee is non-zero,
// or xxx verbatim otherwise.
//
// Equivalent to `luaO_fb2int` in Lua 5.1.
func FloatingByteToInt(x uint8) int {
	e := int(x >> 3)
	if e == 0 {
		return int(x)
	}
	return (int(x&7) | 8) << (e - 1)
}

// IntToFloatingByte converts an integer to a "floating byte",
// rounding up to the nearest representable value.
//
// Equivalent to `luaO_int2fb` in Lua 5.1.
func IntToFloatingByte(x int) uint8 {
	e := 0
	for x >= 16 {
		x = (x + 1) >> 1
		e++
	}
	if x < 8 {
		return uint8(x)
	}
	return uint8((e+1)<<3 | (x - 8))
}

// String decodes the instruction
// and formats it in a manner similar to [luac] -l.
//
// [luac]: https://www.lua.org/manual/5.1/luac.html
func (i Instruction) String() string {
	op := i.OpCode()
	switch op.OpMode() {
	case OpModeABC:
		return fmt.Sprintf("%-9v %d %d %d", op, i.ArgA(), i.ArgB(), i.ArgC())
	case OpModeABx:
		return fmt.Sprintf("%-9v %d %d", op, i.ArgA(), i.ArgBx())
	case OpModeAsBx:
		return fmt.Sprintf("%-9v %d %d", op, i.ArgA(), i.ArgSBx())
	default:
		return fmt.Sprintf("Instruction(%#08x)", uint32(i))
	}
}

// OpCode is an enumeration of [Instruction] types.
type OpCode uint8

// Defined [OpCode] values.
//
// The comments use R[x] for registers, K[x] for constants,
// RK[x] for either (see [IsConstant]), G for the global table,
// and U[x] for upvalues.
const (
	OpMove      OpCode = 0  // A B     R[A] := R[B]
	OpLoadK     OpCode = 1  // A Bx    R[A] := K[Bx]
	OpLoadBool  OpCode = 2  // A B C   R[A] := (bool)B; if C, pc++
	OpLoadNil   OpCode = 3  // A B     R[A..B] := nil
	OpGetUpval  OpCode = 4  // A B     R[A] := U[B]
	OpGetGlobal OpCode = 5  // A Bx    R[A] := G[K[Bx]]
	OpGetTable  OpCode = 6  // A B C   R[A] := R[B][RK[C]]
	OpSetGlobal OpCode = 7  // A Bx    G[K[Bx]] := R[A]
	OpSetUpval  OpCode = 8  // A B     U[B] := R[A]
	OpSetTable  OpCode = 9  // A B C   R[A][RK[B]] := RK[C]
	OpNewTable  OpCode = 10 // A B C   R[A] := {} (array size hint B, hash size hint C)
	OpSelf      OpCode = 11 // A B C   R[A+1] := R[B]; R[A] := R[B][RK[C]]
	OpAdd       OpCode = 12 // A B C   R[A] := RK[B] + RK[C]
	OpSub       OpCode = 13 // A B C   R[A] := RK[B] - RK[C]
	OpMul       OpCode = 14 // A B C   R[A] := RK[B] * RK[C]
	OpDiv       OpCode = 15 // A B C   R[A] := RK[B] / RK[C]
	OpMod       OpCode = 16 // A B C   R[A] := RK[B] % RK[C]
	OpPow       OpCode = 17 // A B C   R[A] := RK[B] ^ RK[C]
	OpUNM       OpCode = 18 // A B     R[A] := -R[B]
	OpNot       OpCode = 19 // A B     R[A] := not R[B]
	OpLen       OpCode = 20 // A B     R[A] := #R[B]
	OpConcat    OpCode = 21 // A B C   R[A] := R[B] .. ... .. R[C]
	OpJMP       OpCode = 22 // sBx     pc += sBx
	OpEQ        OpCode = 23 // A B C   if (RK[B] == RK[C]) ~= A, pc++
	OpLT        OpCode = 24 // A B C   if (RK[B] <  RK[C]) ~= A, pc++
	OpLE        OpCode = 25 // A B C   if (RK[B] <= RK[C]) ~= A, pc++
	OpTest      OpCode = 26 // A C     if (bool)R[A] ~= C, pc++
	OpTestSet   OpCode = 27 // A B C   if (bool)R[B] == C, R[A] := R[B]; else pc++
	OpCall      OpCode = 28 // A B C   R[A..A+C-2] := R[A](R[A+1..A+B-1])
	OpTailCall  OpCode = 29 // A B     return R[A](R[A+1..A+B-1])
	OpReturn    OpCode = 30 // A B     return R[A..A+B-2]
	OpForLoop   OpCode = 31 // A sBx   R[A] += R[A+2]; if in range, R[A+3] := R[A], pc += sBx
	OpForPrep   OpCode = 32 // A sBx   R[A] -= R[A+2]; pc += sBx
	OpTForLoop  OpCode = 33 // A C     R[A+3..A+2+C] := R[A](R[A+1], R[A+2]); if nil, pc++
	OpSetList   OpCode = 34 // A B C   R[A][(C-1)*FPF+i] := R[A+i], 1 <= i <= B
	OpClose     OpCode = 35 // A       close upvalues aliasing registers >= A
	OpClosure   OpCode = 36 // A Bx    R[A] := closure(proto[Bx])
	OpVararg    OpCode = 37 // A B     R[A..A+B-2] := varargs

	maxOpCode = OpVararg
)

// NumOpCodes is the number of defined opcodes.
const NumOpCodes = int(maxOpCode) + 1

// FieldsPerFlush is the block size used by [OpSetList]
// to address rows of table initializers.
const FieldsPerFlush = 50

var opNames = [NumOpCodes]string{
	OpMove:      "MOVE",
	OpLoadK:     "LOADK",
	OpLoadBool:  "LOADBOOL",
	OpLoadNil:   "LOADNIL",
	OpGetUpval:  "GETUPVAL",
	OpGetGlobal: "GETGLOBAL",
	OpGetTable:  "GETTABLE",
	OpSetGlobal: "SETGLOBAL",
	OpSetUpval:  "SETUPVAL",
	OpSetTable:  "SETTABLE",
	OpNewTable:  "NEWTABLE",
	OpSelf:      "SELF",
	OpAdd:       "ADD",
	OpSub:       "SUB",
	OpMul:       "MUL",
	OpDiv:       "DIV",
	OpMod:       "MOD",
	OpPow:       "POW",
	OpUNM:       "UNM",
	OpNot:       "NOT",
	OpLen:       "LEN",
	OpConcat:    "CONCAT",
	OpJMP:       "JMP",
	OpEQ:        "EQ",
	OpLT:        "LT",
	OpLE:        "LE",
	OpTest:      "TEST",
	OpTestSet:   "TESTSET",
	OpCall:      "CALL",
	OpTailCall:  "TAILCALL",
	OpReturn:    "RETURN",
	OpForLoop:   "FORLOOP",
	OpForPrep:   "FORPREP",
	OpTForLoop:  "TFORLOOP",
	OpSetList:   "SETLIST",
	OpClose:     "CLOSE",
	OpClosure:   "CLOSURE",
	OpVararg:    "VARARG",
}

// String returns the opcode's name as listed by luac.
func (op OpCode) String() string {
	if !op.IsValid() {
		return fmt.Sprintf("OpCode(%d)", uint8(op))
	}
	return opNames[op]
}

// IsValid reports whether the opcode is one of the known instructions.
func (op OpCode) IsValid() bool {
	return op <= maxOpCode
}

func (op OpCode) props() byte {
	if !op.IsValid() {
		return 0
	}
	return opProps[op]
}

// OpMode returns the format of an [Instruction] that uses the opcode.
//
// Equivalent to `getOpMode` in Lua 5.1.
func (op OpCode) OpMode() OpMode {
	return OpMode(op.props() & 3)
}

// SetsA reports whether an [Instruction] that uses the opcode
// would change the value of the register given in [Instruction.ArgA].
//
// Equivalent to `testAMode` in Lua 5.1.
func (op OpCode) SetsA() bool {
	return op.props()&propSetsA != 0
}

// IsTest reports whether the instruction is a test.
// In a valid program, the next instruction will be a jump.
//
// Equivalent to `testTMode` in Lua 5.1.
func (op OpCode) IsTest() bool {
	return op.props()&propTest != 0
}

const (
	propSetsA = 1 << 2
	propTest  = 1 << 3
)

var opProps = [NumOpCodes]byte{
	OpMove:      propSetsA | byte(OpModeABC),
	OpLoadK:     propSetsA | byte(OpModeABx),
	OpLoadBool:  propSetsA | byte(OpModeABC),
	OpLoadNil:   propSetsA | byte(OpModeABC),
	OpGetUpval:  propSetsA | byte(OpModeABC),
	OpGetGlobal: propSetsA | byte(OpModeABx),
	OpGetTable:  propSetsA | byte(OpModeABC),
	OpSetGlobal: byte(OpModeABx),
	OpSetUpval:  byte(OpModeABC),
	OpSetTable:  byte(OpModeABC),
	OpNewTable:  propSetsA | byte(OpModeABC),
	OpSelf:      propSetsA | byte(OpModeABC),
	OpAdd:       propSetsA | byte(OpModeABC),
	OpSub:       propSetsA | byte(OpModeABC),
	OpMul:       propSetsA | byte(OpModeABC),
	OpDiv:       propSetsA | byte(OpModeABC),
	OpMod:       propSetsA | byte(OpModeABC),
	OpPow:       propSetsA | byte(OpModeABC),
	OpUNM:       propSetsA | byte(OpModeABC),
	OpNot:       propSetsA | byte(OpModeABC),
	OpLen:       propSetsA | byte(OpModeABC),
	OpConcat:    propSetsA | byte(OpModeABC),
	OpJMP:       byte(OpModeAsBx),
	OpEQ:        propTest | byte(OpModeABC),
	OpLT:        propTest | byte(OpModeABC),
	OpLE:        propTest | byte(OpModeABC),
	OpTest:      propTest | byte(OpModeABC),
	OpTestSet:   propTest | propSetsA | byte(OpModeABC),
	OpCall:      propSetsA | byte(OpModeABC),
	OpTailCall:  propSetsA | byte(OpModeABC),
	OpReturn:    byte(OpModeABC),
	OpForLoop:   propSetsA | byte(OpModeAsBx),
	OpForPrep:   propSetsA | byte(OpModeAsBx),
	OpTForLoop:  propTest | byte(OpModeABC),
	OpSetList:   byte(OpModeABC),
	OpClose:     byte(OpModeABC),
	OpClosure:   propSetsA | byte(OpModeABx),
	OpVararg:    propSetsA | byte(OpModeABC),
}

// OpMode is an enumeration of [Instruction] formats.
type OpMode uint8

// Instruction formats.
const (
	OpModeABC OpMode = 1 + iota
	OpModeABx
	OpModeAsBx
)
