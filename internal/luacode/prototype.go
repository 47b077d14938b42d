// Copyright (C) 1994-2012 Lua.org, PUC-Rio.
// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Signature is the magic header for a binary (pre-compiled) Lua chunk.
// Data with this prefix can be loaded in with [*Prototype.UnmarshalBinary].
const Signature = "\x1bLua"

const (
	luacVersion byte = 5*16 + 1
	luacFormat  byte = 0
)

// Sizes (in bytes) used by [*Prototype.MarshalBinary].
// [*Prototype.UnmarshalBinary] accepts other declared sizes as well.
const (
	dumpIntSize         = 4
	dumpSizeTSize       = 8
	dumpInstructionSize = 4
	dumpNumberSize      = 8
)

// Bits of the Prototype.IsVararg flag byte.
const (
	// VarargHasArg marks functions compiled with the old "arg" convention.
	VarargHasArg uint8 = 1 << 0
	// VarargIsVararg marks functions declared with a ... parameter.
	VarargIsVararg uint8 = 1 << 1
	// VarargNeedsArg marks functions that reference the "arg" table.
	VarargNeedsArg uint8 = 1 << 2
)

// Prototype represents a loaded function.
type Prototype struct {
	// NumParams is the number of fixed (named) parameters.
	NumParams uint8
	// IsVararg is a bit set describing the function's variadic convention.
	// A function accepts extra arguments if IsVararg&VarargIsVararg != 0.
	IsVararg uint8
	// MaxStackSize is the number of registers needed by this function.
	MaxStackSize uint8
	// NumUpvalues is the number of upvalues the function captures.
	// Closing over the function consumes this many pseudo-instructions
	// after its OP_CLOSURE instruction.
	NumUpvalues uint8

	Constants []Value
	Code      []Instruction
	Functions []*Prototype

	// Debug information:

	Source Source
	// LineInfo maps from an instruction index to the source line it came from.
	// It is either empty or has the same length as Code.
	LineInfo []int32
	// LocalVariables is a list of the function's local variables in declaration order.
	// It is guaranteed that LocalVariables[i].StartPC <= LocalVariables[i+1].StartPC.
	LocalVariables []LocalVariable
	// UpvalueNames is either empty
	// or a list of NumUpvalues names for the function's upvalues.
	UpvalueNames    []string
	LineDefined     int
	LastLineDefined int
}

// IsMainChunk reports whether the prototype represents a loaded source file
// (as opposed to a function inside a file).
func (f *Prototype) IsMainChunk() bool {
	return f.LineDefined == 0
}

// HasVarargs reports whether the function accepts extra arguments.
func (f *Prototype) HasVarargs() bool {
	return f.IsVararg&VarargIsVararg != 0
}

// LineAt returns the source line the instruction at pc came from,
// or 0 if the debug information has been stripped.
func (f *Prototype) LineAt(pc int) int {
	if pc < 0 || pc >= len(f.LineInfo) {
		return 0
	}
	return int(f.LineInfo[pc])
}

// LocalName returns the name of the local variable the given register represents
// during the execution of the given instruction,
// or the empty string if the register does not represent a local variable
// (or the debug information has been stripped).
func (f *Prototype) LocalName(register uint8, pc int) string {
	for _, v := range f.LocalVariables {
		if v.StartPC > pc {
			// Local variables are ordered by StartPC,
			// so this variable and any subsequent ones will be out of scope.
			break
		}
		if pc < v.EndPC {
			if register == 0 {
				return v.Name
			}
			register--
		}
	}
	return ""
}

// StripDebug returns a copy of a [Prototype]
// with the debug information removed.
func (f *Prototype) StripDebug() *Prototype {
	f2 := new(Prototype)
	*f2 = *f
	f2.Source = ""
	f2.LineInfo = nil
	f2.LocalVariables = nil
	f2.UpvalueNames = nil

	if len(f.Functions) > 0 {
		f2.Functions = make([]*Prototype, len(f.Functions))
		for i, p := range f.Functions {
			f2.Functions[i] = p.StripDebug()
		}
	}

	return f2
}

// MarshalBinary marshals the function as a precompiled chunk
// in the same format as [luac 5.1]:
// little-endian, 4-byte ints, 8-byte size_t, and 8-byte float numbers.
//
// [luac 5.1]: https://www.lua.org/manual/5.1/luac.html
func (f *Prototype) MarshalBinary() ([]byte, error) {
	buf := []byte(Signature)
	buf = append(buf, luacVersion, luacFormat)
	buf = append(buf,
		1, // little-endian
		dumpIntSize,
		dumpSizeTSize,
		dumpInstructionSize,
		dumpNumberSize,
		0, // numbers are floating-point
	)
	return dumpFunction(buf, f, "")
}

func dumpFunction(buf []byte, f *Prototype, parentSource Source) ([]byte, error) {
	if f.Source == "" || f.Source == parentSource {
		buf = dumpString(buf, "")
	} else {
		buf = dumpString(buf, string(f.Source))
	}
	buf = dumpInt(buf, f.LineDefined)
	buf = dumpInt(buf, f.LastLineDefined)
	buf = append(buf, f.NumUpvalues, f.NumParams, f.IsVararg, f.MaxStackSize)

	// Code
	buf = dumpInt(buf, len(f.Code))
	for _, code := range f.Code {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(code))
	}

	// Constants
	buf = dumpInt(buf, len(f.Constants))
	for i, value := range f.Constants {
		switch {
		case value.IsNil():
			buf = append(buf, byte(valueTypeNil))
		case value.IsBoolean():
			b, _ := value.Bool()
			buf = append(buf, byte(valueTypeBoolean))
			if b {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case value.IsNumber():
			n, _ := value.Float64()
			buf = append(buf, byte(valueTypeNumber))
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(n))
		case value.IsString():
			s, _ := value.Unquoted()
			buf = append(buf, byte(valueTypeString))
			buf = dumpString(buf, s)
		default:
			return nil, fmt.Errorf("dump lua chunk: Constants[%d] cannot be represented", i)
		}
	}

	// Protos
	buf = dumpInt(buf, len(f.Functions))
	for _, p := range f.Functions {
		var err error
		buf, err = dumpFunction(buf, p, f.Source)
		if err != nil {
			return nil, err
		}
	}

	// Debug information
	buf = dumpInt(buf, len(f.LineInfo))
	for _, line := range f.LineInfo {
		buf = dumpInt(buf, int(line))
	}
	buf = dumpInt(buf, len(f.LocalVariables))
	for _, v := range f.LocalVariables {
		buf = dumpString(buf, v.Name)
		buf = dumpInt(buf, v.StartPC)
		buf = dumpInt(buf, v.EndPC)
	}
	buf = dumpInt(buf, len(f.UpvalueNames))
	for _, name := range f.UpvalueNames {
		buf = dumpString(buf, name)
	}

	return buf, nil
}

// dumpString appends a size_t-prefixed, NUL-terminated string.
// The empty string dumps as a null string (size zero, no payload),
// matching how luac treats absent debug strings.
func dumpString(buf []byte, s string) []byte {
	if s == "" {
		return dumpSizeT(buf, 0)
	}
	buf = dumpSizeT(buf, uint64(len(s)+1))
	buf = append(buf, s...)
	return append(buf, 0)
}

func dumpInt(buf []byte, i int) []byte {
	return binary.LittleEndian.AppendUint32(buf, uint32(int32(i)))
}

func dumpSizeT(buf []byte, n uint64) []byte {
	return binary.LittleEndian.AppendUint64(buf, n)
}

// LocalVariable is a description of a local variable in [Prototype]
// used for debug information.
type LocalVariable struct {
	Name string
	// StartPC is the first instruction in the [Prototype.Code] slice
	// where the variable is active.
	StartPC int
	// EndPC is the first instruction in the [Prototype.Code] slice
	// where the variable is dead.
	EndPC int
}

// Source is a description of a chunk that created a [Prototype].
// The zero value describes an empty literal string.
type Source string

// UnknownSource is a placeholder for an unknown [Source].
const UnknownSource Source = "=?"

// FilenameSource returns a [Source] for a filesystem path.
// The path can be retrieved later using [Source.Filename].
//
// The underlying string in a filename source starts with "@".
func FilenameSource(path string) Source {
	return Source("@" + path)
}

// AbstractSource returns a [Source] from a user-dependent description.
// The description can be retrieved later using [Source.Abstract].
//
// The underlying string in an abstract source starts with "=".
func AbstractSource(description string) Source {
	return Source("=" + description)
}

// Filename returns the file name of the chunk
// provided to [FilenameSource].
func (source Source) Filename() (_ string, isFilename bool) {
	if !strings.HasPrefix(string(source), "@") {
		return "", false
	}
	return string(source[1:]), true
}

// Abstract returns the user-dependent description of the source
// provided to [AbstractSource].
func (source Source) Abstract() (_ string, isAbstract bool) {
	if !strings.HasPrefix(string(source), "=") {
		return "", false
	}
	return string(source[1:]), true
}

const (
	// maxSourceSize is the maximum length of a string returned by [Source.String].
	maxSourceSize = 60

	sourceTruncationSignifier = "..."
)

// String formats the source in a concise manner
// suitable for error messages,
// stripping the leading "@" or "=" marker.
func (source Source) String() string {
	if s, ok := source.Abstract(); ok {
		if len(s) > maxSourceSize {
			return s[:maxSourceSize]
		}
		return s
	}
	if fname, ok := source.Filename(); ok {
		if len(source) > maxSourceSize {
			const n = maxSourceSize - len(sourceTruncationSignifier)
			return sourceTruncationSignifier + fname[len(fname)-n:]
		}
		return fname
	}
	return describeLiteralSource(string(source))
}

func describeLiteralSource(s string) string {
	const prefix = `[string "`
	const suffix = `"]`
	const stringSize = maxSourceSize - (len(prefix) - len(suffix))
	line, _, multipleLines := strings.Cut(s, "\n")
	if !multipleLines && len(line) <= stringSize {
		return prefix + line + suffix
	}
	if len(line)+len(sourceTruncationSignifier) > stringSize {
		line = line[:stringSize-len(sourceTruncationSignifier)]
	}
	return prefix + line + sourceTruncationSignifier + suffix
}

// MaxRegisters is the maximum number of registers in a Lua function.
const MaxRegisters = 250

// MaxUpvalues is the maximum number of upvalues in a closure.
// Value must fit in a VM register.
const MaxUpvalues = 255
