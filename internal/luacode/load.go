// Copyright (C) 1994-2012 Lua.org, PUC-Rio.
// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrFormat is wrapped by every error
// that [*Prototype.UnmarshalBinary] returns,
// distinguishing malformed chunks from errors raised during execution.
var ErrFormat = errors.New("malformed chunk")

// Constant type tags in dump format.
const (
	constantTypeNil     byte = 0
	constantTypeBoolean byte = 1
	constantTypeNumber  byte = 3
	constantTypeString  byte = 4
)

// UnmarshalBinary unmarshals a precompiled chunk like those produced by [luac].
// UnmarshalBinary supports chunks from different architectures:
// both endiannesses, 4- and 8-byte ints and size_t,
// and 4- and 8-byte floating-point or integral numbers.
// The chunk must be produced by Lua 5.1.
//
// Any error returned wraps [ErrFormat].
//
// [luac]: https://www.lua.org/manual/5.1/luac.html
func (f *Prototype) UnmarshalBinary(data []byte) error {
	r, err := newChunkReader(data)
	if err != nil {
		return fmt.Errorf("load lua chunk: %w: %v", ErrFormat, err)
	}
	if err := loadFunction(f, r, UnknownSource); err != nil {
		return fmt.Errorf("load lua chunk: %w: %v", ErrFormat, err)
	}
	if _, hasMore := r.readByte(); hasMore {
		return fmt.Errorf("load lua chunk: %w: trailing data", ErrFormat)
	}
	return nil
}

func loadFunction(f *Prototype, r *chunkReader, parentSource Source) error {
	source, hasSource, err := r.readString()
	if err != nil {
		return fmt.Errorf("load function: source: %v", err)
	}
	if !hasSource {
		source = string(parentSource)
	}
	f.Source = Source(source)

	f.LineDefined, err = r.readInt()
	if err != nil {
		return fmt.Errorf("load function: line defined: %v", err)
	}
	f.LastLineDefined, err = r.readInt()
	if err != nil {
		return fmt.Errorf("load function: last line defined: %v", err)
	}
	var ok bool
	f.NumUpvalues, ok = r.readByte()
	if !ok {
		return fmt.Errorf("load function: number of upvalues: %v", io.ErrUnexpectedEOF)
	}
	f.NumParams, ok = r.readByte()
	if !ok {
		return fmt.Errorf("load function: number of parameters: %v", io.ErrUnexpectedEOF)
	}
	f.IsVararg, ok = r.readByte()
	if !ok {
		return fmt.Errorf("load function: is vararg: %v", io.ErrUnexpectedEOF)
	}
	f.MaxStackSize, ok = r.readByte()
	if !ok {
		return fmt.Errorf("load function: max stack size: %v", io.ErrUnexpectedEOF)
	}

	// Code
	n, err := r.readCount()
	if err != nil {
		return fmt.Errorf("load function: instruction length: %v", err)
	}
	f.Code = make([]Instruction, n)
	for i := range f.Code {
		f.Code[i], ok = r.readInstruction()
		if !ok {
			return fmt.Errorf("load function: instructions: %v", io.ErrUnexpectedEOF)
		}
	}

	// Constants
	n, err = r.readCount()
	if err != nil {
		return fmt.Errorf("load function: constant table size: %v", err)
	}
	f.Constants = make([]Value, n)
	for i := range f.Constants {
		t, ok := r.readByte()
		if !ok {
			return fmt.Errorf("load function: constant table: %v", io.ErrUnexpectedEOF)
		}
		switch t {
		case constantTypeNil:
			// Already zeroed; nothing to do.
		case constantTypeBoolean:
			b, ok := r.readByte()
			if !ok {
				return fmt.Errorf("load function: constant table: %v", io.ErrUnexpectedEOF)
			}
			f.Constants[i] = BoolValue(b != 0)
		case constantTypeNumber:
			n, ok := r.readNumber()
			if !ok {
				return fmt.Errorf("load function: constant table: %v", io.ErrUnexpectedEOF)
			}
			f.Constants[i] = NumberValue(n)
		case constantTypeString:
			s, _, err := r.readString()
			if err != nil {
				return fmt.Errorf("load function: constant table [%d]: %v", i, err)
			}
			f.Constants[i] = StringValue(s)
		default:
			return fmt.Errorf("load function: constant table [%d]: unknown type %#02x", i, t)
		}
	}

	// Protos
	n, err = r.readCount()
	if err != nil {
		return fmt.Errorf("load function: prototypes: %v", err)
	}
	f.Functions = make([]*Prototype, n)
	for i := range f.Functions {
		fi := new(Prototype)
		if err := loadFunction(fi, r, f.Source); err != nil {
			return err
		}
		f.Functions[i] = fi
	}

	// Debug
	n, err = r.readCount()
	if err != nil {
		return fmt.Errorf("load function: line info: %v", err)
	}
	if n != 0 && n != len(f.Code) {
		return fmt.Errorf("load function: line info: length (%d) does not match code (%d)", n, len(f.Code))
	}
	f.LineInfo = make([]int32, n)
	for i := range f.LineInfo {
		line, err := r.readInt()
		if err != nil {
			return fmt.Errorf("load function: line info [%d]: %v", i, err)
		}
		f.LineInfo[i] = int32(line)
	}
	n, err = r.readCount()
	if err != nil {
		return fmt.Errorf("load function: local variables: %v", err)
	}
	f.LocalVariables = make([]LocalVariable, n)
	for i := range f.LocalVariables {
		f.LocalVariables[i].Name, _, err = r.readString()
		if err != nil {
			return fmt.Errorf("load function: local variables [%d]: name: %v", i, err)
		}
		f.LocalVariables[i].StartPC, err = r.readInt()
		if err != nil {
			return fmt.Errorf("load function: local variables [%d]: start pc: %v", i, err)
		}
		f.LocalVariables[i].EndPC, err = r.readInt()
		if err != nil {
			return fmt.Errorf("load function: local variables [%d]: end pc: %v", i, err)
		}
	}
	n, err = r.readCount()
	if err != nil {
		return fmt.Errorf("load function: upvalue names: %v", err)
	}
	if n != 0 && n != int(f.NumUpvalues) {
		return fmt.Errorf("load function: upvalue names: length (%d) does not match count (%d)", n, f.NumUpvalues)
	}
	f.UpvalueNames = make([]string, n)
	for i := range f.UpvalueNames {
		f.UpvalueNames[i], _, err = r.readString()
		if err != nil {
			return fmt.Errorf("load function: upvalue names [%d]: %v", i, err)
		}
	}

	return nil
}

type chunkReader struct {
	s []byte

	byteOrder       binary.ByteOrder
	intSize         int
	sizeTSize       int
	numberSize      int
	numbersIntegral bool
}

func newChunkReader(s []byte) (*chunkReader, error) {
	r := &chunkReader{s: s}
	if !r.literal(Signature) {
		return nil, errors.New("missing signature")
	}
	if version, ok := r.readByte(); !ok {
		return nil, io.ErrUnexpectedEOF
	} else if version != luacVersion {
		return nil, fmt.Errorf("version mismatch (%#02x)", version)
	}
	if format, ok := r.readByte(); !ok {
		return nil, io.ErrUnexpectedEOF
	} else if format != luacFormat {
		return nil, errors.New("format mismatch")
	}

	switch endianness, ok := r.readByte(); {
	case !ok:
		return nil, io.ErrUnexpectedEOF
	case endianness == 0:
		r.byteOrder = binary.BigEndian
	case endianness == 1:
		r.byteOrder = binary.LittleEndian
	default:
		return nil, fmt.Errorf("unsupported endianness (%d)", endianness)
	}

	intSize, ok := r.readByte()
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	if intSize != 4 && intSize != 8 {
		return nil, fmt.Errorf("unsupported int size (%d)", intSize)
	}
	r.intSize = int(intSize)

	sizeTSize, ok := r.readByte()
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	if sizeTSize != 4 && sizeTSize != 8 {
		return nil, fmt.Errorf("unsupported size_t size (%d)", sizeTSize)
	}
	r.sizeTSize = int(sizeTSize)

	if instructionSize, ok := r.readByte(); !ok {
		return nil, io.ErrUnexpectedEOF
	} else if instructionSize != 4 {
		return nil, fmt.Errorf("instruction size must be 4 (got %d)", instructionSize)
	}

	numberSize, ok := r.readByte()
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	if numberSize != 4 && numberSize != 8 {
		return nil, fmt.Errorf("unsupported number size (%d)", numberSize)
	}
	r.numberSize = int(numberSize)

	switch integral, ok := r.readByte(); {
	case !ok:
		return nil, io.ErrUnexpectedEOF
	case integral == 0:
		r.numbersIntegral = false
	case integral == 1:
		r.numbersIntegral = true
	default:
		return nil, fmt.Errorf("unsupported number format flag (%d)", integral)
	}

	return r, nil
}

func (r *chunkReader) literal(prefix string) bool {
	if len(r.s) < len(prefix) || string(r.s[:len(prefix)]) != prefix {
		return false
	}
	r.s = r.s[len(prefix):]
	return true
}

func (r *chunkReader) readByte() (byte, bool) {
	if len(r.s) == 0 {
		return 0, false
	}
	b := r.s[0]
	r.s = r.s[1:]
	return b, true
}

// readInt reads a signed integer of the header-declared int size.
func (r *chunkReader) readInt() (int, error) {
	if len(r.s) < r.intSize {
		return 0, io.ErrUnexpectedEOF
	}
	var i int
	switch r.intSize {
	case 4:
		i = int(int32(r.byteOrder.Uint32(r.s)))
	case 8:
		i = int(int64(r.byteOrder.Uint64(r.s)))
	default:
		panic("unreachable")
	}
	r.s = r.s[r.intSize:]
	return i, nil
}

// readCount reads a sequence length and rejects negative values.
func (r *chunkReader) readCount() (int, error) {
	n, err := r.readInt()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative length (%d)", n)
	}
	return n, nil
}

// readSizeT reads an unsigned integer of the header-declared size_t size.
func (r *chunkReader) readSizeT() (uint64, error) {
	if len(r.s) < r.sizeTSize {
		return 0, io.ErrUnexpectedEOF
	}
	var n uint64
	switch r.sizeTSize {
	case 4:
		n = uint64(r.byteOrder.Uint32(r.s))
	case 8:
		n = r.byteOrder.Uint64(r.s)
	default:
		panic("unreachable")
	}
	r.s = r.s[r.sizeTSize:]
	return n, nil
}

// readNumber reads a Lua number of the header-declared size and kind.
func (r *chunkReader) readNumber() (float64, bool) {
	if len(r.s) < r.numberSize {
		return 0, false
	}
	var f float64
	switch {
	case r.numbersIntegral && r.numberSize == 4:
		f = float64(int32(r.byteOrder.Uint32(r.s)))
	case r.numbersIntegral && r.numberSize == 8:
		f = float64(int64(r.byteOrder.Uint64(r.s)))
	case r.numberSize == 4:
		f = float64(math.Float32frombits(r.byteOrder.Uint32(r.s)))
	default:
		f = math.Float64frombits(r.byteOrder.Uint64(r.s))
	}
	r.s = r.s[r.numberSize:]
	return f, true
}

// readString reads a size_t-prefixed string.
// A zero size denotes a null string (valid will be false);
// otherwise the payload is size-1 bytes followed by a NUL terminator.
func (r *chunkReader) readString() (s string, valid bool, err error) {
	n, err := r.readSizeT()
	if err != nil {
		return "", false, err
	}
	if n == 0 {
		return "", false, nil
	}
	if uint64(len(r.s)) < n {
		return "", false, io.ErrUnexpectedEOF
	}
	s = string(r.s[: n-1 : n-1])
	r.s = r.s[n:]
	return s, true, nil
}

func (r *chunkReader) readInstruction() (Instruction, bool) {
	const size = 4
	if len(r.s) < size {
		return 0, false
	}
	i := Instruction(r.byteOrder.Uint32(r.s))
	r.s = r.s[size:]
	return i, true
}
