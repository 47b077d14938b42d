// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"errors"
	"math"
	"slices"
)

// Table is a Lua table [Value]:
// a hybrid of a dense array part indexed from 1
// and a hash part for every other key.
// Keys are remembered in insertion order
// so that [*Table.Next] provides a stable traversal.
type Table struct {
	id    uint64
	array []Value
	hash  map[Value]Value
	meta  *Table

	// keys is the insertion-order log of every present key,
	// array and hash part alike.
	keys     []Value
	keyIndex map[Value]int
}

// NewTable returns a new empty table.
// arrayCapacity and hashCapacity are size hints used to preallocate storage.
func NewTable(arrayCapacity, hashCapacity int) *Table {
	tab := &Table{id: nextID()}
	if arrayCapacity > 0 {
		tab.array = make([]Value, 0, arrayCapacity)
	}
	if n := arrayCapacity + hashCapacity; n > 0 {
		tab.keys = make([]Value, 0, n)
	}
	return tab
}

func (tab *Table) valueType() Type { return TypeTable }

// arrayIndex reports whether key addresses the array part,
// which holds entries 1 through len(tab.array)
// plus the append position len(tab.array)+1.
func (tab *Table) arrayIndex(key Value) (_ int, ok bool) {
	n, isNumber := key.(Number)
	if !isNumber {
		return 0, false
	}
	f := float64(n)
	if f != math.Trunc(f) || f < 1 || f > float64(len(tab.array)+1) {
		return 0, false
	}
	return int(f), true
}

// Get returns the value for a key without consulting metatables.
// Missing keys return nil.
func (tab *Table) Get(key Value) Value {
	if tab == nil {
		return nil
	}
	if i, ok := tab.arrayIndex(key); ok && i <= len(tab.array) {
		return tab.array[i-1]
	}
	return tab.hash[normalizeKey(key)]
}

// Set writes a value for a key without consulting metatables.
// Writing nil removes the key.
// Set returns an error if the key is nil or NaN.
func (tab *Table) Set(key, value Value) error {
	switch k := key.(type) {
	case nil:
		return errors.New("table index is nil")
	case Number:
		if math.IsNaN(float64(k)) {
			return errors.New("table index is NaN")
		}
	}
	key = normalizeKey(key)

	if i, ok := tab.arrayIndex(key); ok {
		tab.setArray(i, value)
		return nil
	}

	switch {
	case value == nil:
		if _, present := tab.hash[key]; present {
			delete(tab.hash, key)
			tab.deleteKey(key)
		}
	default:
		if _, present := tab.hash[key]; !present {
			tab.logKey(key)
		}
		if tab.hash == nil {
			tab.hash = make(map[Value]Value)
		}
		tab.hash[key] = value
	}
	return nil
}

// setArray writes the array part at 1-based index i,
// where i is at most len(tab.array)+1.
func (tab *Table) setArray(i int, value Value) {
	switch {
	case value == nil && i == len(tab.array)+1:
		// Removing the append position: only possible state is a
		// leftover hash entry from an earlier split.
		if _, present := tab.hash[Number(i)]; present {
			delete(tab.hash, Number(i))
			tab.deleteKey(Number(i))
		}
	case value == nil && i == len(tab.array):
		// Shrink from the tail.
		tab.deleteKey(Number(i))
		tab.array[i-1] = nil
		tab.array = tab.array[:i-1]
	case value == nil && i < len(tab.array):
		// Clearing in the middle splits the sequence:
		// the tail moves to the hash part to keep the array dense.
		for j := len(tab.array); j > i; j-- {
			if tab.hash == nil {
				tab.hash = make(map[Value]Value)
			}
			tab.hash[Number(j)] = tab.array[j-1]
		}
		tab.deleteKey(Number(i))
		clear(tab.array[i-1:])
		tab.array = tab.array[:i-1]
	case i == len(tab.array)+1:
		// Append. The key may have previously lived in the hash part.
		if _, present := tab.hash[Number(i)]; present {
			delete(tab.hash, Number(i))
		} else {
			tab.logKey(Number(i))
		}
		tab.array = append(tab.array, value)
		tab.migrateFromHash()
	default:
		tab.array[i-1] = value
	}
}

// migrateFromHash moves successive integer keys
// from the hash part to the array part after an append.
func (tab *Table) migrateFromHash() {
	for {
		next := Number(len(tab.array) + 1)
		v, ok := tab.hash[next]
		if !ok {
			return
		}
		delete(tab.hash, next)
		tab.array = append(tab.array, v)
	}
}

func (tab *Table) logKey(key Value) {
	if tab.keyIndex == nil {
		tab.keyIndex = make(map[Value]int)
	}
	tab.keyIndex[key] = len(tab.keys)
	tab.keys = append(tab.keys, key)
}

func (tab *Table) deleteKey(key Value) {
	i, ok := tab.keyIndex[key]
	if !ok {
		return
	}
	tab.keys = slices.Delete(tab.keys, i, i+1)
	delete(tab.keyIndex, key)
	for j := i; j < len(tab.keys); j++ {
		tab.keyIndex[tab.keys[j]] = j
	}
}

// Len returns a border of the table:
// the length of its dense array part.
// This is the Lua length ("#") operator without metamethods.
func (tab *Table) Len() int {
	if tab == nil {
		return 0
	}
	return len(tab.array)
}

// Next produces the key/value pair following key
// in the table's insertion order.
// A nil key starts the traversal;
// ok is false when the traversal is complete.
// Next returns an error if the key is neither nil nor present in the table.
func (tab *Table) Next(key Value) (nextKey, nextValue Value, ok bool, err error) {
	i := 0
	if key != nil {
		ki, found := tab.keyIndex[normalizeKey(key)]
		if !found {
			return nil, nil, false, errors.New("invalid key to 'next'")
		}
		i = ki + 1
	}
	if i >= len(tab.keys) {
		return nil, nil, false, nil
	}
	k := tab.keys[i]
	return k, tab.Get(k), true, nil
}

// Metatable returns the table's metatable or nil if it has none.
func (tab *Table) Metatable() *Table {
	return tab.meta
}

// SetMetatable sets or clears the table's metatable.
// It does not honor "__metatable" protection; callers that need it
// (like the setmetatable global) must check first.
func (tab *Table) SetMetatable(meta *Table) {
	tab.meta = meta
}

// normalizeKey maps a key to its canonical representation.
// All numbers are float64 in this VM, so only the -0.0 corner needs care:
// Lua indexes t[-0.0] and t[0.0] identically.
func normalizeKey(key Value) Value {
	if n, ok := key.(Number); ok && n == 0 {
		return Number(0)
	}
	return key
}
