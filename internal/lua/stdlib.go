// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package lua

import "fmt"

// Standard library names accepted by [Options.Libraries].
const (
	BaseLibraryName      = "base"
	CoroutineLibraryName = "coroutine"
	MathLibraryName      = "math"
	StringLibraryName    = "string"
)

// openLibraries installs the requested standard libraries
// (all of them when names is nil).
func (l *State) openLibraries(names []string) error {
	openers := map[string]func() error{
		BaseLibraryName:      l.openBase,
		CoroutineLibraryName: l.openCoroutine,
		MathLibraryName:      l.openMath,
		StringLibraryName:    l.openString,
	}
	if names == nil {
		names = []string{BaseLibraryName, CoroutineLibraryName, MathLibraryName, StringLibraryName}
	}
	for _, name := range names {
		open := openers[name]
		if open == nil {
			return fmt.Errorf("open libraries: unknown library %q", name)
		}
		if err := open(); err != nil {
			return fmt.Errorf("open libraries: %s: %v", name, err)
		}
	}
	return nil
}
