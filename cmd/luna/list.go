// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"luna/internal/luacode"
)

func newListCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "list FILE",
		Short:                 "disassemble a compiled Lua chunk",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runList(cmd.Context(), g, args[0])
	}
	return c
}

func runList(ctx context.Context, g *globalConfig, file string) error {
	chunk, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	proto := new(luacode.Prototype)
	if err := proto.UnmarshalBinary(chunk); err != nil {
		return err
	}
	listFunction(proto)
	return nil
}

// listFunction prints a function and its nested prototypes
// in a format similar to luac -l.
func listFunction(f *luacode.Prototype) {
	kind := "function"
	if f.IsMainChunk() {
		kind = "main"
	}
	fmt.Printf("%s <%v:%d,%d> (%d instructions)\n",
		kind, f.Source, f.LineDefined, f.LastLineDefined, len(f.Code))
	fmt.Printf("%d params, %d slots, %d upvalues, %d constants, %d functions\n",
		f.NumParams, f.MaxStackSize, f.NumUpvalues, len(f.Constants), len(f.Functions))
	for pc, i := range f.Code {
		line := ""
		if l := f.LineAt(pc); l > 0 {
			line = fmt.Sprintf("[%d]", l)
		}
		fmt.Printf("\t%d\t%-7s %v\n", pc+1, line, i)
	}
	for _, nested := range f.Functions {
		fmt.Println()
		listFunction(nested)
	}
}
