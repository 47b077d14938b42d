// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"zombiezen.com/go/log"

	"luna/internal/lua"
)

type runOptions struct {
	file       string
	scriptArgs []string
}

func newRunCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "run [options] FILE [ARG [...]]",
		Short:                 "execute a compiled Lua chunk",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MinimumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(runOptions)
	addRunFlags(c.Flags(), opts)
	c.RunE = func(cmd *cobra.Command, args []string) error {
		opts.file = args[0]
		opts.scriptArgs = args[1:]
		return runRun(cmd.Context(), g, opts)
	}
	return c
}

// addRunFlags registers the run command's flags on the given flag set.
func addRunFlags(f *pflag.FlagSet, opts *runOptions) {
	// The run command currently has no flags of its own,
	// but script arguments after the file are passed through verbatim.
	f.SetInterspersed(false)
}

func runRun(ctx context.Context, g *globalConfig, opts *runOptions) error {
	chunk, err := os.ReadFile(opts.file)
	if err != nil {
		return err
	}

	stateOpts := &lua.Options{
		Output:    os.Stdout,
		Libraries: g.Libraries,
	}
	if len(stateOpts.Libraries) == 0 {
		stateOpts.Libraries = nil
	}
	if g.RandomSeed != nil {
		seed := uint64(*g.RandomSeed)
		stateOpts.Random = rand.NewPCG(seed, seed)
		log.Debugf(ctx, "math.random seeded with %d", *g.RandomSeed)
	}

	l, err := lua.New(chunk, stateOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Close(); err != nil {
			log.Errorf(ctx, "%v", err)
		}
	}()

	// Script arguments are visible both as ... and as the arg table.
	args := make([]lua.Value, 0, len(opts.scriptArgs))
	argTable := lua.NewTable(len(opts.scriptArgs), 1)
	if err := argTable.Set(lua.Number(0), lua.String(opts.file)); err != nil {
		return err
	}
	for i, a := range opts.scriptArgs {
		args = append(args, lua.String(a))
		if err := argTable.Set(lua.Number(i+1), lua.String(a)); err != nil {
			return err
		}
	}
	l.SetGlobal("arg", argTable)

	log.Debugf(ctx, "running %s with %d argument(s)", opts.file, len(args))
	results, err := l.Run(ctx, args...)
	if err != nil {
		return err
	}
	if len(results) > 0 {
		parts := make([]string, len(results))
		for i, r := range results {
			parts[i] = l.ToString(r)
		}
		fmt.Println(strings.Join(parts, "\t"))
	}
	return nil
}
