// Copyright 2025 The luna Authors
// SPDX-License-Identifier: MIT

// luna runs pre-compiled Lua 5.1 chunks.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"zombiezen.com/go/bass/sigterm"
	"zombiezen.com/go/log"
)

func main() {
	rootCommand := &cobra.Command{
		Use:           "luna",
		Short:         "Lua 5.1 bytecode interpreter",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	g := newGlobalConfig()
	showDebug := rootCommand.PersistentFlags().Bool("debug", false, "show debugging output")
	rootCommand.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := g.mergeFiles(configFilePaths()); err != nil {
			return err
		}
		if *showDebug {
			g.Debug = true
		}
		initLogging(g.Debug)
		return nil
	}

	rootCommand.AddCommand(
		newRunCommand(g),
		newListCommand(g),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), sigterm.Signals()...)
	err := rootCommand.ExecuteContext(ctx)
	cancel()
	if err != nil {
		initLogging(*showDebug)
		log.Errorf(context.Background(), "%v", err)
		os.Exit(1)
	}
}

var initLogOnce sync.Once

func initLogging(showDebug bool) {
	initLogOnce.Do(func() {
		minLogLevel := log.Info
		if showDebug {
			minLogLevel = log.Debug
		}
		var flags log.Flags
		if !term.IsTerminal(int(os.Stderr.Fd())) {
			// Timestamps are useful when the output lands in a log file.
			flags = log.StdFlags
		}
		log.SetDefault(&log.LevelFilter{
			Min:    minLogLevel,
			Output: log.New(os.Stderr, "luna: ", flags, nil),
		})
	})
}
