// Copyright 2026 The Foundryforge Authors
// This file is part of Factorial.
//
// Factorial is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Factorial is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Factorial. If not, see <http://www.gnu.org/licenses/>.

// Command factorialctl drives a factory simulation engine from the
// command line: build it from content files and a topology document,
// step it forward, compare parallel runs for determinism, or inspect a
// previously captured snapshot.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/erigontech/erigon-lib/log/v3"
)

// setupLogging builds the root logger used across every subcommand. An
// empty logFile keeps output on the terminal; a non-empty one sends
// output to that file only (JSON lines, not stderr), through lumberjack
// so a long-running `run` doesn't fill the disk.
func setupLogging(logFile string, lvl log.Lvl) log.Logger {
	var handler log.Handler
	if logFile == "" {
		handler = log.StreamHandler(os.Stderr, log.TerminalFormat(false))
	} else {
		writer := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		handler = log.StreamHandler(writer, log.JSONFormat())
	}
	logger := log.Root()
	logger.SetHandler(log.LvlFilterHandler(lvl, handler))
	return logger
}

func parseLevel(s string) log.Lvl {
	lvl, err := log.LvlFromString(s)
	if err != nil {
		return log.LvlInfo
	}
	return lvl
}

// wrapLogger builds cmd once with a placeholder logger to pick up its
// static Name/Usage/Flags, then rebuilds it with the real root logger
// (set by App.Before, after flag parsing) at Action time.
func wrapLogger(cmd func(log.Logger) *cli.Command, getLogger func() log.Logger) *cli.Command {
	template := cmd(log.Root())
	return &cli.Command{
		Name:  template.Name,
		Usage: template.Usage,
		Flags: template.Flags,
		Action: func(c *cli.Context) error {
			return cmd(getLogger()).Action(c)
		},
	}
}

func main() {
	logFileFlag := &cli.StringFlag{Name: "log-file", Usage: "rotate logs to this file instead of stderr"}
	logLevelFlag := &cli.StringFlag{Name: "log-level", Usage: "log level (crit, error, warn, info, debug, trace)", Value: "info"}

	var logger log.Logger

	app := &cli.App{
		Name:  "factorialctl",
		Usage: "build, run and inspect a tick-driven factory simulation",
		Flags: []cli.Flag{logFileFlag, logLevelFlag},
		Before: func(c *cli.Context) error {
			logger = setupLogging(c.String("log-file"), parseLevel(c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			wrapLogger(runCommand, func() log.Logger { return logger }),
			wrapLogger(replayCommand, func() log.Logger { return logger }),
			wrapLogger(inspectCommand, func() log.Logger { return logger }),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
