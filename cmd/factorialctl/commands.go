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

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/foundryforge/factorial/contentio"
	"github.com/foundryforge/factorial/graph"
	"github.com/foundryforge/factorial/ids"
	"github.com/foundryforge/factorial/module/stats"
	"github.com/foundryforge/factorial/registry"
	"github.com/foundryforge/factorial/replay"
	"github.com/foundryforge/factorial/serialize"
	"github.com/foundryforge/factorial/sim"
)

var (
	contentFlag  = &cli.StringFlag{Name: "content", Usage: "directory of registry content files", Required: true}
	topologyFlag = &cli.StringFlag{Name: "topology", Usage: "production graph topology file", Required: true}
	engineCfgFlag = &cli.StringFlag{Name: "engine-config", Usage: "engine TOML config file"}
	modulesCfgFlag = &cli.StringFlag{Name: "modules-config", Usage: "framework modules YAML config file"}
	ticksFlag    = &cli.IntFlag{Name: "ticks", Usage: "number of ticks to run", Value: 100}
	dotFlag      = &cli.StringFlag{Name: "dot", Usage: "write a Graphviz DOT export of the final graph to this path"}
	snapshotFlag = &cli.StringFlag{Name: "snapshot-out", Usage: "write a serialize.Snapshot envelope to this path after the run"}
	tickDeadlineFlag = &cli.DurationFlag{Name: "tick-deadline", Usage: "warn (rate-limited) if a single tick's Step() exceeds this duration; 0 disables the watchdog"}
)

func buildRegistry(contentDir string, logger log.Logger) (*registry.Registry, error) {
	b := registry.NewBuilder(logger)
	loader := contentio.NewLoader(logger)
	if err := loader.LoadDir(contentDir, b); err != nil {
		return nil, err
	}
	return b.Build()
}

func runCommand(logger log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "build an engine from content + topology and step it forward",
		Flags: []cli.Flag{contentFlag, topologyFlag, engineCfgFlag, modulesCfgFlag, ticksFlag, dotFlag, snapshotFlag, tickDeadlineFlag},
		Action: func(c *cli.Context) error {
			reg, err := buildRegistry(c.String("content"), logger)
			if err != nil {
				return err
			}
			topo, err := loadTopology(c.String("topology"))
			if err != nil {
				return err
			}
			engineCfg, err := loadEngineConfig(c.String("engine-config"))
			if err != nil {
				return err
			}
			modulesCfg, err := loadModulesConfig(c.String("modules-config"))
			if err != nil {
				return err
			}
			strategy, err := engineCfg.strategy()
			if err != nil {
				return err
			}

			e, err := buildEngine(reg, topo, strategy)
			if err != nil {
				return err
			}
			engineCfg.applyEventRingBudget(e.Events())

			var statsModule *stats.Module
			if modulesCfg.Stats.Enabled {
				statsModule = stats.New()
				if err := e.RegisterModule(statsModule); err != nil {
					return fmt.Errorf("factorialctl: register stats module: %w", err)
				}
			}

			ring, err := serialize.NewSnapshotRing(engineCfg.SnapshotRingCapacity)
			if err != nil {
				return fmt.Errorf("factorialctl: snapshot ring: %w", err)
			}
			defer ring.Close()

			deadline := c.Duration("tick-deadline")
			// Allows at most one deadline-exceeded log line per second so a
			// sustained slowdown doesn't flood the log; every tick still
			// counts toward the run regardless of how slow it was.
			watchdog := rate.NewLimiter(rate.Every(time.Second), 1)

			ticks := c.Int("ticks")
			for i := 0; i < ticks; i++ {
				start := time.Now()
				e.Step()
				if deadline > 0 {
					if elapsed := time.Since(start); elapsed > deadline && watchdog.Allow() {
						logger.Warn("tick exceeded deadline", "tick", i, "elapsed", elapsed, "deadline", deadline)
					}
				}
				if err := ring.Push(serialize.Capture(e)); err != nil {
					return fmt.Errorf("factorialctl: push snapshot: %w", err)
				}
			}

			logger.Info("run complete", "ticks", ticks, "state_hash", e.StateHash())
			if statsModule != nil {
				renderStatsTables(os.Stdout, statsModule)
			}

			if path := c.String("dot"); path != "" {
				labeler := func(id ids.EdgeId) (string, bool) {
					cfg, ok := e.TransportConfig(id)
					if !ok {
						return "", false
					}
					return cfg.Kind.String(), true
				}
				out := graph.WriteDOT(e.Graph(), labeler)
				if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
					return fmt.Errorf("factorialctl: write dot %s: %w", path, err)
				}
			}
			if path := c.String("snapshot-out"); path != "" {
				snap := serialize.Capture(e)
				data, err := snap.Marshal()
				if err != nil {
					return fmt.Errorf("factorialctl: marshal snapshot: %w", err)
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("factorialctl: write snapshot %s: %w", path, err)
				}
			}
			return nil
		},
	}
}

func replayCommand(logger log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "build N engines from the same content + topology and report the first tick they diverge at",
		Flags: []cli.Flag{
			contentFlag, topologyFlag, engineCfgFlag, ticksFlag,
			&cli.IntFlag{Name: "engines", Usage: "number of parallel engines to compare", Value: 4},
		},
		Action: func(c *cli.Context) error {
			reg, err := buildRegistry(c.String("content"), logger)
			if err != nil {
				return err
			}
			topo, err := loadTopology(c.String("topology"))
			if err != nil {
				return err
			}
			engineCfg, err := loadEngineConfig(c.String("engine-config"))
			if err != nil {
				return err
			}
			strategy, err := engineCfg.strategy()
			if err != nil {
				return err
			}

			h := replay.NewHarness(strategy, reg, logger)
			setup := func(e *sim.Engine) {
				// The harness builds --engines engines per run and calls
				// Setup once on each; applyTopology re-applies the same
				// topology doc against every engine independently.
				if err := applyTopology(e, reg, topo); err != nil {
					panic(fmt.Errorf("factorialctl: apply topology: %w", err))
				}
			}

			result, err := h.Run(context.Background(), c.Int("engines"), setup, c.Int("ticks"))
			if err != nil {
				return err
			}
			if result.DivergedAt < 0 {
				logger.Info("no divergence observed", "ticks", c.Int("ticks"), "engines", c.Int("engines"))
				return nil
			}
			logger.Warn("engines diverged", "tick", result.DivergedAt)
			for _, d := range result.Divergences {
				fmt.Printf("  %s %s: %s\n", d.Subsystem, d.NodeOrEdge, d.Detail)
			}
			return nil
		},
	}
}

func inspectCommand(logger log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "load a snapshot envelope and print its tick, node and edge counts and content hash",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "snapshot", Usage: "snapshot envelope path", Required: true},
		},
		Action: func(c *cli.Context) error {
			f, err := os.Open(c.String("snapshot"))
			if err != nil {
				return fmt.Errorf("factorialctl: open snapshot: %w", err)
			}
			defer f.Close()

			snap, err := serialize.ReadSnapshot(f)
			if err != nil {
				return fmt.Errorf("factorialctl: read snapshot: %w", err)
			}

			fmt.Printf("tick %d, %d node(s), %d edge(s), content hash %x\n",
				snap.Tick, len(snap.Graph.Nodes), len(snap.Graph.Edges), serialize.ContentHash(snap))
			return nil
		},
	}
}
