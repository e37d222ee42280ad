// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/kadirpekel/agentmenu/pkg/config"
	"github.com/kadirpekel/agentmenu/pkg/directory"
	"github.com/kadirpekel/agentmenu/pkg/workflow"
)

// withApp loads config, builds the app, runs fn and tears everything down.
func withApp(ctx context.Context, cli *CLI, fn func(*app) error) error {
	cfg, loader, err := loadConfig(ctx, cli)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	cleanup, err := applyConfigLogger(cli, &cfg.Logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	runErr := fn(a)

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Close(closeCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RunCmd launches one combination and waits for it.
type RunCmd struct {
	Combination string        `arg:"" help:"Combination name."`
	Input       string        `short:"i" help:"Run input."`
	JSON        bool          `name:"json" help:"Parse --input as JSON."`
	Timeout     time.Duration `help:"Stop the run after this long (0 = no limit)."`
}

func (c *RunCmd) parseInput() (any, error) {
	if !c.JSON {
		return c.Input, nil
	}
	var v any
	if err := json.Unmarshal([]byte(c.Input), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON input: %w", err)
	}
	return v, nil
}

func (c *RunCmd) Run(cli *CLI) error {
	input, err := c.parseInput()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if c.Timeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, c.Timeout)
		defer stop()
	}

	return withApp(context.Background(), cli, func(a *app) error {
		id, err := a.runs.Launch(ctx, c.Combination, input)
		if err != nil {
			if id != "" {
				if rec, statusErr := a.runs.GetStatus(context.Background(), id); statusErr == nil {
					_ = printJSON(os.Stdout, rec)
				}
			}
			return err
		}

		rec, err := a.runs.Wait(ctx, id)
		if err != nil {
			// Interrupted or timed out: stop the run and report what it reached.
			if _, stopErr := a.runs.Stop(context.Background(), id); stopErr != nil {
				return stopErr
			}
			if rec, err = a.runs.GetStatus(context.Background(), id); err != nil {
				return err
			}
		}

		if err := printJSON(os.Stdout, rec); err != nil {
			return err
		}
		if rec.Status != workflow.StatusCompleted {
			return fmt.Errorf("execution %s finished with status %s", id, rec.Status)
		}
		return nil
	})
}

// CombosCmd lists combinations.
type CombosCmd struct {
	JSON bool `name:"json" help:"Print full definitions as JSON."`
}

func (c *CombosCmd) Run(cli *CLI) error {
	return withApp(context.Background(), cli, func(a *app) error {
		combos := a.combos.List()
		if c.JSON {
			return printJSON(os.Stdout, combos)
		}
		if len(combos) == 0 {
			fmt.Println("No combinations defined.")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTOPOLOGY\tSTEPS\tAGENTS\tDESCRIPTION")
		for _, combo := range combos {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
				combo.Name, combo.Workflow.Type, len(combo.Workflow.Steps),
				strings.Join(combo.Agents, ", "), combo.Description)
		}
		return tw.Flush()
	})
}

// AgentsCmd lists agents grouped by category.
type AgentsCmd struct {
	Category string `help:"Only list this category."`
	JSON     bool   `name:"json" help:"Print agents as JSON."`
}

func (c *AgentsCmd) Run(cli *CLI) error {
	return withApp(context.Background(), cli, func(a *app) error {
		agents := a.agents.List()
		if c.Category != "" {
			agents = a.agents.ByCategory(c.Category)
		}
		if c.JSON {
			return printJSON(os.Stdout, agents)
		}
		if len(agents) == 0 {
			fmt.Println("No agents found.")
			return nil
		}

		byCategory := make(map[string][]string)
		for _, info := range agents {
			byCategory[info.Category] = append(byCategory[info.Category], info.Name)
		}
		categories := make([]string, 0, len(byCategory))
		for category := range byCategory {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		for _, category := range categories {
			fmt.Printf("%s (%d)\n", category, len(byCategory[category]))
			for _, name := range byCategory[category] {
				fmt.Printf("  %s\n", name)
			}
		}
		return nil
	})
}

// ValidateCmd loads and validates the configuration.
type ValidateCmd struct {
	Agents bool `help:"Also check each agent's entry point and credentials."`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, loader, err := loadConfig(context.Background(), cli)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	fmt.Println("Configuration is valid.")
	if !c.Agents {
		return nil
	}

	agents, err := directory.FromConfig(&cfg.Agents)
	if err != nil {
		return fmt.Errorf("failed to build agent directory: %w", err)
	}
	invalid := 0
	for _, info := range agents.List() {
		report, err := agents.Validate(info.Name)
		if err != nil {
			return err
		}
		if report.Valid {
			fmt.Printf("  ok    %s\n", report.Agent)
			continue
		}
		invalid++
		fmt.Printf("  FAIL  %s: %s\n", report.Agent, strings.Join(report.Issues, "; "))
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d agents are not launchable", invalid, agents.Count())
	}
	return nil
}

// SchemaCmd prints the configuration JSON Schema.
type SchemaCmd struct {
	Compact bool `help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run() error {
	enc := json.NewEncoder(os.Stdout)
	if !c.Compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(config.Schema()); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
