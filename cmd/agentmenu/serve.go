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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kadirpekel/agentmenu/pkg/config"
	"github.com/kadirpekel/agentmenu/pkg/server"
)

// ServeCmd starts the HTTP API.
type ServeCmd struct {
	Address string `help:"Address to listen on (overrides server.address)."`
	Watch   bool   `help:"Reload combinations when the configuration changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

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

	if c.Address != "" {
		cfg.Server.Address = c.Address
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer stop()
		if err := a.Close(shutdownCtx); err != nil {
			slog.Warn("Shutdown finished with errors", "error", err)
		}
	}()

	if c.Watch && loader != nil {
		loader.OnChange(func(updated *config.Config) { a.reload(ctx, updated) })
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	go a.supervisor.Monitor(ctx)

	srv := server.New(cfg.Server, a.serverDeps(), server.WithObservability(a.obs))

	fmt.Printf("agentmenu server ready on %s\n", cfg.Server.Address)
	fmt.Printf("   Agents:       %d\n", a.agents.Count())
	fmt.Printf("   Combinations: %d\n", a.combos.Count())
	fmt.Printf("   Health:       http://%s/health\n", displayAddress(cfg.Server.Address))

	return srv.Start(ctx)
}

func displayAddress(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
