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

// Command agentmenu is the CLI for the agent directory and combination
// executor.
//
// Usage:
//
//	agentmenu serve --config agentmenu.yaml
//	agentmenu run content-research-pipeline --input "Go generics"
//	agentmenu combos
//	agentmenu agents
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/agentmenu"
	"github.com/kadirpekel/agentmenu/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP API."`
	Run      RunCmd      `cmd:"" help:"Run a combination to completion and print its record."`
	Combos   CombosCmd   `cmd:"" help:"List combinations."`
	Agents   AgentsCmd   `cmd:"" help:"List agents by category."`
	Validate ValidateCmd `cmd:"" help:"Validate the configuration."`
	Schema   SchemaCmd   `cmd:"" help:"Print the configuration JSON Schema."`

	Config          string   `short:"c" help:"Path to config file, or key/znode for remote providers."`
	ConfigProvider  string   `name:"config-provider" help:"Config source: file, consul, etcd, zookeeper." default:"file" enum:"file,consul,etcd,zookeeper"`
	ConfigEndpoints []string `name:"config-endpoints" help:"Endpoints of the remote config store." sep:","`
	LogLevel        string   `help:"Log level (debug, info, warn, error)."`
	LogFile         string   `help:"Log file path (empty = stderr)."`
	LogFormat       string   `help:"Log format (simple, verbose, json)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(agentmenu.GetVersion())
	return nil
}

func main() {
	_ = config.LoadDotEnv()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentmenu"),
		kong.Description("Catalog agents and run them as multi-step combinations"),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
