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

	"github.com/kadirpekel/agentmenu/pkg/config"
	"github.com/kadirpekel/agentmenu/pkg/config/provider"
)

const defaultConfigFile = "agentmenu.yaml"

// loadConfig loads configuration from the selected provider. Without a
// config path and without ./agentmenu.yaml, defaults are used and the
// returned loader is nil.
func loadConfig(ctx context.Context, cli *CLI) (*config.Config, *config.Loader, error) {
	ptype, err := provider.ParseType(cli.ConfigProvider)
	if err != nil {
		return nil, nil, err
	}

	path := cli.Config
	if ptype == provider.TypeFile {
		if path == "" {
			if !fileExists(defaultConfigFile) {
				slog.Debug("No config file, using defaults")
				return config.Default(), nil, nil
			}
			path = defaultConfigFile
		}
		_ = config.LoadDotEnvForConfig(path)
	}

	cfg, loader, err := config.LoadConfig(ctx, provider.ProviderConfig{
		Type:      ptype,
		Path:      path,
		Endpoints: cli.ConfigEndpoints,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return cfg, loader, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
