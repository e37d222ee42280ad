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

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

// envVarPattern matches ${VAR}, ${VAR:-default} and $VAR.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// workflowRefNames are step input references, not environment variables.
// They must survive expansion so combination files embedded in config keep them.
var workflowRefNames = map[string]bool{
	"input":           true,
	"previous_result": true,
}

// ExpandEnv expands environment references in s.
// ${input} and ${previous_result} are left untouched.
func ExpandEnv(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if name := groups[1]; name != "" {
			if workflowRefNames[name] {
				return match
			}
			if val, ok := os.LookupEnv(name); ok && val != "" {
				return val
			}
			if groups[2] != "" {
				return groups[3]
			}
			return ""
		}
		return os.Getenv(groups[4])
	})
}

// expandEnvVars walks a decoded document and expands every string.
func expandEnvVars(input map[string]any) map[string]any {
	result := make(map[string]any, len(input))
	for k, v := range input {
		result[k] = expandValue(v)
	}
	return result
}

func expandValue(v any) any {
	switch val := v.(type) {
	case string:
		return ExpandEnv(val)
	case map[string]any:
		return expandEnvVars(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandValue(item)
		}
		return out
	default:
		return v
	}
}

// LoadDotEnv loads .env files without overwriting variables already set.
//
// Search order: explicit paths, ./.env.local, ./.env.
func LoadDotEnv(paths ...string) error {
	candidates := append([]string{}, paths...)
	candidates = append(candidates, ".env.local", ".env")
	for _, path := range candidates {
		if path == "" {
			continue
		}
		loadIfExists(path)
	}
	return nil
}

// LoadDotEnvForConfig additionally loads the .env next to configPath.
func LoadDotEnvForConfig(configPath string) error {
	if configPath == "" {
		return LoadDotEnv()
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return LoadDotEnv()
	}
	return LoadDotEnv(filepath.Join(filepath.Dir(abs), ".env"))
}

func loadIfExists(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		slog.Debug("Failed to load .env file", "path", path, "error", err)
		return
	}
	slog.Debug("Loaded environment from .env", "path", path)
}
