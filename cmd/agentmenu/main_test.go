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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentmenu/pkg/config"
	"github.com/kadirpekel/agentmenu/pkg/workflow"
)

func TestResolveLogSettings(t *testing.T) {
	cfg := &config.LoggerConfig{Level: "warn", File: "cfg.log", Format: "json"}

	t.Run("defaults", func(t *testing.T) {
		t.Setenv(LogLevelEnvVar, "")
		t.Setenv(LogFileEnvVar, "")
		t.Setenv(LogFormatEnvVar, "")
		s := resolveLogSettings("", "", "", nil)
		assert.Equal(t, logSettings{level: DefaultLogLevel, format: DefaultLogFormat}, s)
	})

	t.Run("config over defaults", func(t *testing.T) {
		t.Setenv(LogLevelEnvVar, "")
		t.Setenv(LogFileEnvVar, "")
		t.Setenv(LogFormatEnvVar, "")
		s := resolveLogSettings("", "", "", cfg)
		assert.Equal(t, logSettings{level: "warn", file: "cfg.log", format: "json"}, s)
	})

	t.Run("env over config", func(t *testing.T) {
		t.Setenv(LogLevelEnvVar, "debug")
		t.Setenv(LogFileEnvVar, "")
		t.Setenv(LogFormatEnvVar, "verbose")
		s := resolveLogSettings("", "", "", cfg)
		assert.Equal(t, logSettings{level: "debug", file: "cfg.log", format: "verbose"}, s)
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv(LogLevelEnvVar, "debug")
		t.Setenv(LogFileEnvVar, "env.log")
		t.Setenv(LogFormatEnvVar, "verbose")
		s := resolveLogSettings("error", "", "simple", cfg)
		assert.Equal(t, logSettings{level: "error", file: "env.log", format: "simple"}, s)
	})
}

func TestOverridden(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	t.Setenv(LogFileEnvVar, "")
	t.Setenv(LogFormatEnvVar, "")
	assert.False(t, overridden("info", "", "json"))

	t.Setenv(LogFileEnvVar, "x.log")
	assert.True(t, overridden("info", "", "json"))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Combinations.Directory = filepath.Join(dir, "combinations")
	cfg.ExecutionLog.Directory = filepath.Join(dir, "logs")
	for _, name := range []string{"advanced-web-researcher", "foundational-rag-agent", "linkedin-x-blog-content-creator"} {
		cfg.Agents.Entries[name] = &config.AgentEntry{Description: "test agent"}
	}
	return cfg
}

func TestNewAppRunsPredefinedCombination(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	assert.Equal(t, 3, a.agents.Count())
	_, ok := a.combos.Lookup("content-research-pipeline")
	require.True(t, ok)
	_, ok = a.combos.Lookup("social-media-analyzer")
	assert.False(t, ok)

	// The predefined definition is persisted to the combinations directory.
	_, err = os.Stat(filepath.Join(cfg.Combinations.Directory, "content-research-pipeline.yaml"))
	require.NoError(t, err)

	id, err := a.runs.Launch(ctx, "content-research-pipeline", "Go generics")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rec, err := a.runs.Wait(waitCtx, id)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, rec.Status)
	assert.Equal(t, 3, rec.StepsCompleted)

	_, err = os.Stat(filepath.Join(cfg.ExecutionLog.Directory, id+".json"))
	assert.NoError(t, err)
}

func TestNewAppWithoutPredefined(t *testing.T) {
	cfg := testConfig(t)
	disabled := false
	cfg.Combinations.Predefined = &disabled

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.Zero(t, a.combos.Count())
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, loader, err := loadConfig(context.Background(), &CLI{ConfigProvider: "file"})
	require.NoError(t, err)
	assert.Nil(t, loader)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoadConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentmenu.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":9191\"\nexecutor:\n  max_concurrency: 2\n"), 0o644))

	cfg, loader, err := loadConfig(context.Background(), &CLI{ConfigProvider: "file", Config: path})
	require.NoError(t, err)
	require.NotNil(t, loader)
	defer loader.Close()

	assert.Equal(t, ":9191", cfg.Server.Address)
	assert.Equal(t, 2, cfg.Executor.MaxConcurrency)
}

func TestRunInput(t *testing.T) {
	plain := &RunCmd{Input: "hello"}
	v, err := plain.parseInput()
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	structured := &RunCmd{Input: `{"topic":"go"}`, JSON: true}
	v, err = structured.parseInput()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"topic": "go"}, v)

	_, err = (&RunCmd{Input: "{", JSON: true}).parseInput()
	assert.Error(t, err)
}
