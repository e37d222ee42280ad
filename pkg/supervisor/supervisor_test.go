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

package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentmenu/pkg/config"
	"github.com/kadirpekel/agentmenu/pkg/directory"
)

type fixedSettings map[string]config.AgentSettings

func (f fixedSettings) Get(name string) config.AgentSettings {
	if s, ok := f[name]; ok {
		return s
	}
	return config.AgentSettings{Enabled: true}
}

// scriptAgents writes one shell script per agent and registers it.
func scriptAgents(t *testing.T, scripts map[string]string) *directory.Directory {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts required")
	}
	root := t.TempDir()
	d := directory.New()
	for name, body := range scripts {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "agent.sh"), []byte("#!/bin/sh\n"+body+"\n"), 0o755))
		require.NoError(t, d.Add(directory.AgentInfo{Name: name, Path: dir, EntryPoint: "agent.sh"}))
	}
	return d
}

func TestInterpreter(t *testing.T) {
	tests := []struct {
		entry string
		name  string
		args  []string
	}{
		{"main.py", "python3", []string{"main.py"}},
		{"index.js", "node", []string{"index.js"}},
		{"main.go", "go", []string{"run", "main.go"}},
		{"agent.sh", "./agent.sh", nil},
		{"/usr/local/bin/agent", "/usr/local/bin/agent", nil},
	}
	for _, tt := range tests {
		name, args := interpreter(tt.entry)
		assert.Equal(t, tt.name, name, tt.entry)
		assert.Equal(t, tt.args, args, tt.entry)
	}
}

func TestCommandErrors(t *testing.T) {
	d := directory.New()
	require.NoError(t, d.Add(directory.AgentInfo{Name: "no-entry"}))
	require.NoError(t, d.Add(directory.AgentInfo{Name: "off", EntryPoint: "main.py"}))
	s := New(d, fixedSettings{"off": {Enabled: false}})

	_, err := s.Command(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUnknownAgent)
	_, err = s.Command(context.Background(), "no-entry")
	assert.ErrorIs(t, err, ErrNoEntryPoint)
	_, err = s.Command(context.Background(), "off")
	assert.ErrorIs(t, err, ErrAgentDisabled)
}

func TestRunOnceEchoesAndInjectsEnvironment(t *testing.T) {
	d := scriptAgents(t, map[string]string{
		"echo":   "cat",
		"region": `printf '{"region":"%s"}' "$SEARCH_REGION"`,
		"fails":  "echo 'quota exceeded' >&2; exit 3",
	})
	s := New(d, fixedSettings{
		"region": {Enabled: true, Env: map[string]string{"SEARCH_REGION": "eu"}},
	})
	ctx := context.Background()

	out, err := s.RunOnce(ctx, "echo", []byte(`{"query":"hi"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"hi"}`, string(out))

	out, err = s.RunOnce(ctx, "region", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"region":"eu"}`, string(out))

	_, err = s.RunOnce(ctx, "fails", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestRunOnceCancellation(t *testing.T) {
	d := scriptAgents(t, map[string]string{"sleepy": "exec sleep 30"})
	s := New(d, nil, WithGracePeriod(200*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.RunOnce(ctx, "sleepy", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSpawnLifecycle(t *testing.T) {
	d := scriptAgents(t, map[string]string{"daemon": "exec sleep 30"})
	s := New(d, nil, WithGracePeriod(time.Second))
	ctx := context.Background()

	st, err := s.Spawn(ctx, "daemon")
	require.NoError(t, err)
	assert.True(t, st.Alive)
	assert.NotZero(t, st.PID)
	assert.True(t, s.IsAlive("daemon"))

	_, err = s.Spawn(ctx, "daemon")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	restarted, err := s.Restart(ctx, "daemon")
	require.NoError(t, err)
	assert.NotEqual(t, st.PID, restarted.PID)

	require.NoError(t, s.Terminate(ctx, "daemon"))
	assert.False(t, s.IsAlive("daemon"))
	final, ok := s.Status("daemon")
	require.True(t, ok)
	assert.False(t, final.Alive)
	assert.ErrorIs(t, s.Terminate(ctx, "daemon"), ErrNotRunning)
}

func TestTerminateKillsAfterGrace(t *testing.T) {
	d := scriptAgents(t, map[string]string{"stubborn": "trap '' TERM\nwhile true; do sleep 0.05; done"})
	s := New(d, nil, WithGracePeriod(200*time.Millisecond))
	ctx := context.Background()

	_, err := s.Spawn(ctx, "stubborn")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	require.NoError(t, s.Terminate(ctx, "stubborn"))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.False(t, s.IsAlive("stubborn"))
}

func TestMaxProcessesAndStopAll(t *testing.T) {
	d := scriptAgents(t, map[string]string{"a": "exec sleep 30", "b": "exec sleep 30"})
	s := New(d, nil, WithMaxProcesses(1), WithGracePeriod(time.Second))
	ctx := context.Background()

	_, err := s.Spawn(ctx, "a")
	require.NoError(t, err)
	_, err = s.Spawn(ctx, "b")
	assert.ErrorIs(t, err, ErrTooManyProcesses)

	require.NoError(t, s.StopAll(ctx))
	assert.False(t, s.IsAlive("a"))
	require.Len(t, s.List(), 1)
	assert.Equal(t, "a", s.List()[0].Agent)
}
