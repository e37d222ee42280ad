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

package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidFormat(t *testing.T) {
	assert.True(t, ValidFormat(""))
	assert.True(t, ValidFormat(FormatSimple))
	assert.True(t, ValidFormat(FormatVerbose))
	assert.True(t, ValidFormat(FormatJSON))
	assert.False(t, ValidFormat("xml"))
}

func TestSimpleHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(slog.LevelInfo, &buf, FormatSimple, false))

	log.Debug("hidden")
	log.With("execution_id", "abc").Info("run started", "combination", "demo")

	assert.Equal(t, "INFO run started execution_id=abc combination=demo\n", buf.String())
}

func TestSimpleHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(slog.LevelInfo, &buf, FormatSimple, false))

	log.WithGroup("step").Warn("slow", "id", "s1")

	assert.Equal(t, "WARN slow step.id=s1\n", buf.String())
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(slog.LevelDebug, &buf, FormatJSON, false))

	log.Error("boom", "step", "s2")

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "ERROR", out["level"])
	assert.Equal(t, "boom", out["msg"])
	assert.Equal(t, "s2", out["step"])
}

func TestOpenLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentmenu.log")

	f, cleanup, err := OpenLogFile(path)
	require.NoError(t, err)
	defer cleanup()

	_, err = f.WriteString("line\n")
	require.NoError(t, err)
	assert.FileExists(t, path)
}
