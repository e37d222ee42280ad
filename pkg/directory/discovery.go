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

package directory

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestNames are the file names recognized as agent manifests.
var ManifestNames = []string{"agent.yaml", "agent.yml"}

// Manifest is the on-disk description an agent directory may carry.
type Manifest struct {
	Name                string   `yaml:"name"`
	Category            string   `yaml:"category"`
	Description         string   `yaml:"description"`
	EntryPoint          string   `yaml:"entry_point"`
	RequiredCredentials []string `yaml:"required_credentials"`
}

var skipDirs = map[string]bool{
	"__pycache__":  true,
	"node_modules": true,
	"venv":         true,
	"env":          true,
}

var entryExtensions = []string{".py", ".js", ".go"}

var entryHints = []string{"main", "app", "agent", "run"}

// Discover scans the immediate subdirectories of root. A subdirectory is an
// agent when it carries a manifest, an entry point candidate, or a README.
// Unreadable manifests are logged and skipped.
func Discover(root string) ([]*AgentInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent directory '%s': %w", root, err)
	}

	var found []*AgentInfo
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") || skipDirs[name] {
			continue
		}
		dir := filepath.Join(root, name)
		info, err := inspect(dir)
		if err != nil {
			slog.Warn("skipping agent directory", "path", dir, "error", err)
			continue
		}
		if info != nil {
			found = append(found, info)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found, nil
}

func inspect(dir string) (*AgentInfo, error) {
	for _, mf := range ManifestNames {
		path := filepath.Join(dir, mf)
		if _, err := os.Stat(path); err == nil {
			return loadManifest(dir, path)
		}
	}

	entry := findEntryPoint(dir)
	readme := findReadme(dir)
	if entry == "" && readme == "" {
		return nil, nil
	}
	info := &AgentInfo{
		Name:       filepath.Base(dir),
		Path:       dir,
		EntryPoint: entry,
	}
	if readme != "" {
		info.Description = describeFromReadme(readme)
	}
	return info, nil
}

func loadManifest(dir, path string) (*AgentInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Name == "" {
		m.Name = filepath.Base(dir)
	}
	if m.EntryPoint == "" {
		m.EntryPoint = findEntryPoint(dir)
	}
	if m.Description == "" {
		if readme := findReadme(dir); readme != "" {
			m.Description = describeFromReadme(readme)
		}
	}
	return &AgentInfo{
		Name:                m.Name,
		Path:                dir,
		Category:            m.Category,
		Description:         m.Description,
		EntryPoint:          m.EntryPoint,
		RequiredCredentials: m.RequiredCredentials,
	}, nil
}

// findEntryPoint prefers a source file whose name hints at a main program,
// then falls back to the first source file.
func findEntryPoint(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var first string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if !slices.Contains(entryExtensions, ext) || strings.HasSuffix(name, "_test.go") {
			continue
		}
		if first == "" {
			first = name
		}
		stem := strings.ToLower(strings.TrimSuffix(name, ext))
		for _, hint := range entryHints {
			if strings.Contains(stem, hint) {
				return name
			}
		}
	}
	return first
}

func findReadme(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(strings.ToLower(e.Name()), "readme") {
			return filepath.Join(dir, e.Name())
		}
	}
	return ""
}

// describeFromReadme returns the first prose line longer than 20
// characters, or the first heading when there is none.
func describeFromReadme(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	var heading string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") {
			if heading == "" {
				heading = strings.TrimSpace(strings.TrimLeft(line, "#"))
			}
			continue
		}
		if len(line) > 20 {
			if len(line) > 200 {
				return line[:200] + "..."
			}
			return line
		}
	}
	return heading
}
