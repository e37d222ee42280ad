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

// Package directory holds the static metadata of every known agent.
package directory

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/kadirpekel/agentmenu/pkg/config"
	"github.com/kadirpekel/agentmenu/pkg/registry"
)

// Status values reported by Validate.
const (
	StatusDiscovered = "discovered"
	StatusReady      = "ready"
	StatusIncomplete = "incomplete"
)

// AgentInfo is the static description of one agent.
type AgentInfo struct {
	Name                string   `json:"name" yaml:"name"`
	Path                string   `json:"path,omitempty" yaml:"path,omitempty"`
	Category            string   `json:"category" yaml:"category"`
	Description         string   `json:"description,omitempty" yaml:"description,omitempty"`
	EntryPoint          string   `json:"entry_point,omitempty" yaml:"entry_point,omitempty"`
	RequiredCredentials []string `json:"required_credentials,omitempty" yaml:"required_credentials,omitempty"`
	Status              string   `json:"status" yaml:"status"`
}

// EntryPath is the entry point resolved against the agent path.
func (a *AgentInfo) EntryPath() string {
	if a.EntryPoint == "" || filepath.IsAbs(a.EntryPoint) {
		return a.EntryPoint
	}
	return filepath.Join(a.Path, a.EntryPoint)
}

func (a *AgentInfo) clone() *AgentInfo {
	c := *a
	c.RequiredCredentials = slices.Clone(a.RequiredCredentials)
	return &c
}

// Directory is a thread-safe name -> AgentInfo table.
type Directory struct {
	agents *registry.BaseRegistry[*AgentInfo]
}

func New() *Directory {
	return &Directory{agents: registry.NewBaseRegistry[*AgentInfo]()}
}

// FromConfig builds a directory from scanned manifests and inline entries.
// Inline entries replace manifests of the same name.
func FromConfig(cfg *config.AgentsConfig) (*Directory, error) {
	d := New()
	if cfg == nil {
		return d, nil
	}
	if cfg.Directory != "" {
		found, err := Discover(cfg.Directory)
		if err != nil {
			return nil, err
		}
		for _, info := range found {
			if err := d.Add(*info); err != nil {
				return nil, err
			}
		}
	}

	names := make([]string, 0, len(cfg.Entries))
	for name := range cfg.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e := cfg.Entries[name]
		if err := d.Add(AgentInfo{
			Name:                name,
			Path:                e.Path,
			Category:            e.Category,
			Description:         e.Description,
			EntryPoint:          e.EntryPoint,
			RequiredCredentials: e.RequiredCredentials,
		}); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Add inserts or replaces an agent, filling in category, description
// and status when absent.
func (d *Directory) Add(info AgentInfo) error {
	if strings.TrimSpace(info.Name) == "" {
		return fmt.Errorf("agent name cannot be empty")
	}
	if info.Category == "" {
		info.Category = InferCategory(info.Name)
	}
	if info.Description == "" {
		info.Description = defaultDescription(info.Name)
	}
	if info.Status == "" {
		info.Status = StatusDiscovered
	}
	return d.agents.Upsert(info.Name, info.clone())
}

func (d *Directory) Remove(name string) error {
	return d.agents.Remove(name)
}

// GetAgent returns a copy of the named agent.
func (d *Directory) GetAgent(name string) (*AgentInfo, bool) {
	a, ok := d.agents.Get(name)
	if !ok {
		return nil, false
	}
	return a.clone(), true
}

func (d *Directory) Has(name string) bool {
	_, ok := d.agents.Get(name)
	return ok
}

// AgentCategory satisfies workflow.CategoryLookup.
func (d *Directory) AgentCategory(name string) (string, bool) {
	a, ok := d.agents.Get(name)
	if !ok {
		return "", false
	}
	return a.Category, true
}

// Missing returns the names that are not in the directory, in input order
// and without duplicates.
func (d *Directory) Missing(names []string) []string {
	var missing []string
	for _, n := range names {
		if !d.Has(n) && !slices.Contains(missing, n) {
			missing = append(missing, n)
		}
	}
	return missing
}

// List returns every agent sorted by name.
func (d *Directory) List() []*AgentInfo {
	all := d.agents.List()
	out := make([]*AgentInfo, len(all))
	for i, a := range all {
		out[i] = a.clone()
	}
	return out
}

func (d *Directory) Count() int { return d.agents.Count() }

func (d *Directory) ByCategory(category string) []*AgentInfo {
	var out []*AgentInfo
	for _, a := range d.List() {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out
}

// Search matches the query against names, descriptions and categories.
func (d *Directory) Search(query string) []*AgentInfo {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return d.List()
	}
	var out []*AgentInfo
	for _, a := range d.List() {
		if strings.Contains(strings.ToLower(a.Name), q) ||
			strings.Contains(strings.ToLower(a.Description), q) ||
			strings.Contains(a.Category, q) {
			out = append(out, a)
		}
	}
	return out
}

// Categories groups agent names by category.
func (d *Directory) Categories() map[string][]string {
	out := make(map[string][]string)
	for _, a := range d.List() {
		out[a.Category] = append(out[a.Category], a.Name)
	}
	return out
}

// Statistics summarizes the directory.
type Statistics struct {
	TotalAgents         int            `json:"total_agents"`
	AgentsByCategory    map[string]int `json:"agents_by_category"`
	Categories          []string       `json:"categories"`
	CredentialsRequired []string       `json:"credentials_required"`
}

func (d *Directory) Statistics() Statistics {
	stats := Statistics{AgentsByCategory: make(map[string]int)}
	creds := make(map[string]bool)
	for _, a := range d.List() {
		stats.TotalAgents++
		stats.AgentsByCategory[a.Category]++
		for _, c := range a.RequiredCredentials {
			creds[c] = true
		}
	}
	for c := range stats.AgentsByCategory {
		stats.Categories = append(stats.Categories, c)
	}
	sort.Strings(stats.Categories)
	for c := range creds {
		stats.CredentialsRequired = append(stats.CredentialsRequired, c)
	}
	sort.Strings(stats.CredentialsRequired)
	return stats
}

// ValidationReport lists what keeps an agent from being launchable.
type ValidationReport struct {
	Agent              string   `json:"agent"`
	Valid              bool     `json:"valid"`
	MissingCredentials []string `json:"missing_credentials,omitempty"`
	Issues             []string `json:"issues,omitempty"`
}

// Validate checks the entry point on disk and the required credentials in
// the environment, and records the outcome in the agent's status.
func (d *Directory) Validate(name string) (ValidationReport, error) {
	a, ok := d.agents.Get(name)
	if !ok {
		return ValidationReport{}, fmt.Errorf("agent %s: %w", name, registry.ErrNotFound)
	}

	report := ValidationReport{Agent: name}
	if a.EntryPoint == "" {
		report.Issues = append(report.Issues, "no entry point declared")
	} else if _, err := os.Stat(a.EntryPath()); err != nil {
		report.Issues = append(report.Issues, fmt.Sprintf("entry point %s not found", a.EntryPath()))
	}
	for _, c := range a.RequiredCredentials {
		if v, set := os.LookupEnv(c); !set || v == "" {
			report.MissingCredentials = append(report.MissingCredentials, c)
		}
	}
	if len(report.MissingCredentials) > 0 {
		report.Issues = append(report.Issues, "missing credentials: "+strings.Join(report.MissingCredentials, ", "))
	}
	report.Valid = len(report.Issues) == 0

	updated := a.clone()
	updated.Status = StatusIncomplete
	if report.Valid {
		updated.Status = StatusReady
	}
	_ = d.agents.Upsert(name, updated)
	return report, nil
}

func defaultDescription(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return "AI Agent: " + strings.Join(words, " ")
}
