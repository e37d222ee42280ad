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

package combination

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kadirpekel/agentmenu/pkg/workflow"
)

type definition struct {
	name     string
	agents   []string
	workflow workflow.Workflow
	meta     Metadata
}

func predefined() []definition {
	return []definition{
		{
			name:   "content-research-pipeline",
			agents: []string{"advanced-web-researcher", "foundational-rag-agent", "linkedin-x-blog-content-creator"},
			meta:   Metadata{Description: "Research topic, gather knowledge, and create content"},
			workflow: workflow.Workflow{
				Type: workflow.TopologySequential,
				Steps: []workflow.Step{
					{
						ID: "research", Agent: "advanced-web-researcher", Action: "search",
						Description:    "Research the topic on the web",
						Inputs:         map[string]workflow.Input{"query": workflow.InputRef()},
						TimeoutSeconds: 300,
					},
					{
						ID: "knowledge", Agent: "foundational-rag-agent", Action: "retrieve",
						Description: "Retrieve relevant knowledge",
						Inputs: map[string]workflow.Input{
							"query":       workflow.InputRef(),
							"web_results": workflow.StepRef("research"),
						},
						TimeoutSeconds: 200,
					},
					{
						ID: "content", Agent: "linkedin-x-blog-content-creator", Action: "create",
						Description: "Create professional content",
						Inputs: map[string]workflow.Input{
							"topic":     workflow.InputRef(),
							"research":  workflow.StepRef("research"),
							"knowledge": workflow.StepRef("knowledge"),
						},
						TimeoutSeconds: 400,
					},
				},
			},
		},
		{
			name:   "social-media-analyzer",
			agents: []string{"ask-reddit-agent", "youtube-summary-agent", "tweet-generator-agent"},
			meta:   Metadata{Description: "Analyze social media trends and create content"},
			workflow: workflow.Workflow{
				Type: workflow.TopologyParallel,
				Steps: []workflow.Step{
					{
						ID: "reddit_analysis", Agent: "ask-reddit-agent", Action: "analyze",
						Description:    "Analyze Reddit discussions",
						Inputs:         map[string]workflow.Input{"query": workflow.InputRef()},
						TimeoutSeconds: 300,
					},
					{
						ID: "youtube_analysis", Agent: "youtube-summary-agent", Action: "analyze",
						Description:    "Analyze YouTube content",
						Inputs:         map[string]workflow.Input{"query": workflow.InputRef()},
						TimeoutSeconds: 300,
					},
				},
			},
		},
		{
			name:   "business-intelligence-suite",
			agents: []string{"small-business-researcher", "advanced-web-researcher", "genericsuite-app-maker-agent"},
			meta:   Metadata{Description: "Comprehensive business research and analysis"},
			workflow: workflow.Workflow{
				Type: workflow.TopologySequential,
				Steps: []workflow.Step{
					{
						ID: "market_research", Agent: "small-business-researcher", Action: "research",
						Description:    "Research business market",
						Inputs:         map[string]workflow.Input{"domain": workflow.InputRef()},
						TimeoutSeconds: 400,
					},
					{
						ID: "competitive_analysis", Agent: "advanced-web-researcher", Action: "search",
						Description:    "Analyze competitors",
						Inputs:         map[string]workflow.Input{"query": workflow.Literal("${input} competitors analysis")},
						TimeoutSeconds: 300,
					},
					{
						ID: "business_plan", Agent: "genericsuite-app-maker-agent", Action: "generate",
						Description: "Generate business documentation",
						Inputs: map[string]workflow.Input{
							"market_data":      workflow.StepRef("market_research"),
							"competitive_data": workflow.StepRef("competitive_analysis"),
						},
						TimeoutSeconds: 500,
					},
				},
			},
		},
	}
}

// PredefinedNames lists the built-in combinations.
func PredefinedNames() []string {
	defs := predefined()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.name
	}
	return names
}

// LoadPredefined defines each built-in combination whose agents are all
// known, and returns the names it installed. A combination already in the
// registry under the same name is kept.
func (r *Registry) LoadPredefined(ctx context.Context) ([]string, error) {
	var installed []string
	for _, def := range predefined() {
		if _, exists := r.combos.Get(def.name); exists {
			continue
		}
		wf := def.workflow
		_, err := r.Define(ctx, def.name, def.agents, &wf, def.meta)
		if errors.Is(err, ErrMissingAgents) {
			slog.Debug("predefined combination unavailable", "combination", def.name, "error", err)
			continue
		}
		if err != nil {
			return installed, err
		}
		installed = append(installed, def.name)
	}
	return installed, nil
}
