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

// Package agentmenu catalogs independently written agent programs and
// chains them into multi-step combinations.
//
// A combination is a named workflow: an ordered list of steps, each naming
// an agent, an action and its inputs, run under one of three topologies.
// Sequential steps feed each result into the next. Parallel steps all see
// the run input and settle independently. Conditional steps run in order
// and are skipped when their conditions do not hold.
//
// Step inputs are literals or references:
//
//	${input}            the input the run was launched with
//	${previous_result}  the data flowing out of the preceding step
//	${research}         the stored result of the step with id "research"
//
// # Quick Start
//
// Describe your agents and start the API:
//
//	agents:
//	  directory: ./agents
//	combinations:
//	  directory: ./combinations
//
//	agentmenu serve --config agentmenu.yaml
//
// Launch a combination and poll it:
//
//	curl -XPOST localhost:8080/api/combinations/content-research-pipeline/execute -d '{"input":"Go generics"}'
//	curl localhost:8080/api/executions/<execution_id>
//
// Or run one to completion from the terminal:
//
//	agentmenu run content-research-pipeline --input "Go generics"
//
// # Packages
//
//   - pkg/workflow: steps, inputs, topologies, invokers and the executor
//   - pkg/combination: the combination registry and its file store
//   - pkg/runs: launching, status, stop and the live-run table
//   - pkg/execlog: execution records on disk or in SQL
//   - pkg/directory: agent discovery and metadata
//   - pkg/supervisor: agent processes
//   - pkg/server: the HTTP API
//   - pkg/config: configuration loading and providers
package agentmenu
