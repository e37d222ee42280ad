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

// Package server exposes the agent directory, combinations and executions
// over a JSON HTTP API.
//
// Routes:
//
//	GET    /health
//	GET    /metrics
//	GET    /api/agents
//	GET    /api/agents/categories
//	GET    /api/agents/statistics
//	GET    /api/agents/health
//	GET    /api/agents/{name}
//	GET    /api/agents/{name}/validate
//	GET    /api/agents/{name}/settings
//	POST   /api/agents/{name}/settings
//	POST   /api/agents/{name}/launch
//	POST   /api/agents/{name}/stop
//	POST   /api/agents/{name}/restart
//	GET    /api/agents/{name}/status
//	GET    /api/combinations
//	POST   /api/combinations
//	GET    /api/combinations/{name}
//	DELETE /api/combinations/{name}
//	POST   /api/combinations/{name}/execute
//	GET    /api/executions
//	GET    /api/executions/{id}
//	POST   /api/executions/{id}/stop
package server
