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

package workflow

import "log/slog"

// ResultLookup finds a completed step's result by id.
type ResultLookup func(stepID string) (any, bool)

// Scope is what references resolve against.
type Scope struct {
	// Input is the run's original input.
	Input any
	// Previous is the result of the step before this one, or the run
	// input for the first step and for every parallel step.
	Previous any
	Results  ResultLookup
}

// Resolve produces the concrete value of one input.
// A step reference with no stored result resolves to its own textual form.
func (s Scope) Resolve(in Input) any {
	switch in.Kind() {
	case KindInput:
		return s.Input
	case KindPrevious:
		return s.Previous
	case KindStep:
		if s.Results != nil {
			if v, ok := s.Results(in.StepID()); ok {
				return v
			}
		}
		slog.Debug("unresolved step reference kept literal", "step_ref", in.StepID())
		return in.Raw()
	default:
		return in.Value()
	}
}

// ResolveInputs resolves every input of a step. The result is never nil.
func (s Scope) ResolveInputs(inputs map[string]Input) map[string]any {
	out := make(map[string]any, len(inputs))
	for name, in := range inputs {
		out[name] = s.Resolve(in)
	}
	return out
}

func lookupMap(m map[string]any) ResultLookup {
	return func(id string) (any, bool) {
		v, ok := m[id]
		return v, ok
	}
}
