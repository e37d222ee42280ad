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

import (
	"encoding/json"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// InputKind tags the variant held by an Input.
type InputKind int

const (
	KindLiteral InputKind = iota
	KindInput
	KindPrevious
	KindStep
)

func (k InputKind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindInput:
		return "input"
	case KindPrevious:
		return "previous_result"
	case KindStep:
		return "step"
	default:
		return fmt.Sprintf("InputKind(%d)", int(k))
	}
}

// Reserved reference names.
const (
	RefNameInput    = "input"
	RefNamePrevious = "previous_result"
)

var refPattern = regexp.MustCompile(`^\$\{([A-Za-z0-9_.\-]+)\}$`)

// Input is a step input value: either a literal or a reference that is
// resolved against the run when the step is about to execute.
type Input struct {
	kind  InputKind
	value any
	step  string
}

func Literal(v any) Input { return Input{kind: KindLiteral, value: v} }

func InputRef() Input { return Input{kind: KindInput} }

func PreviousRef() Input { return Input{kind: KindPrevious} }

func StepRef(id string) Input { return Input{kind: KindStep, step: id} }

// ParseInput classifies a raw decoded value. Only a string that is exactly
// one ${name} token becomes a reference; everything else is a literal.
func ParseInput(raw any) Input {
	s, ok := raw.(string)
	if !ok {
		return Literal(raw)
	}
	m := refPattern.FindStringSubmatch(s)
	if m == nil {
		return Literal(s)
	}
	switch m[1] {
	case RefNameInput:
		return InputRef()
	case RefNamePrevious:
		return PreviousRef()
	default:
		return StepRef(m[1])
	}
}

func (in Input) Kind() InputKind { return in.kind }

// Value is the literal payload; nil for references.
func (in Input) Value() any { return in.value }

// StepID is the referenced step for KindStep inputs.
func (in Input) StepID() string { return in.step }

// Raw returns the textual form a definition file would carry.
func (in Input) Raw() any {
	switch in.kind {
	case KindInput:
		return "${" + RefNameInput + "}"
	case KindPrevious:
		return "${" + RefNamePrevious + "}"
	case KindStep:
		return "${" + in.step + "}"
	default:
		return in.value
	}
}

func (in Input) String() string {
	if s, ok := in.Raw().(string); ok {
		return s
	}
	return fmt.Sprintf("%v", in.value)
}

func (in Input) MarshalYAML() (any, error) {
	return in.Raw(), nil
}

func (in *Input) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*in = ParseInput(raw)
	return nil
}

func (in Input) MarshalJSON() ([]byte, error) {
	return json.Marshal(in.Raw())
}

func (in *Input) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*in = ParseInput(raw)
	return nil
}
