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
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDefinition = errors.New("invalid combination definition")
	ErrMissingAgents     = errors.New("missing agents")
	ErrNotFound          = errors.New("combination not found")
)

// DefinitionError rejects a combination before it is registered.
type DefinitionError struct {
	Combination string
	Reason      string
	Err         error
}

func (e *DefinitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("combination %s: %s: %v", e.Combination, e.Reason, e.Err)
	}
	return fmt.Sprintf("combination %s: %s", e.Combination, e.Reason)
}

func (e *DefinitionError) Unwrap() error { return e.Err }

func (e *DefinitionError) Is(target error) bool { return target == ErrInvalidDefinition }

// MissingAgentsError names the agents a definition referenced that the
// directory does not know.
type MissingAgentsError struct {
	Combination string
	Missing     []string
}

func (e *MissingAgentsError) Error() string {
	return fmt.Sprintf("cannot create combination %s: missing agents %s", e.Combination, strings.Join(e.Missing, ", "))
}

func (e *MissingAgentsError) Is(target error) bool {
	return target == ErrMissingAgents || target == ErrInvalidDefinition
}
