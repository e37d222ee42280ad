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

package runs

import (
	"context"
	"sort"
	"sync"

	"github.com/kadirpekel/agentmenu/pkg/workflow"
)

// Execution is one live run: its context plus the means to cancel and
// await it.
type Execution struct {
	Context *workflow.ExecutionContext
	cancel  context.CancelFunc
	done    chan struct{}
}

// Done is closed when the run's goroutine exits.
func (e *Execution) Done() <-chan struct{} { return e.done }

// RunTable tracks live executions by id. Implementations must be safe for
// concurrent use.
type RunTable interface {
	Insert(e *Execution)
	Remove(id string) (*Execution, bool)
	Get(id string) (*Execution, bool)
	// List returns executions ordered by start time.
	List() []*Execution
	Len() int
}

type memoryTable struct {
	mu   sync.Mutex
	runs map[string]*Execution
}

// NewMemoryTable returns a mutex-guarded RunTable.
func NewMemoryTable() RunTable {
	return &memoryTable{runs: make(map[string]*Execution)}
}

func (t *memoryTable) Insert(e *Execution) {
	t.mu.Lock()
	t.runs[e.Context.ExecutionID()] = e
	t.mu.Unlock()
}

func (t *memoryTable) Remove(id string) (*Execution, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.runs[id]
	delete(t.runs, id)
	return e, ok
}

func (t *memoryTable) Get(id string) (*Execution, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.runs[id]
	return e, ok
}

func (t *memoryTable) List() []*Execution {
	t.mu.Lock()
	out := make([]*Execution, 0, len(t.runs))
	for _, e := range t.runs {
		out = append(out, e)
	}
	t.mu.Unlock()

	starts := make(map[*Execution]workflow.Record, len(out))
	for _, e := range out {
		starts[e] = e.Context.Snapshot()
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := starts[out[i]], starts[out[j]]
		if a.StartTime.Equal(b.StartTime) {
			return a.ExecutionID < b.ExecutionID
		}
		return a.StartTime.Before(b.StartTime)
	})
	return out
}

func (t *memoryTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.runs)
}
