package capability

import (
	"context"
	"sync"
)

// MockInvoker is a scripted Invoker for tests and local runs. Results and
// errors are queued per capability and consumed in order; the last script
// entry repeats once the queue drains.
type MockInvoker struct {
	mu      sync.Mutex
	scripts map[Name][]mockStep
	Calls   []Request
}

type mockStep struct {
	result *Result
	err    error
}

// NewMockInvoker creates an empty mock. Invoking an unscripted capability
// returns a RejectedError.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{scripts: make(map[Name][]mockStep)}
}

// Script queues a successful result for the capability.
func (m *MockInvoker) Script(name Name, result *Result) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[name] = append(m.scripts[name], mockStep{result: result})
	return m
}

// ScriptErr queues a failure for the capability.
func (m *MockInvoker) ScriptErr(name Name, err error) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[name] = append(m.scripts[name], mockStep{err: err})
	return m
}

// Invoke pops the next scripted step for the capability.
func (m *MockInvoker) Invoke(_ context.Context, req Request) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)

	steps := m.scripts[req.Capability]
	if len(steps) == 0 {
		return nil, &RejectedError{Reason: "unscripted capability " + string(req.Capability)}
	}
	step := steps[0]
	if len(steps) > 1 {
		m.scripts[req.Capability] = steps[1:]
	}
	if step.err != nil {
		return nil, step.err
	}
	return step.result, nil
}

// CallCount returns how many times the capability was invoked.
func (m *MockInvoker) CallCount(name Name) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Capability == name {
			n++
		}
	}
	return n
}
