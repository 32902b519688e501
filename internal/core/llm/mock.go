package llm

import (
	"context"
	"sync"
)

// MockClient is a scripted Client for tests. Responses are consumed in
// order; when the script is exhausted the last element repeats.
type MockClient struct {
	mu        sync.Mutex
	Responses []*Response
	Errs      []error
	Calls     []Request
}

// CompleteJSON returns the next scripted response or error.
func (m *MockClient) CompleteJSON(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.Calls)
	m.Calls = append(m.Calls, req)

	if len(m.Errs) > 0 {
		errIdx := idx
		if errIdx >= len(m.Errs) {
			errIdx = len(m.Errs) - 1
		}

		if err := m.Errs[errIdx]; err != nil {
			return nil, err
		}
	}

	if len(m.Responses) == 0 {
		return &Response{Payload: map[string]any{}}, nil
	}

	respIdx := idx
	if respIdx >= len(m.Responses) {
		respIdx = len(m.Responses) - 1
	}

	return m.Responses[respIdx], nil
}

// CallCount returns how many calls the mock has served.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}

var _ Client = (*MockClient)(nil)
