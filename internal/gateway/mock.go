package gateway

import (
	"context"
	"errors"
	"sync"
)

// MockClient is a scripted in-memory client for local runs and tests.
// Responses are consumed in order; Fn, when set, overrides the queue.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Fn        func(req Request) (string, error)
	Calls     []Request
	Models    []string
}

func (m *MockClient) next(req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Fn != nil {
		return m.Fn(req)
	}
	if len(m.Responses) == 0 {
		return "", errors.New("mock: no scripted response left")
	}
	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return resp, nil
}

// CallCount returns how many calls the mock has served.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Complete returns the next scripted response.
func (m *MockClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.next(req)
}

// Stream replays the next scripted response as a short chunk sequence.
func (m *MockClient) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := m.next(req)
	if err != nil {
		return nil, err
	}

	ch := make(chan Chunk, 8)
	go func() {
		defer close(ch)
		// Split roughly in half so chunk-boundary handling is exercised.
		half := len(resp) / 2
		for _, part := range []string{resp[:half], resp[half:]} {
			if part == "" {
				continue
			}
			select {
			case ch <- Chunk{Text: part}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case ch <- Chunk{Done: true}:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

// ListModels returns the scripted model list.
func (m *MockClient) ListModels(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Models) == 0 {
		return []string{"mock-model"}, nil
	}
	out := make([]string, len(m.Models))
	copy(out, m.Models)
	return out, nil
}
