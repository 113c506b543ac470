package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/vk/parablock/internal/model"
)

// StubOracle is a scripted synthesis oracle for tests. Responses are consumed
// in order; the last one repeats once the script runs out. A non-nil Err is
// returned from every call instead.
type StubOracle struct {
	mu sync.Mutex

	Responses []string
	Err       error

	Calls        int
	LastFeedback string
}

// Generate implements oracle.Oracle.
func (s *StubOracle) Generate(_ context.Context, _ *model.FunctionSpec, priorFeedback string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls++
	s.LastFeedback = priorFeedback

	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Responses) == 0 {
		return "", errors.New("stub oracle has no scripted responses")
	}

	idx := s.Calls - 1
	if idx >= len(s.Responses) {
		idx = len(s.Responses) - 1
	}
	return s.Responses[idx], nil
}

// CallCount returns the number of Generate calls, safely.
func (s *StubOracle) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls
}
