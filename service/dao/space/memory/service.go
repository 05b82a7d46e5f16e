package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/viant/procmem/service/dao"
	"github.com/viant/procmem/service/dao/criteria"
	"github.com/viant/procmem/space"
)

// Service implements an in-memory, thread-safe store of process spaces keyed
// by canonical pid.
type Service struct {
	spaces map[string]*space.Space
	mux    sync.RWMutex
}

var _ dao.Service[string, space.Space] = (*Service)(nil)

func (s *Service) Save(_ context.Context, aSpace *space.Space) error {
	if aSpace == nil {
		return dao.ErrNilEntity
	}
	if aSpace.PID == "" {
		return dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	s.spaces[aSpace.PID] = aSpace
	return nil
}

func (s *Service) Load(_ context.Context, pid string) (*space.Space, error) {
	if pid == "" {
		return nil, dao.ErrInvalidID
	}

	s.mux.RLock()
	aSpace, ok := s.spaces[pid]
	s.mux.RUnlock()

	if !ok {
		return nil, dao.ErrNotFound
	}
	return aSpace, nil
}

func (s *Service) Delete(_ context.Context, pid string) error {
	if pid == "" {
		return dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	if _, ok := s.spaces[pid]; !ok {
		return dao.ErrNotFound
	}
	delete(s.spaces, pid)
	return nil
}

// List returns spaces ordered by pid, optionally filtered by a "PID" parameter.
func (s *Service) List(_ context.Context, parameters ...*dao.Parameter) ([]*space.Space, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	out := make([]*space.Space, 0, len(s.spaces))
	for _, aSpace := range s.spaces {
		if !criteria.Match("PID", aSpace.PID, parameters) {
			continue
		}
		out = append(out, aSpace)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

func New() *Service {
	return &Service{spaces: map[string]*space.Space{}}
}
