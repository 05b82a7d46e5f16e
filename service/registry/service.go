package registry

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/viant/procmem/address"
	"github.com/viant/procmem/heap"
	"github.com/viant/procmem/service/dao"
	smemory "github.com/viant/procmem/service/dao/space/memory"
	"github.com/viant/procmem/shed"
	"github.com/viant/procmem/space"
)

// ErrMemoryNotAllocated indicates a lookup for a process, heap or shed that
// was never allocated or has been released.
var ErrMemoryNotAllocated = errors.New("registry: memory not allocated")

// Registry is the process-memory lookup consumed by the facade
type Registry interface {
	AllocateMemory(ctx context.Context, pid interface{}, heapSize, shedSize int, heapID, shedID interface{}) (*space.Space, error)
	Lookup(ctx context.Context, pid, heapID, shedID interface{}) (*heap.Heap, *shed.Shed, error)
	Release(ctx context.Context, pid interface{}) error
	Space(ctx context.Context, pid interface{}) (*space.Space, error)
}

// Service is the default Registry
type Service struct {
	spaceDAO     dao.Service[string, space.Space]
	spaceOptions []space.Option
	mux          sync.Mutex
}

var _ Registry = (*Service)(nil)

// Option configures the registry
type Option func(s *Service)

// WithSpaceDAO sets the space store
func WithSpaceDAO(spaceDAO dao.Service[string, space.Space]) Option {
	return func(s *Service) {
		s.spaceDAO = spaceDAO
	}
}

// WithSpaceOptions sets options applied to every new space
func WithSpaceOptions(opts ...space.Option) Option {
	return func(s *Service) {
		s.spaceOptions = append(s.spaceOptions, opts...)
	}
}

// New creates a registry; the default store is in memory.
func New(opts ...Option) *Service {
	ret := &Service{}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.spaceDAO == nil {
		ret.spaceDAO = smemory.New()
	}
	return ret
}

// AllocateMemory returns the process space, creating it together with the
// heap and shed identified by heapID and shedID when missing. Existing heaps
// and sheds keep their size and content.
func (s *Service) AllocateMemory(ctx context.Context, pid interface{}, heapSize, shedSize int, heapID, shedID interface{}) (*space.Space, error) {
	aSpace, err := s.ensureSpace(ctx, pid)
	if err != nil {
		return nil, err
	}
	if _, err = aSpace.EnsureHeap(ctx, heapID, heapSize); err != nil {
		return nil, errors.Wrapf(err, "registry: allocate heap %v for pid %s", heapID, aSpace.PID)
	}
	if _, err = aSpace.EnsureShed(ctx, shedID, shedSize); err != nil {
		return nil, errors.Wrapf(err, "registry: allocate shed %v for pid %s", shedID, aSpace.PID)
	}
	return aSpace, nil
}

// Lookup returns the heap and shed of pid
func (s *Service) Lookup(ctx context.Context, pid, heapID, shedID interface{}) (*heap.Heap, *shed.Shed, error) {
	aSpace, err := s.Space(ctx, pid)
	if err != nil {
		return nil, nil, err
	}
	aHeap, err := aSpace.Heap(ctx, heapID)
	if err != nil {
		return nil, nil, s.notAllocated(err, "heap %v of pid %s", heapID, aSpace.PID)
	}
	aShed, err := aSpace.Shed(ctx, shedID)
	if err != nil {
		return nil, nil, s.notAllocated(err, "shed %v of pid %s", shedID, aSpace.PID)
	}
	return aHeap, aShed, nil
}

// Space returns the space of pid
func (s *Service) Space(ctx context.Context, pid interface{}) (*space.Space, error) {
	key := address.ID(pid)
	aSpace, err := s.spaceDAO.Load(ctx, key)
	if err != nil {
		return nil, s.notAllocated(err, "pid %s", key)
	}
	return aSpace, nil
}

// Release frees every heap and shed of pid and forgets the process. Releasing
// an unknown pid is not an error.
func (s *Service) Release(ctx context.Context, pid interface{}) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	key := address.ID(pid)
	aSpace, err := s.spaceDAO.Load(ctx, key)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil
		}
		return err
	}
	if err = aSpace.Release(ctx); err != nil {
		return errors.Wrapf(err, "registry: release pid %s", key)
	}
	if err = s.spaceDAO.Delete(ctx, key); err != nil && !errors.Is(err, dao.ErrNotFound) {
		return err
	}
	return nil
}

// List returns all allocated spaces
func (s *Service) List(ctx context.Context) ([]*space.Space, error) {
	return s.spaceDAO.List(ctx)
}

func (s *Service) ensureSpace(ctx context.Context, pid interface{}) (*space.Space, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	key := address.ID(pid)
	aSpace, err := s.spaceDAO.Load(ctx, key)
	if err == nil {
		return aSpace, nil
	}
	if !errors.Is(err, dao.ErrNotFound) {
		return nil, err
	}
	aSpace = space.New(pid, s.spaceOptions...)
	if err = s.spaceDAO.Save(ctx, aSpace); err != nil {
		return nil, errors.Wrapf(err, "registry: save space %s", key)
	}
	return aSpace, nil
}

func (s *Service) notAllocated(err error, format string, args ...interface{}) error {
	if errors.Is(err, dao.ErrNotFound) {
		return errors.Wrapf(ErrMemoryNotAllocated, format, args...)
	}
	return err
}
