// Package space groups the heaps and sheds owned by one process.
package space

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/viant/procmem/address"
	"github.com/viant/procmem/heap"
	"github.com/viant/procmem/internal/clock"
	"github.com/viant/procmem/internal/idgen"
	"github.com/viant/procmem/service/dao"
	"github.com/viant/procmem/service/dao/store"
	"github.com/viant/procmem/shed"
)

// Space is the memory of one process: heaps and sheds keyed by canonical id.
type Space struct {
	PID         string    `json:"pid"`
	CreatedAt   time.Time `json:"createdAt"`
	heaps       *store.MemoryStore[string, heap.Heap]
	sheds       *store.MemoryStore[string, shed.Shed]
	heapOptions []heap.Option
	shedOptions []shed.Option
	mux         sync.Mutex
}

// Option configures a Space
type Option func(s *Space)

// WithHeapOptions sets options applied to every heap created by the space
func WithHeapOptions(opts ...heap.Option) Option {
	return func(s *Space) {
		s.heapOptions = append(s.heapOptions, opts...)
	}
}

// WithShedOptions sets options applied to every shed created by the space
func WithShedOptions(opts ...shed.Option) Option {
	return func(s *Space) {
		s.shedOptions = append(s.shedOptions, opts...)
	}
}

// New creates an empty space for pid
func New(pid interface{}, opts ...Option) *Space {
	ret := &Space{
		PID:       address.ID(pid),
		CreatedAt: clock.Now(),
		heaps:     store.NewMemoryStore[string, heap.Heap](func(h *heap.Heap) string { return h.ID() }),
		sheds:     store.NewMemoryStore[string, shed.Shed](func(s *shed.Shed) string { return s.ID() }),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// EnsureHeap returns the heap with id, creating it with size cells if absent.
func (s *Space) EnsureHeap(ctx context.Context, id interface{}, size int) (*heap.Heap, error) {
	key := address.ID(id)
	s.mux.Lock()
	defer s.mux.Unlock()
	existing, err := s.heaps.Load(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, dao.ErrNotFound) {
		return nil, err
	}
	ret := heap.New(s.PID, size, key, s.heapOptions...)
	if err = s.heaps.Save(ctx, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// EnsureShed returns the shed with id, creating it with capacity if absent.
func (s *Space) EnsureShed(ctx context.Context, id interface{}, capacity int) (*shed.Shed, error) {
	key := address.ID(id)
	s.mux.Lock()
	defer s.mux.Unlock()
	existing, err := s.sheds.Load(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, dao.ErrNotFound) {
		return nil, err
	}
	ret := shed.New(s.PID, capacity, key, s.shedOptions...)
	if err = s.sheds.Save(ctx, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Heap returns the heap with id or dao.ErrNotFound
func (s *Space) Heap(ctx context.Context, id interface{}) (*heap.Heap, error) {
	return s.heaps.Load(ctx, address.ID(id))
}

// Shed returns the shed with id or dao.ErrNotFound
func (s *Space) Shed(ctx context.Context, id interface{}) (*shed.Shed, error) {
	return s.sheds.Load(ctx, address.ID(id))
}

// Heaps lists heaps ordered by id
func (s *Space) Heaps(ctx context.Context) ([]*heap.Heap, error) {
	return s.heaps.List(ctx)
}

// Sheds lists sheds ordered by id
func (s *Space) Sheds(ctx context.Context) ([]*shed.Shed, error) {
	return s.sheds.List(ctx)
}

// Release drops every heap's storage, clears every shed and forgets them.
func (s *Space) Release(ctx context.Context) error {
	heaps, err := s.heaps.List(ctx)
	if err != nil {
		return err
	}
	for _, h := range heaps {
		h.FreeAll()
		if err = s.heaps.Delete(ctx, h.ID()); err != nil {
			return err
		}
	}
	sheds, err := s.sheds.List(ctx)
	if err != nil {
		return err
	}
	for _, item := range sheds {
		item.ClearCode()
		item.ClearResourceLink()
		if err = s.sheds.Delete(ctx, item.ID()); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot is a serialisable image of a space
type Snapshot struct {
	ID      string        `json:"id"`
	PID     string        `json:"pid"`
	TakenAt time.Time     `json:"takenAt"`
	Heaps   []*heap.State `json:"heaps,omitempty"`
	Sheds   []*shed.State `json:"sheds,omitempty"`
}

// Snapshot captures every heap and shed of the space
func (s *Space) Snapshot(ctx context.Context) (*Snapshot, error) {
	ret := &Snapshot{ID: idgen.New(), PID: s.PID, TakenAt: clock.Now()}
	heaps, err := s.heaps.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, h := range heaps {
		ret.Heaps = append(ret.Heaps, h.Dump())
	}
	sheds, err := s.sheds.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range sheds {
		ret.Sheds = append(ret.Sheds, item.Dump())
	}
	return ret, nil
}

// Restore loads snapshot images into the space, creating missing heaps and
// sheds; existing ones are overwritten.
func (s *Space) Restore(ctx context.Context, snapshot *Snapshot) error {
	if snapshot == nil {
		return errors.New("space: nil snapshot")
	}
	if snapshot.PID != s.PID {
		return errors.Newf("space: snapshot %s belongs to pid %s, not %s", snapshot.ID, snapshot.PID, s.PID)
	}
	for _, state := range snapshot.Heaps {
		h, err := s.EnsureHeap(ctx, state.ID, 0)
		if err != nil {
			return err
		}
		if err = h.Restore(state); err != nil {
			return errors.Wrapf(err, "space: restore heap %s", state.ID)
		}
	}
	for _, state := range snapshot.Sheds {
		item, err := s.EnsureShed(ctx, state.ID, state.Capacity)
		if err != nil {
			return err
		}
		if err = item.Restore(state); err != nil {
			return errors.Wrapf(err, "space: restore shed %s", state.ID)
		}
	}
	return nil
}
