package shed

import (
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/viant/procmem/address"
)

// StartAddress is the base the code offset is measured from.
const StartAddress = 0

// Shed holds the code area and resource links of one process.
type Shed struct {
	pid       string
	id        string
	capacity  int
	code      []interface{}
	links     map[string]interface{}
	stackSize int
	logger    *slog.Logger
	mux       sync.Mutex
}

// Option configures a Shed
type Option func(s *Shed)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Shed) {
		s.logger = logger
	}
}

// New creates an empty shed. capacity is nominal and never enforced.
func New(pid interface{}, capacity int, id interface{}, opts ...Option) *Shed {
	ret := &Shed{
		pid:      address.ID(pid),
		id:       address.ID(id),
		capacity: capacity,
		links:    make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.logger == nil {
		ret.logger = slog.Default()
	}
	return ret
}

func (s *Shed) PID() string { return s.pid }

func (s *Shed) ID() string { return s.id }

func (s *Shed) Capacity() int { return s.capacity }

// StackSize returns the accounted size of code items and link values.
func (s *Shed) StackSize() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.stackSize
}

// WriteCode appends item to the code area
func (s *Shed) WriteCode(item interface{}) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.code = append(s.code, item)
	s.adjust(CodeLength(item))
}

// ReadCode returns the code item at index
func (s *Shed) ReadCode(index int) (interface{}, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if !s.inCode(index, "read") {
		return nil, false
	}
	return s.code[index], true
}

// DeleteCode removes the code item at index, shifting later items down.
func (s *Shed) DeleteCode(index int) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	if !s.inCode(index, "delete") {
		return false
	}
	item := s.code[index]
	s.code = append(s.code[:index], s.code[index+1:]...)
	s.adjust(-CodeLength(item))
	return true
}

// ClearCode empties the code area
func (s *Shed) ClearCode() {
	s.mux.Lock()
	defer s.mux.Unlock()
	total := 0
	for _, item := range s.code {
		total += CodeLength(item)
	}
	s.code = nil
	s.adjust(-total)
}

// CodeLen returns the number of code items
func (s *Shed) CodeLen() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return len(s.code)
}

// QueryCodeOffset returns len(code) - StartAddress as a hex address
func (s *Shed) QueryCodeOffset() string {
	s.mux.Lock()
	defer s.mux.Unlock()
	return address.Encode(len(s.code) - StartAddress)
}

// WriteResourceLink sets name to value, replacing the accounted length of any
// previous value.
func (s *Shed) WriteResourceLink(name string, value interface{}) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if previous, ok := s.links[name]; ok {
		s.adjust(-s.linkLength(name, previous))
	}
	s.links[name] = value
	s.adjust(s.linkLength(name, value))
}

// ReadResourceLink returns the value linked under name
func (s *Shed) ReadResourceLink(name string) (interface{}, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	value, ok := s.links[name]
	return value, ok
}

// DeleteResourceLink removes name; it returns false when name is absent.
func (s *Shed) DeleteResourceLink(name string) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	value, ok := s.links[name]
	if !ok {
		s.logger.Debug("shed link delete skipped", "pid", s.pid, "shed", s.id, "name", name, "error", ErrResourceNotFound)
		return false
	}
	delete(s.links, name)
	s.adjust(-s.linkLength(name, value))
	return true
}

// ClearResourceLink removes all links
func (s *Shed) ClearResourceLink() {
	s.mux.Lock()
	defer s.mux.Unlock()
	total := 0
	for name, value := range s.links {
		total += s.linkLength(name, value)
	}
	s.links = make(map[string]interface{})
	s.adjust(-total)
}

// ResourceLinks returns the sorted link names
func (s *Shed) ResourceLinks() []string {
	s.mux.Lock()
	defer s.mux.Unlock()
	ret := make([]string, 0, len(s.links))
	for name := range s.links {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// Recompute resets the stack size to the sum of current item lengths.
func (s *Shed) Recompute() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.stackSize = s.recompute()
	return s.stackSize
}

func (s *Shed) recompute() int {
	total := 0
	for _, item := range s.code {
		total += CodeLength(item)
	}
	for name, value := range s.links {
		total += s.linkLength(name, value)
	}
	return total
}

// adjust applies delta; a total that underflows or overflows is replaced by a
// full recomputation.
func (s *Shed) adjust(delta int) {
	previous := s.stackSize
	next := previous + delta
	overflow := (delta > 0 && next < previous) || (delta < 0 && next > previous)
	if next >= 0 && !overflow {
		s.stackSize = next
		return
	}
	recomputed := s.recompute()
	if recomputed < 0 {
		recomputed = math.MaxInt
	}
	s.logger.Warn("shed stack size corrected", "pid", s.pid, "shed", s.id, "previous", previous, "delta", delta, "recomputed", recomputed)
	s.stackSize = recomputed
}

func (s *Shed) linkLength(name string, value interface{}) int {
	n, err := LinkLength(value)
	if err != nil {
		s.logger.Warn("shed link value not serialisable", "pid", s.pid, "shed", s.id, "name", name, "error", err)
		return 0
	}
	return n
}

func (s *Shed) inCode(index int, op string) bool {
	if index < 0 || index >= len(s.code) {
		s.logger.Warn("shed code "+op+" rejected", "pid", s.pid, "shed", s.id, "index", index, "length", len(s.code), "error", ErrCodeOutOfRange)
		return false
	}
	return true
}
