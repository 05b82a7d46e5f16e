package shed

import "github.com/cockroachdb/errors"

// State is a JSON friendly shed image
type State struct {
	PID       string                 `json:"pid"`
	ID        string                 `json:"id"`
	Capacity  int                    `json:"capacity"`
	StackSize int                    `json:"stackSize"`
	Code      []interface{}          `json:"code,omitempty"`
	Links     map[string]interface{} `json:"links,omitempty"`
}

// Dump captures the shed image
func (s *Shed) Dump() *State {
	s.mux.Lock()
	defer s.mux.Unlock()
	ret := &State{
		PID:       s.pid,
		ID:        s.id,
		Capacity:  s.capacity,
		StackSize: s.stackSize,
		Code:      append([]interface{}(nil), s.code...),
		Links:     make(map[string]interface{}, len(s.links)),
	}
	for name, value := range s.links {
		ret.Links[name] = value
	}
	return ret
}

// Restore replaces code and links with state and recomputes the stack size,
// since decoded values may measure differently from the originals.
func (s *Shed) Restore(state *State) error {
	if state == nil {
		return errors.New("shed: nil state")
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	s.code = append([]interface{}(nil), state.Code...)
	s.links = make(map[string]interface{}, len(state.Links))
	for name, value := range state.Links {
		s.links[name] = value
	}
	s.stackSize = s.recompute()
	return nil
}

// Validate reports a drift between the running stack size and the sum of the
// current item lengths.
func (s *Shed) Validate() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if expected := s.recompute(); expected != s.stackSize {
		return errors.Newf("shed %s: stack size %d, expected %d", s.id, s.stackSize, expected)
	}
	return nil
}
