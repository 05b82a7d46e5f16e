package heap

import (
	"github.com/cockroachdb/errors"
	"github.com/viant/procmem/address"
)

// State is a JSON friendly heap image holding only non-free cells.
type State struct {
	PID   string `json:"pid"`
	ID    string `json:"id"`
	Size  int    `json:"size"`
	Cells []Slot `json:"cells,omitempty"`
}

// Dump captures the heap image
func (h *Heap) Dump() *State {
	h.mux.Lock()
	defer h.mux.Unlock()
	ret := &State{PID: h.pid, ID: h.id, Size: len(h.cells)}
	for i, cell := range h.cells {
		if cell.IsFree() {
			continue
		}
		ret.Cells = append(ret.Cells, Slot{Addr: address.Encode(i), Data: cell})
	}
	return ret
}

// Restore replaces the heap content with state; ids are left untouched.
func (h *Heap) Restore(state *State) error {
	if state == nil {
		return errors.New("heap: nil state")
	}
	if state.Size < 0 {
		return errors.Newf("heap: invalid state size %d", state.Size)
	}
	cells := make([]Cell, state.Size)
	for _, slot := range state.Cells {
		index, err := address.Parse(slot.Addr)
		if err != nil {
			return errors.Wrapf(err, "heap: invalid slot address %q", slot.Addr)
		}
		if index >= state.Size {
			return errors.Wrapf(ErrAddressOutOfRange, "slot %s, size %d", slot.Addr, state.Size)
		}
		cells[index] = slot.Data
	}
	h.mux.Lock()
	h.cells = cells
	h.mux.Unlock()
	return nil
}
