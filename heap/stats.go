package heap

import "github.com/viant/procmem/address"

// Stats summarises cell usage
type Stats struct {
	Total       int `json:"total"`
	Used        int `json:"used"`
	Free        int `json:"free"`
	Reserved    int `json:"reserved"`
	Values      int `json:"values"`
	LargestFree int `json:"largestFree"`
}

// Slot is one entry of a per-cell dump
type Slot struct {
	Addr string `json:"addr"`
	Data Cell   `json:"data"`
}

// Stats returns used/free counts and the largest free run
func (h *Heap) Stats() Stats {
	h.mux.Lock()
	defer h.mux.Unlock()
	ret := Stats{Total: len(h.cells)}
	run := 0
	for _, cell := range h.cells {
		switch cell.Kind {
		case KindFree:
			ret.Free++
			run++
			ret.LargestFree = max(ret.LargestFree, run)
			continue
		case KindReserved:
			ret.Reserved++
		case KindValue:
			ret.Values++
		}
		run = 0
	}
	ret.Used = ret.Reserved + ret.Values
	return ret
}

// QueryTotalSpace returns the heap extent in cells
func (h *Heap) QueryTotalSpace() int {
	return h.Size()
}

// QueryHeapSpace returns every cell with its canonical address
func (h *Heap) QueryHeapSpace() []Slot {
	h.mux.Lock()
	defer h.mux.Unlock()
	ret := make([]Slot, len(h.cells))
	for i, cell := range h.cells {
		ret[i] = Slot{Addr: address.Encode(i), Data: cell}
	}
	return ret
}
