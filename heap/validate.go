package heap

import (
	"github.com/cockroachdb/errors"
	"github.com/viant/procmem/address"
)

// Validate checks reservation bookkeeping and returns the first inconsistency.
// Value cells inside a span are accepted since stored data overwrites markers.
func (h *Heap) Validate() error {
	h.mux.Lock()
	defer h.mux.Unlock()
	size := len(h.cells)
	for i, cell := range h.cells {
		if !cell.IsReserved() {
			continue
		}
		marker := cell.Reservation
		if marker.Length <= 0 {
			return errors.Newf("cell %s has non-positive reservation length %d", address.Encode(i), marker.Length)
		}
		if marker.Base < 0 || marker.Base > i || i >= marker.Base+marker.Length {
			return errors.Newf("cell %s lies outside its reservation {%s,%d}", address.Encode(i), address.Encode(marker.Base), marker.Length)
		}
		if marker.Base+marker.Length > size {
			return errors.Newf("reservation {%s,%d} exceeds heap size %d", address.Encode(marker.Base), marker.Length, size)
		}
		if i != marker.Base {
			continue
		}
		for j := i + 1; j < i+marker.Length; j++ {
			next := h.cells[j]
			if next.IsReserved() && next.Reservation != marker {
				return errors.Newf("reservation {%s,%d} overlaps reservation {%s,%d} at %s",
					address.Encode(marker.Base), marker.Length,
					address.Encode(next.Reservation.Base), next.Reservation.Length, address.Encode(j))
			}
		}
	}
	return nil
}
