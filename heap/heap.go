package heap

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/viant/procmem/address"
)

// Heap is a growable array of cells with first-fit contiguous allocation.
type Heap struct {
	pid    string
	id     string
	cells  []Cell
	codec  *address.Codec
	logger *slog.Logger
	mux    sync.Mutex
}

// Option configures a Heap
type Option func(h *Heap)

// WithCodec sets the address codec; the default codec is strict.
func WithCodec(codec *address.Codec) Option {
	return func(h *Heap) {
		h.codec = codec
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Heap) {
		h.logger = logger
	}
}

// New creates a heap of size free cells owned by pid. pid and id are stored
// in canonical hex form when they parse as addresses.
func New(pid interface{}, size int, id interface{}, opts ...Option) *Heap {
	ret := &Heap{}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.codec == nil {
		ret.codec = address.New()
	}
	if ret.logger == nil {
		ret.logger = slog.Default()
	}
	ret.pid = address.ID(pid)
	ret.id = address.ID(id)
	if size < 0 {
		ret.logger.Warn("negative heap size, using 0", "pid", ret.pid, "heap", ret.id, "size", size)
		size = 0
	}
	ret.cells = make([]Cell, size)
	return ret
}

// PID returns the canonical owner id
func (h *Heap) PID() string {
	return h.pid
}

// ID returns the canonical heap id
func (h *Heap) ID() string {
	return h.id
}

// Size returns the current number of cells
func (h *Heap) Size() int {
	h.mux.Lock()
	defer h.mux.Unlock()
	return len(h.cells)
}

// WriteData stores value in the cell at addr.
func (h *Heap) WriteData(addr interface{}, value interface{}) bool {
	h.mux.Lock()
	defer h.mux.Unlock()
	index, ok := h.locate(addr, "write")
	if !ok {
		return false
	}
	h.cells[index] = ValueCell(value)
	return true
}

// ReadData returns the cell at addr.
func (h *Heap) ReadData(addr interface{}) (Cell, bool) {
	h.mux.Lock()
	defer h.mux.Unlock()
	index, ok := h.locate(addr, "read")
	if !ok {
		return Cell{}, false
	}
	return h.cells[index], true
}

// ReadDataRange returns a copy of the cells in [addr, min(addr+length, size)).
func (h *Heap) ReadDataRange(addr interface{}, length int) []Cell {
	h.mux.Lock()
	defer h.mux.Unlock()
	if length <= 0 {
		h.logger.Warn("heap range read rejected", "pid", h.pid, "heap", h.id, "length", length, "error", ErrInvalidLength)
		return []Cell{}
	}
	index, ok := h.locate(addr, "range read")
	if !ok {
		return []Cell{}
	}
	end := clip(index, length, len(h.cells))
	ret := make([]Cell, end-index)
	copy(ret, h.cells[index:end])
	return ret
}

// ReadString reads consecutive characters starting at addr until a Free
// cell, a reservation marker, a non-character value, the end of the heap or
// maxLength characters (when maxLength > 0). The boolean is false only when
// addr is out of range; an in-range start holding no character yields "".
func (h *Heap) ReadString(addr interface{}, maxLength int) (string, bool) {
	h.mux.Lock()
	defer h.mux.Unlock()
	index, ok := h.locate(addr, "string read")
	if !ok {
		return "", false
	}
	return h.readString(index, maxLength), true
}

func (h *Heap) readString(index, maxLength int) string {
	var builder strings.Builder
	count := 0
	for i := index; i < len(h.cells); i++ {
		if maxLength > 0 && count >= maxLength {
			break
		}
		r, ok := h.cells[i].Char()
		if !ok {
			break
		}
		builder.WriteRune(r)
		count++
	}
	return builder.String()
}

// DeleteData frees the cells in [addr, end); end defaults to addr+1 and is
// clipped to the heap size.
func (h *Heap) DeleteData(addr interface{}, end ...interface{}) bool {
	h.mux.Lock()
	defer h.mux.Unlock()
	return h.deleteData(addr, end...)
}

func (h *Heap) deleteData(addr interface{}, end ...interface{}) bool {
	index, ok := h.locate(addr, "delete")
	if !ok {
		return false
	}
	last := index + 1
	if len(end) > 0 && end[0] != nil {
		endIndex, err := h.codec.Index(end[0])
		if err != nil {
			h.logger.Warn("heap delete rejected", "pid", h.pid, "heap", h.id, "end", end[0], "error", err)
			return false
		}
		last = min(endIndex, len(h.cells))
	}
	for i := index; i < last; i++ {
		h.cells[i] = FreeCell()
	}
	return true
}

// SetData clears the cell at addr, then writes value into it.
func (h *Heap) SetData(addr interface{}, value interface{}) bool {
	h.mux.Lock()
	defer h.mux.Unlock()
	if !h.deleteData(addr) {
		return false
	}
	index, _ := h.locate(addr, "write")
	h.cells[index] = ValueCell(value)
	return true
}

// Alloc reserves count consecutive free cells using first-fit and returns
// the canonical address of the first one.
func (h *Heap) Alloc(count int, autoExpand bool) (string, bool) {
	h.mux.Lock()
	defer h.mux.Unlock()
	base, ok := h.alloc(count, autoExpand)
	if !ok {
		return "", false
	}
	return address.Encode(base), true
}

func (h *Heap) alloc(count int, autoExpand bool) (int, bool) {
	if count <= 0 {
		h.logger.Warn("heap alloc rejected", "pid", h.pid, "heap", h.id, "count", count, "error", ErrInvalidLength)
		return 0, false
	}
	if base, ok := h.firstFit(count); ok {
		for i := base; i < base+count; i++ {
			h.cells[i] = ReservedCell(base, count)
		}
		return base, true
	}
	if !autoExpand {
		h.logger.Warn("heap alloc failed", "pid", h.pid, "heap", h.id, "count", count, "size", len(h.cells), "error", ErrAllocationFailed)
		return 0, false
	}
	if !h.expand(max(count*2, len(h.cells)/2)) {
		return 0, false
	}
	return h.alloc(count, false)
}

func (h *Heap) firstFit(count int) (int, bool) {
	run := 0
	for i := range h.cells {
		if !h.cells[i].IsFree() {
			run = 0
			continue
		}
		run++
		if run == count {
			return i - count + 1, true
		}
	}
	return 0, false
}

// Expand grows the heap by additional free cells, preserving existing cells.
func (h *Heap) Expand(additional int) bool {
	h.mux.Lock()
	defer h.mux.Unlock()
	return h.expand(additional)
}

func (h *Heap) expand(additional int) bool {
	if additional <= 0 {
		h.logger.Warn("heap expand rejected", "pid", h.pid, "heap", h.id, "additional", additional, "error", ErrExpansionRejected)
		return false
	}
	h.cells = append(h.cells, make([]Cell, additional)...)
	h.logger.Info("heap expanded", "pid", h.pid, "heap", h.id, "additional", additional, "size", len(h.cells))
	return true
}

// Free releases cells starting at addr. When size is omitted it is recovered
// from the reservation marker at addr (up to the end of that span), else 1.
// The range is clipped to the heap size. Adjacent free runs are not merged.
func (h *Heap) Free(addr interface{}, size ...int) bool {
	h.mux.Lock()
	defer h.mux.Unlock()
	index, ok := h.locate(addr, "free")
	if !ok {
		return false
	}
	count := 1
	if len(size) > 0 {
		count = size[0]
	} else if cell := h.cells[index]; cell.IsReserved() {
		count = cell.Reservation.Base + cell.Reservation.Length - index
	}
	if count <= 0 {
		h.logger.Warn("heap free rejected", "pid", h.pid, "heap", h.id, "addr", addr, "size", count, "error", ErrInvalidLength)
		return false
	}
	end := clip(index, count, len(h.cells))
	for i := index; i < end; i++ {
		h.cells[i] = FreeCell()
	}
	return true
}

// FreeAll drops all storage; the heap size becomes 0.
func (h *Heap) FreeAll() {
	h.mux.Lock()
	defer h.mux.Unlock()
	h.cells = nil
}

// clip returns min(index+count, size) without overflowing for large counts.
func clip(index, count, size int) int {
	if count < size-index {
		return index + count
	}
	return size
}

// locate decodes addr and checks it is within [0, size).
func (h *Heap) locate(addr interface{}, op string) (int, bool) {
	index, err := h.codec.Index(addr)
	if err != nil {
		h.logger.Warn("heap "+op+" rejected", "pid", h.pid, "heap", h.id, "addr", addr, "error", err)
		return 0, false
	}
	if index >= len(h.cells) {
		h.logger.Warn("heap "+op+" rejected", "pid", h.pid, "heap", h.id, "addr", addr, "size", len(h.cells), "error", ErrAddressOutOfRange)
		return 0, false
	}
	return index, true
}
