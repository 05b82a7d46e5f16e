package heap

import (
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/procmem/address"
)

func newTestHeap(size int, opts ...Option) *Heap {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(1, size, 1, append([]Option{WithLogger(logger)}, opts...)...)
}

// assertSpan verifies [base, base+length) is reserved with an identical marker.
func assertSpan(t *testing.T, h *Heap, base string, length int) {
	t.Helper()
	index, err := address.Parse(base)
	require.NoError(t, err)
	cells := h.ReadDataRange(index, length)
	require.Len(t, cells, length)
	for i, cell := range cells {
		assert.True(t, cell.IsReserved(), "cell %d should be reserved", index+i)
		assert.Equal(t, Reservation{Base: index, Length: length}, cell.Reservation)
	}
}

func TestNew(t *testing.T) {
	h := newTestHeap(4)
	assert.Equal(t, "0x1", h.PID())
	assert.Equal(t, "0x1", h.ID())
	assert.Equal(t, 4, h.Size())

	named := New("init", 2, "0x10", WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.Equal(t, "init", named.PID())
	assert.Equal(t, "0x10", named.ID())

	empty := New(1, -3, 1, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.Equal(t, 0, empty.Size())
}

func TestHeap_WriteData(t *testing.T) {
	testCases := []struct {
		description string
		addr        interface{}
		value       interface{}
		expectOK    bool
		expectIndex int
	}{
		{description: "hex address", addr: "0x2", value: "A", expectOK: true, expectIndex: 2},
		{description: "int address", addr: 0, value: 42, expectOK: true, expectIndex: 0},
		{description: "decimal string", addr: "7", value: "z", expectOK: true, expectIndex: 7},
		{description: "past the end", addr: 8, value: "x"},
		{description: "negative", addr: -1, value: "x"},
		{description: "garbage", addr: "nope", value: "x"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			h := newTestHeap(8)
			before := h.QueryHeapSpace()
			ok := h.WriteData(testCase.addr, testCase.value)
			assert.Equal(t, testCase.expectOK, ok)
			if !testCase.expectOK {
				assert.Equal(t, before, h.QueryHeapSpace(), "rejected write must not mutate")
				return
			}
			cell, ok := h.ReadData(testCase.expectIndex)
			assert.True(t, ok)
			assert.True(t, cell.IsValue())
			assert.Equal(t, testCase.value, cell.Value)
		})
	}
}

func TestHeap_ReadData_OutOfRange(t *testing.T) {
	h := newTestHeap(2)
	_, ok := h.ReadData("0x2")
	assert.False(t, ok)
	cell, ok := h.ReadData(1)
	assert.True(t, ok)
	assert.True(t, cell.IsFree())
}

func TestHeap_ReadDataRange(t *testing.T) {
	h := newTestHeap(5)
	for i, v := range []string{"a", "b", "c", "d", "e"} {
		require.True(t, h.WriteData(i, v))
	}
	testCases := []struct {
		description string
		addr        interface{}
		length      int
		expect      []interface{}
	}{
		{description: "inner", addr: 1, length: 2, expect: []interface{}{"b", "c"}},
		{description: "clipped", addr: "0x3", length: 10, expect: []interface{}{"d", "e"}},
		{description: "max length", addr: 1, length: math.MaxInt, expect: []interface{}{"b", "c", "d", "e"}},
		{description: "zero length", addr: 0, length: 0, expect: []interface{}{}},
		{description: "negative length", addr: 0, length: -1, expect: []interface{}{}},
		{description: "out of range", addr: 5, length: 1, expect: []interface{}{}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			cells := h.ReadDataRange(testCase.addr, testCase.length)
			actual := make([]interface{}, 0, len(cells))
			for _, cell := range cells {
				actual = append(actual, cell.Value)
			}
			assert.Equal(t, testCase.expect, actual)
		})
	}
}

func TestHeap_ReadString(t *testing.T) {
	h := newTestHeap(12)
	for i, r := range []rune("héllo") {
		require.True(t, h.WriteData(i, string(r)))
	}
	require.True(t, h.WriteData(5, Terminator))
	require.True(t, h.WriteData(6, 'x'))
	require.True(t, h.WriteData(7, "yz"))
	base, ok := h.Alloc(2, false)
	require.True(t, ok)
	require.Equal(t, "0x8", base)

	testCases := []struct {
		description string
		addr        interface{}
		maxLength   int
		expect      string
		expectOK    bool
	}{
		{description: "until terminator", addr: 0, expect: "héllo", expectOK: true},
		{description: "max length", addr: 0, maxLength: 2, expect: "hé", expectOK: true},
		{description: "rune value then multi-char", addr: 6, expect: "x", expectOK: true},
		{description: "starts on reservation", addr: 8, expect: "", expectOK: true},
		{description: "starts on free", addr: 10, expect: "", expectOK: true},
		{description: "out of range", addr: 12, expectOK: false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			actual, ok := h.ReadString(testCase.addr, testCase.maxLength)
			assert.Equal(t, testCase.expectOK, ok)
			assert.Equal(t, testCase.expect, actual)
		})
	}
}

func TestHeap_DeleteAndSetData(t *testing.T) {
	h := newTestHeap(6)
	for i := 0; i < 6; i++ {
		require.True(t, h.WriteData(i, "v"))
	}
	assert.True(t, h.DeleteData(1))
	assert.True(t, h.DeleteData("0x3", "0x5"))
	assert.True(t, h.DeleteData(5, 100))
	assert.False(t, h.DeleteData(6))

	var kinds []Kind
	for _, slot := range h.QueryHeapSpace() {
		kinds = append(kinds, slot.Data.Kind)
	}
	assert.Equal(t, []Kind{KindValue, KindFree, KindValue, KindFree, KindFree, KindFree}, kinds)

	assert.True(t, h.SetData(0, "w"))
	cell, _ := h.ReadData(0)
	assert.Equal(t, "w", cell.Value)
	assert.False(t, h.SetData(9, "w"))
}

func TestHeap_Alloc_ContiguityAndNonOverlap(t *testing.T) {
	h := newTestHeap(16)
	first, ok := h.Alloc(4, true)
	require.True(t, ok)
	assert.Equal(t, "0x0", first)
	assertSpan(t, h, first, 4)

	second, ok := h.Alloc(3, true)
	require.True(t, ok)
	assert.Equal(t, "0x4", second)
	assertSpan(t, h, second, 3)
	assertSpan(t, h, first, 4)

	_, ok = h.Alloc(0, true)
	assert.False(t, ok)
	assert.NoError(t, h.Validate())
}

func TestHeap_Alloc_GrowthOnExhaustion(t *testing.T) {
	h := newTestHeap(10)

	addr, ok := h.Alloc(5, true)
	require.True(t, ok)
	assert.Equal(t, "0x0", addr)

	addr, ok = h.Alloc(5, true)
	require.True(t, ok)
	assert.Equal(t, "0x5", addr)

	_, ok = h.Alloc(1, false)
	assert.False(t, ok)
	assert.Equal(t, 10, h.Size())

	addr, ok = h.Alloc(1, true)
	require.True(t, ok)
	index, err := address.Parse(addr)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, index, 10)
	assert.Equal(t, 15, h.Size(), "grows by max(count*2, size/2)")
}

func TestHeap_Alloc_LargeRequestGrowsByDoubleCount(t *testing.T) {
	h := newTestHeap(4)
	addr, ok := h.Alloc(6, true)
	require.True(t, ok)
	assert.Equal(t, "0x0", addr)
	assert.Equal(t, 16, h.Size())
	assertSpan(t, h, addr, 6)
}

func TestHeap_Alloc_SkipsValueCells(t *testing.T) {
	h := newTestHeap(8)
	require.True(t, h.WriteData("0x2", "A"))
	cell, ok := h.ReadData("0x2")
	require.True(t, ok)
	assert.Equal(t, "A", cell.Value)

	addr, ok := h.Alloc(3, true)
	require.True(t, ok)
	assert.Equal(t, "0x3", addr, "index 2 holds a value so the first free run of 3 starts at 3")

	addr, ok = h.Alloc(2, true)
	require.True(t, ok)
	assert.Equal(t, "0x0", addr)
}

func TestHeap_Free(t *testing.T) {
	h := newTestHeap(10)
	first, _ := h.Alloc(4, false)
	second, _ := h.Alloc(3, false)

	assert.True(t, h.Free(first))
	assert.Equal(t, 7, h.Stats().Free)
	assertSpan(t, h, second, 3)

	again, ok := h.Alloc(4, false)
	require.True(t, ok)
	assert.Equal(t, first, again, "first-fit reuses the lowest free run")

	assert.True(t, h.Free("0x5"))
	stats := h.Stats()
	assert.Equal(t, 5, stats.Reserved, "free from the middle of a span releases its tail")

	assert.True(t, h.Free(8, 10), "explicit size is clipped to the heap")
	assert.False(t, h.Free(10))
	assert.False(t, h.Free(0, 0))
	assert.True(t, h.Free(9), "free cell without size clears one cell")
	assert.NoError(t, h.Validate())

	other := newTestHeap(4)
	_, ok = other.Alloc(4, false)
	require.True(t, ok)
	assert.True(t, other.Free(1, math.MaxInt))
	stats = other.Stats()
	assert.Equal(t, 3, stats.Free, "max size is clipped to the heap")
	assert.Equal(t, 1, stats.Reserved)

	assert.True(t, other.DeleteData(0, math.MaxInt))
	assert.Equal(t, 4, other.Stats().Free)
}

func TestHeap_Expand(t *testing.T) {
	h := newTestHeap(2)
	require.True(t, h.WriteData(1, "k"))
	assert.False(t, h.Expand(0))
	assert.False(t, h.Expand(-4))
	assert.True(t, h.Expand(3))
	assert.Equal(t, 5, h.Size())
	cell, _ := h.ReadData(1)
	assert.Equal(t, "k", cell.Value)
	cell, _ = h.ReadData(4)
	assert.True(t, cell.IsFree())
}

func TestHeap_FreeAll(t *testing.T) {
	h := newTestHeap(4)
	_, _ = h.Alloc(2, false)
	h.FreeAll()
	assert.Equal(t, 0, h.QueryTotalSpace())
	assert.Empty(t, h.QueryHeapSpace())
	assert.False(t, h.WriteData(0, "a"))

	addr, ok := h.Alloc(1, true)
	assert.True(t, ok)
	assert.Equal(t, "0x0", addr)
}

func TestHeap_Stats(t *testing.T) {
	h := newTestHeap(10)
	_, _ = h.Alloc(3, false)
	require.True(t, h.WriteData(5, "x"))
	assert.Equal(t, Stats{Total: 10, Used: 4, Free: 6, Reserved: 3, Values: 1, LargestFree: 4}, h.Stats())

	space := h.QueryHeapSpace()
	require.Len(t, space, 10)
	assert.Equal(t, "0x5", space[5].Addr)
	assert.Equal(t, "x", space[5].Data.Value)
}

func TestHeap_Validate(t *testing.T) {
	h := newTestHeap(6)
	_, _ = h.Alloc(3, false)
	assert.NoError(t, h.Validate())

	require.True(t, h.WriteData(1, "a"))
	assert.NoError(t, h.Validate(), "writing data over a span is allowed")

	h.cells[4] = ReservedCell(0, 3)
	assert.Error(t, h.Validate())

	h.cells[4] = ReservedCell(4, 5)
	assert.Error(t, h.Validate())
}

func TestHeap_LenientAddresses(t *testing.T) {
	h := newTestHeap(3, WithCodec(address.New(address.WithLenient(true))))
	assert.True(t, h.WriteData("bogus", "a"))
	cell, ok := h.ReadData(0)
	assert.True(t, ok)
	assert.Equal(t, "a", cell.Value)
}

func TestHeap_DumpRestore(t *testing.T) {
	h := newTestHeap(6)
	addr, _ := h.Alloc(3, false)
	require.True(t, h.WriteData(addr, "a"))
	require.True(t, h.WriteData(1, Terminator))
	require.True(t, h.WriteData(4, 'r'))

	data, err := json.Marshal(h.Dump())
	require.NoError(t, err)

	state := &State{}
	require.NoError(t, json.Unmarshal(data, state))
	assert.Equal(t, 6, state.Size)
	assert.Len(t, state.Cells, 4)

	restored := newTestHeap(0)
	require.NoError(t, restored.Restore(state))
	assert.Equal(t, 6, restored.Size())

	s, ok := restored.ReadString(0, 0)
	assert.True(t, ok)
	assert.Equal(t, "a", s)

	cell, _ := restored.ReadData(1)
	assert.True(t, cell.IsTerminator())
	cell, _ = restored.ReadData(2)
	assert.Equal(t, ReservedCell(0, 3), cell)
	cell, _ = restored.ReadData(4)
	assert.Equal(t, "r", cell.Value)

	assert.Error(t, restored.Restore(nil))
	assert.Error(t, restored.Restore(&State{Size: 1, Cells: []Slot{{Addr: "0x4", Data: ValueCell("a")}}}))
}
