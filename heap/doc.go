// Package heap implements the per-process, slot-addressable heap.
//
// # Overview
//
// A Heap is a growable array of cells. Every cell is exactly one of:
//
//   - Free: empty and available to the allocator
//   - Reserved{Base, Length}: part of a span returned by Alloc; the marker is
//     written into every cell of the span so that Free can recover the span
//     size without an explicit argument
//   - Value(v): an arbitrary stored unit, usually a single character
//
// # Allocation
//
// Alloc performs a first-fit, left-to-right scan for the first run of
// consecutive Free cells. Any non-Free cell, value or reservation, breaks a
// run. When no run is found and auto-expansion is requested the heap grows by
// max(count*2, size/2) cells and the scan is retried exactly once without
// auto-expansion.
//
// Freed runs are never coalesced or compacted; fragmentation persists until
// FreeAll.
//
// # Failure semantics
//
// Data operations never panic and never return errors. Boundary and capacity
// failures are logged with one of the package sentinels (ErrAddressOutOfRange,
// ErrAllocationFailed, ErrExpansionRejected) and reported through a false,
// empty or zero return value. Callers must check it.
//
// # Addresses
//
// Every method accepts an address as an int, a "0x" hexadecimal string or a
// decimal digit string. Returned addresses are canonical "0x" strings.
//
// # Thread Safety
//
// Each Heap guards its cells with a mutex, so a single Heap can be shared by
// goroutines. Multi-step sequences such as Alloc followed by WriteData are not
// atomic; callers composing them must serialise access themselves.
package heap
