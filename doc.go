// Package procmem provides per-process virtual memory for a simulated kernel.
//
// Each process owns a slot-addressable heap and a shed. The heap is a growable
// array of cells with first-fit contiguous allocation; the shed keeps an
// ordered code area and a name to value resource map. The Service facade
// composes the two to store JSON-serializable values under string keys:
// the encoded text is written one character per heap cell followed by a
// terminator cell, and the span address is linked under the key in the shed.
//
//	srv, _ := procmem.New()
//	addr, _ := srv.StoreData(ctx, 42, "settings", map[string]interface{}{"theme": "dark"})
//	value, _ := srv.LoadData(ctx, 42, "settings")
//
// Heaps and sheds are owned by the registry sub-package; spaces can be
// snapshotted to any afs-supported location and restored later.
package procmem
