// Package registry owns process memory: it allocates, looks up and releases
// the heaps and sheds of each process. It is the only service allowed to
// create or drop a process space.
package registry
