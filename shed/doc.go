// Package shed implements the per-process code/resource structure: an ordered
// code area and a name to value resource-link map, with an incrementally
// maintained stack size used for diagnostics.
package shed
