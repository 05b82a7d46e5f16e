// Package address converts heap addresses between their accepted input forms
// (integers, "0x"-prefixed hexadecimal strings and decimal digit strings) and
// the two canonical forms used by the memory subsystem: a raw cell index for
// internal indexing and a lowercase "0x" string for every externally returned
// address.
package address
