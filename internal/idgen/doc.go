// Package idgen issues snapshot identifiers. It wraps the UUID generator so
// tests can stub it; callers treat identifiers as opaque strings.
package idgen
