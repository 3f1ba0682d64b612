// Package store persists the river-level series in named byte slots.
//
// Each feed source owns two independent slots keyed by its address:
//
//	points:<source>  JSON array of points, ascending by timestamp
//	meta:<source>    {"lastRefresh": ISO-8601, "count": n, "sizeBytes": n}
//
// The metadata write follows the data write and is best-effort. If the process
// stops between the two, the metadata may describe the previous snapshot; the
// data itself is never stale.
package store
