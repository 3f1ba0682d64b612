// Package domain models river-level readings and the rules that reconcile them.
//
// # Data Source
//
// The upstream feed is a comma-separated table with a header row. Column names
// vary between publishers, so columns are located by substring rather than by
// exact name:
//
//	timestamp column: first header containing "timestamp", "time" or "date"
//	height column:    first header containing "height" or "level"
//	type column:      first header containing "type"
//
// A typical feed looks like:
//
//	Timestamp (UTC),Height (m),Type(observed/forecast)
//	2024-01-01T00:00:00Z,1.5,observed
//	2024-01-01T06:00:00Z,1.7,forecast
//
// Rows with an unparseable timestamp or a non-finite height are dropped.
// A missing or unrecognized type is read as "observed" so that a malformed
// type column never discards measurements.
//
// # Reconciliation
//
// Each refresh merges freshly parsed points into the cached series:
//
//	incoming observed   always written; erases any forecast at that instant
//	incoming forecast   written only when the instant has no observed and no forecast
//	untouched instants  pass through unchanged
//
// After merging, the series is pruned to [RetentionHorizon]. Display windows
// ([Window]) filter a copy and never change what is cached.
//
// # Status
//
// [ResolveStatus] picks the point nearest to now across the whole series. When
// that point is more than [StalenessGuard] away the status is Unknown; otherwise
// its observed value (or, failing that, its forecast) is compared against the
// safety threshold, and only a strictly greater value is unsafe.
package domain
