// Package sqlite persists lane tracking runs and their per-frame results.
//
// A run is one pass of the tracker over an ordered mask sequence. Every
// frame, including stale and failed ones, is recorded against its run so
// curvature and offset series can be replayed or plotted later. Schema
// changes are embedded migrations applied with golang-migrate.
package sqlite
