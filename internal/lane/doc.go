// Package lane tracks the two boundaries of the ego lane across frames of a
// rectified (bird's-eye) binary mask.
//
// Responsibilities: blind sliding-window pixel search, local search around
// the previous fit, quadratic least-squares fitting, conversion of pixel fits
// to physical curvature radius and lane-centre offset, and the cross-frame
// tracker that selects the search mode and smooths curvature.
// Key types: BinaryMask, LaneFit, Tracker, FrameResult.
//
// A Tracker has a single owner. Frames must be passed to Detect one at a
// time and in capture order because local search is seeded from the
// immediately preceding fit.
//
// No SQL, plotting or file decoding lives here; see the storage/sqlite,
// monitor and maskio packages.
package lane
