// Package domain models wind-driven scent-detection coverage.
//
// # Data Source
//
// Measurements originate from GPS trackers carried by detection dogs working
// survey lines. Each tracker reports its position together with the wind
// conditions measured at that position: the meteorological wind direction
// (the bearing the wind blows FROM, degrees clockwise of true north) and the
// wind speed in metres per second. Trackers assign a strictly increasing
// sequence number per device, which the aggregation layer uses as a watermark
// to fetch only unseen records.
//
// # Detection Model Conventions
//
// A scent plume travels WITH the wind, away from the dog's position. The fan
// portion of a detection polygon therefore extends downwind: its centre
// bearing is the reported wind direction rotated by 180 degrees. A calm-air
// near-field circle (default 30 m radius) models omnidirectional detection
// close to the dog, independent of wind.
//
// Detection distance and fan width are piecewise-linear in wind speed with
// anchor points at 0.5, 2.0, 5.0 and 8.0 m/s:
//
//	Distance: light air disperses scent poorly (short range), a steady breeze
//	carries it furthest (~350 m at 8 m/s), and stronger wind dilutes the plume,
//	shrinking range by 25 m per m/s down to a 150 m floor.
//	Fan width: the half-angle narrows from 30 degrees in near-calm conditions
//	to 6 degrees at 8 m/s, then by 0.5 degrees per m/s down to a 5 degree floor.
//
// Linear interpolation between anchors keeps both profiles continuous at
// every breakpoint.
//
// # Coordinate Approximation
//
// All metric conversions use a flat equirectangular approximation:
// 111,320 m per degree of latitude, and 111,320*cos(lat) m per degree of
// longitude at the shape's reference latitude. Survey areas are a few
// kilometres across, where the approximation error is negligible.
//
// # ID Generation
//
// Measurement IDs are deterministic SHA-256 hashes of
// source|sequence|lat|lon|time. Replaying the same record produces the same
// ID, so downstream consumers can deduplicate without coordination.
package domain
