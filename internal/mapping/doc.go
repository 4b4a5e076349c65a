// Package mapping converts real controller poses into the point an
// interaction technique manipulates.
//
//   - [GoGo]: threshold-quadratic arm extension (Poupyrev et al. 1996)
//   - [Attach]: 1:1 controller translation relative to the grab start
//   - [RemotePull]: retraction-driven interpolation toward the hand
//   - [LegacyPull]: lateral 1:1, depth scaled by the grab-start distance
//
// Every function here is pure and is re-evaluated each tick from the live
// poses and the values captured when the grab started.
package mapping
