// Package conveyor models a single conveyor belt that produces discrete items
// at a rate that changes over time.
//
// A RateProcess owns the production rate and redraws it from a fixed
// categorical distribution every resample period. A BeltModel owns the items
// that are on the belt, moves them forward on every tick and decides when a
// new item is created. The Simulator ties the two together behind a
// Stopped/Running state machine and publishes what happens through hooks.
//
// The package does not own any clock. Drivers (see package driver) decide when
// Tick and Resample are called and pass in the instant at which they happen.
package conveyor
