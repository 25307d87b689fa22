package conveyor

import "time"

// Snapshot is a read-only view of the simulator at one instant.
type Snapshot struct {
	Items          []ItemView `json:"items"`
	ActiveItems    int        `json:"activeItems"`
	CurrentRate    int        `json:"currentRate"`
	Band           Band       `json:"band"`
	TotalProduced  uint64     `json:"totalProduced"`
	Running        bool       `json:"running"`
	LastRateChange time.Time  `json:"lastRateChange"`

	// NextResampleAt is only set while running.
	NextResampleAt *time.Time `json:"nextResampleAt,omitempty"`

	// At is the instant of the last event the simulator handled.
	At time.Time `json:"at"`
}

// Counters returns the telemetry view of the snapshot.
func (s Snapshot) Counters() Counters {
	return Counters{
		CurrentRate:   s.CurrentRate,
		TotalProduced: s.TotalProduced,
	}
}
