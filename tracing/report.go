package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/sarchlab/beltsim/conveyor"
	"github.com/sarchlab/beltsim/datarecording"
)

// RunSummary describes a recorded run.
type RunSummary struct {
	Spawned    int
	Exited     int
	Resamples  int
	BandCounts map[conveyor.Band]int
	Starts     int
	Stops      int
	Resets     int
	FirstEvent time.Time
	LastEvent  time.Time
}

// LoadReport reads the tables written by DBTracer and summarizes them.
func LoadReport(ctx context.Context, reader datarecording.DataReader) (RunSummary, error) {
	reader.MapTable(ItemEventTable, ItemEventEntry{})
	reader.MapTable(RateChangeTable, RateChangeEntry{})
	reader.MapTable(StateChangeTable, StateChangeEntry{})

	r := RunSummary{BandCounts: make(map[conveyor.Band]int)}

	items, _, err := reader.Query(ctx, ItemEventTable, datarecording.QueryParams{})
	if err != nil {
		return r, fmt.Errorf("tracing: read %s: %w", ItemEventTable, err)
	}

	for _, entry := range items {
		e := entry.(*ItemEventEntry)
		switch e.Kind {
		case ItemEventSpawn:
			r.Spawned++
		case ItemEventExit:
			r.Exited++
		}

		r.observe(e.Time)
	}

	rates, _, err := reader.Query(ctx, RateChangeTable, datarecording.QueryParams{})
	if err != nil {
		return r, fmt.Errorf("tracing: read %s: %w", RateChangeTable, err)
	}

	for _, entry := range rates {
		e := entry.(*RateChangeEntry)
		r.Resamples++
		r.BandCounts[conveyor.Band(e.Band)]++
		r.observe(e.Time)
	}

	states, _, err := reader.Query(ctx, StateChangeTable, datarecording.QueryParams{})
	if err != nil {
		return r, fmt.Errorf("tracing: read %s: %w", StateChangeTable, err)
	}

	for _, entry := range states {
		e := entry.(*StateChangeEntry)
		switch {
		case e.Reset:
			r.Resets++
		case e.Running:
			r.Starts++
		default:
			r.Stops++
		}

		r.observe(e.Time)
	}

	return r, nil
}

func (r *RunSummary) observe(unixMilli int64) {
	t := time.UnixMilli(unixMilli).UTC()

	if r.FirstEvent.IsZero() || t.Before(r.FirstEvent) {
		r.FirstEvent = t
	}

	if t.After(r.LastEvent) {
		r.LastEvent = t
	}
}
