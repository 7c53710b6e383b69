package core

import (
	"testing"

	"pkt.systems/threadpager/schema"
)

func TestProjectFindsCreationMarkerBehindOlderEntries(t *testing.T) {
	satellite := msg("s0", 0)
	satellite.Origin = schema.OriginSatellite
	satellite.Stream = "iou1"
	cases := []struct {
		name    string
		entries []schema.Entry
		want    bool
	}{
		{name: "marker first", entries: []schema.Entry{created("cr", 1), msg("m1", 2)}, want: true},
		{name: "satellite predates marker", entries: []schema.Entry{satellite, created("cr", 1), msg("m1", 2)}, want: true},
		{name: "tie sorts marker second", entries: []schema.Entry{contrib("a-iou", 1), created("r-created", 1)}, want: true},
		{name: "no marker", entries: []schema.Entry{msg("m1", 1), msg("m2", 2)}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := project(projection{
				log:    MergedLog{Entries: tc.entries},
				window: bounds{start: 0, end: len(tc.entries)},
				res:    Resolution{TargetIndex: -1, PivotIndex: -1},
			})
			if state.HasCreationMarker != tc.want {
				t.Fatalf("expected HasCreationMarker=%t, got %t", tc.want, state.HasCreationMarker)
			}
			if state.OlderExhausted != tc.want {
				t.Fatalf("expected OlderExhausted=%t, got %t", tc.want, state.OlderExhausted)
			}
		})
	}
}

func TestProjectMarkerStopsOlderFetch(t *testing.T) {
	satellite := msg("s0", 0)
	satellite.Origin = schema.OriginSatellite
	state := project(projection{
		log:    MergedLog{Entries: []schema.Entry{satellite, created("cr", 1)}},
		window: bounds{start: 0, end: 2},
		res:    Resolution{TargetIndex: -1, PivotIndex: -1},
	})
	dec := NewPaginationController(nil).DecideOlder(OlderInput{
		WindowStart:       state.Start,
		HasOldest:         len(state.Entries) > 0,
		HasCreationMarker: state.HasCreationMarker,
	})
	if dec.Outcome != OutcomeSkipped || dec.Reason != ReasonExhausted {
		t.Fatalf("expected exhausted skip, got %+v", dec)
	}
}
