package core

import (
	"reflect"
	"testing"
	"time"

	"pkt.systems/threadpager/schema"
)

var reportInfo = schema.StreamInfo{ID: "report1", AggregateBearing: true, Total: 3750, Owner: "owner1"}

func newSynth(expected int) *PlaceholderSynthesizer {
	return NewPlaceholderSynthesizer(schema.PagerConfig{}, ExpensePolicy{}, fixedExpected(expected))
}

func TestSynthesizeLeavesPlainStreamsAlone(t *testing.T) {
	in := []schema.Entry{msg("a", 1), contrib("c1", 2)}
	out := newSynth(5).Apply(schema.StreamInfo{ID: "chat"}, false, in)
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("expected unchanged log, got %v", ids(out))
	}
}

func TestSynthesizeCompleteReportUnchanged(t *testing.T) {
	in := []schema.Entry{created("cr", 1)}
	for i := 0; i < 5; i++ {
		in = append(in, contrib("c"+string(rune('1'+i)), 2+i))
	}
	out := newSynth(5).Apply(reportInfo, false, in)
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("expected unchanged log, got %v", ids(out))
	}
}

func TestSynthesizeMissingMarkerAndContributor(t *testing.T) {
	in := []schema.Entry{msg("m1", 10), contrib("c1", 20), contrib("c2", 30), contrib("c3", 40)}
	out := newSynth(5).Apply(reportInfo, false, in)
	if len(out) != len(in)+2 {
		t.Fatalf("expected two placeholders, got %v", ids(out))
	}
	if out[0].ID != SyntheticCreatedID("report1") || !out[0].Synthetic || out[0].Kind != schema.KindCreated {
		t.Fatalf("expected synthetic marker first, got %+v", out[0])
	}
	if !out[0].CreatedAt.Equal(at(10).Add(-time.Millisecond)) {
		t.Fatalf("expected marker one tick before oldest entry, got %s", out[0].CreatedAt)
	}
	if out[1].ID != SyntheticContributionID("report1") || !out[1].Synthetic {
		t.Fatalf("expected synthetic contributor second, got %+v", out[1])
	}
	if out[1].Contribution == nil || out[1].Contribution.Amount != 0 || out[1].Contribution.Currency != schema.DefaultCurrency {
		t.Fatalf("expected zero-amount placeholder, got %+v", out[1].Contribution)
	}
	markers, synthetic := 0, 0
	for _, e := range out {
		if e.IsCreationMarker() {
			markers++
		}
		if e.Synthetic && e.Kind == schema.KindContribution {
			synthetic++
		}
	}
	if markers != 1 || synthetic != 1 {
		t.Fatalf("expected one marker and one placeholder, got %d and %d", markers, synthetic)
	}
	if !IsSorted(out) {
		t.Fatalf("synthesized log is not sorted: %v", ids(out))
	}
}

func TestSynthesizeNoPlaceholderWhenTotalZeroOrSatellite(t *testing.T) {
	in := []schema.Entry{msg("m1", 10), contrib("c1", 20), contrib("c2", 30)}
	zero := reportInfo
	zero.Total = 0
	out := newSynth(5).Apply(zero, false, in)
	for _, e := range out {
		if e.ID == SyntheticContributionID("report1") {
			t.Fatalf("unexpected placeholder with zero total")
		}
	}
	out = newSynth(5).Apply(reportInfo, true, in)
	for _, e := range out {
		if e.ID == SyntheticContributionID("report1") {
			t.Fatalf("unexpected placeholder with satellite configured")
		}
	}
}

func TestSynthesizeSingleContributorView(t *testing.T) {
	in := []schema.Entry{msg("m1", 10), contrib("c1", 20)}
	out := newSynth(1).Apply(reportInfo, false, in)
	if !equalIDs(out, string(SyntheticCreatedID("report1")), "m1") {
		t.Fatalf("expected contributor hidden, got %v", ids(out))
	}
	if !out[0].SingleContributorView {
		t.Fatalf("expected marker flagged for single contributor view")
	}
}

func TestSynthesizePropagatesPendingToMarker(t *testing.T) {
	pending := contrib("c2", 3)
	pending.Pending = schema.PendingAdd
	in := []schema.Entry{created("cr", 1), contrib("c1", 2), pending}
	out := newSynth(2).Apply(reportInfo, false, in)
	if out[0].ID != "cr" || out[0].Pending != schema.PendingUpdate {
		t.Fatalf("expected marker pending update, got %+v", out[0])
	}
}

func TestSynthesizeIgnoresSatelliteEntries(t *testing.T) {
	sat := contrib("s1", 1)
	sat.Origin = schema.OriginSatellite
	in := []schema.Entry{sat, created("cr", 2), contrib("c1", 3), contrib("c2", 4)}
	out := newSynth(2).Apply(reportInfo, true, in)
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("expected satellite entry to be ignored, got %v", ids(out))
	}
}

func TestSynthesizeIsIdempotent(t *testing.T) {
	cases := []struct {
		name     string
		expected int
		entries  []schema.Entry
	}{
		{name: "missing both", expected: 5, entries: []schema.Entry{msg("m1", 10), contrib("c1", 20), contrib("c2", 30)}},
		{name: "single contributor", expected: 1, entries: []schema.Entry{msg("m1", 10), contrib("c1", 20)}},
		{name: "placeholder only", expected: 1, entries: []schema.Entry{msg("m1", 10)}},
		{name: "complete", expected: 2, entries: []schema.Entry{created("cr", 1), contrib("c1", 2), contrib("c2", 3)}},
		{name: "marker only", expected: 3, entries: []schema.Entry{created("cr", 1)}},
		{name: "contributor tied with marker", expected: 2, entries: []schema.Entry{created("r-created", 0), contrib("s-iou", 0), msg("t-msg", 4)}},
		{name: "contributor one tick after marker", expected: 2, entries: []schema.Entry{created("r-created", 0), nudge(contrib("s-iou", 0), time.Nanosecond), msg("t-msg", 4)}},
		{name: "marker tied behind older id", expected: 3, entries: []schema.Entry{contrib("a-iou", 0), created("r-created", 0), msg("t-msg", 4)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newSynth(tc.expected)
			once := s.Apply(reportInfo, false, tc.entries)
			twice := s.Apply(reportInfo, false, once)
			if !IsSorted(once) {
				t.Fatalf("output out of order: %v", ids(once))
			}
			markers := 0
			for _, e := range once {
				if e.IsCreationMarker() {
					markers++
				}
			}
			if markers != 1 {
				t.Fatalf("expected one creation marker, got %d in %v", markers, ids(once))
			}
			if !reflect.DeepEqual(once, twice) {
				t.Fatalf("not idempotent:\n once: %v\ntwice: %v", ids(once), ids(twice))
			}
		})
	}
}

func TestSynthesizePlaceholderSortsRightAfterTiedMarker(t *testing.T) {
	cases := []struct {
		name string
		next schema.Entry
	}{
		{name: "same instant", next: contrib("s-iou", 0)},
		{name: "one nanosecond later", next: nudge(contrib("s-iou", 0), time.Nanosecond)},
		{name: "two nanoseconds later", next: nudge(contrib("s-iou", 0), 2*time.Nanosecond)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := newSynth(2).Apply(reportInfo, false, []schema.Entry{created("r-created", 0), tc.next, msg("t-msg", 4)})
			if len(out) != 4 {
				t.Fatalf("expected 4 entries, got %v", ids(out))
			}
			if !out[0].IsCreationMarker() || out[0].ID != "r-created" {
				t.Fatalf("expected creation marker first, got %v", ids(out))
			}
			if !out[1].Synthetic || out[1].Kind != schema.KindContribution || out[1].Contribution.Amount != 0 {
				t.Fatalf("expected zero-valued placeholder at index 1, got %+v", out[1])
			}
			if out[2].ID != "s-iou" {
				t.Fatalf("expected real contributor after placeholder, got %v", ids(out))
			}
		})
	}
}

func TestSynthesizeSkipsPlaceholderWhenNoKeyFits(t *testing.T) {
	next := msg("r-created\x00", 0)
	out := newSynth(3).Apply(reportInfo, false, []schema.Entry{created("r-created", 0), next})
	if !equalIDs(out, "r-created", "r-created\x00") {
		t.Fatalf("expected input unchanged, got %v", ids(out))
	}
}

func nudge(e schema.Entry, d time.Duration) schema.Entry {
	e.CreatedAt = e.CreatedAt.Add(d)
	return e
}
