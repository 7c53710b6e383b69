package core

import (
	"time"

	"pkt.systems/threadpager/schema"
)

// PlaceholderSynthesizer fills structural gaps in aggregate-bearing logs
// while authoritative data is still missing.
type PlaceholderSynthesizer struct {
	policy     ContributorPolicy
	aggregates AggregateSource
	tick       time.Duration
	currency   string
}

// NewPlaceholderSynthesizer constructs a synthesizer. A nil policy selects
// ExpensePolicy; a nil aggregate source reports zero expected contributors.
func NewPlaceholderSynthesizer(cfg schema.PagerConfig, policy ContributorPolicy, aggregates AggregateSource) *PlaceholderSynthesizer {
	if policy == nil {
		policy = ExpensePolicy{}
	}
	if aggregates == nil {
		aggregates = AggregateFunc(nil)
	}
	tick := cfg.Tick
	if tick <= 0 {
		tick = schema.DefaultTick
	}
	currency := cfg.DefaultCurrency
	if currency == "" {
		currency = schema.DefaultCurrency
	}
	return &PlaceholderSynthesizer{policy: policy, aggregates: aggregates, tick: tick, currency: currency}
}

// SyntheticCreatedID is the ID of the creation marker synthesized for stream.
func SyntheticCreatedID(stream schema.StreamID) schema.EntryID {
	return schema.EntryID("created:" + string(stream))
}

// SyntheticContributionID is the ID of the placeholder contributor synthesized for stream.
func SyntheticContributionID(stream schema.StreamID) schema.EntryID {
	return schema.EntryID("contribution:" + string(stream))
}

// Apply returns entries augmented with placeholders. entries must be in
// comparator order; the result is too. Running Apply on its own output
// returns an identical log.
func (s *PlaceholderSynthesizer) Apply(primary schema.StreamInfo, hasSatellite bool, entries []schema.Entry) []schema.Entry {
	if !primary.AggregateBearing {
		return entries
	}
	first, markerIdx := -1, -1
	for i := range entries {
		if entries[i].Origin == schema.OriginSatellite {
			continue
		}
		if first == -1 {
			first = i
		}
		if entries[i].IsCreationMarker() {
			markerIdx = i
			break
		}
	}
	if first == -1 {
		return entries
	}
	out := append([]schema.Entry(nil), entries...)

	var marker schema.Entry
	if markerIdx >= 0 {
		marker = out[markerIdx]
	} else {
		marker = schema.Entry{
			ID:        SyntheticCreatedID(primary.ID),
			CreatedAt: out[first].CreatedAt.Add(-s.tick),
			Kind:      schema.KindCreated,
			Pending:   schema.PendingNone,
			Origin:    schema.OriginPrimary,
			Stream:    primary.ID,
			Owner:     primary.Owner,
			Synthetic: true,
		}
		out = SortEntries(append(out, marker))
	}

	var contributors []schema.Entry
	hasSyntheticContributor := false
	for _, e := range out {
		if e.Origin == schema.OriginSatellite || !s.policy.IsContributor(e) {
			continue
		}
		if e.Synthetic {
			hasSyntheticContributor = true
		}
		contributors = append(contributors, e)
	}

	if primary.Total != 0 && !hasSatellite && !hasSyntheticContributor && !marker.SingleContributorView &&
		len(contributors) < s.aggregates.ExpectedContributorCount(primary.ID) {
		if at, id, ok := s.placeholderKey(out, marker, primary.ID); ok {
			placeholder := schema.Entry{
				ID:        id,
				CreatedAt: at,
				Kind:      schema.KindContribution,
				Pending:   schema.PendingNone,
				Origin:    schema.OriginPrimary,
				Stream:    primary.ID,
				Owner:     primary.Owner,
				Contribution: &schema.Contribution{
					Type:     schema.ContributionCreate,
					Amount:   0,
					Currency: s.currency,
				},
				Synthetic: true,
			}
			contributors = append(contributors, placeholder)
			out = SortEntries(append(out, placeholder))
		}
	}

	if len(contributors) == 1 && !marker.SingleContributorView {
		out = s.policy.SingleContributorView(out)
		marker.SingleContributorView = true
	}
	for _, c := range contributors {
		if c.IsPending() {
			marker.Pending = schema.PendingUpdate
			break
		}
	}
	for i := range out {
		if out[i].ID == marker.ID && out[i].Origin == marker.Origin {
			out[i] = marker
			break
		}
	}
	return out
}

// placeholderKey picks a (CreatedAt, ID) that sorts strictly between the
// marker and the entry after it. When the next entry ties the marker in
// time, an ID derived from the marker's is tried; ok is false when no key
// fits between the two.
func (s *PlaceholderSynthesizer) placeholderKey(entries []schema.Entry, marker schema.Entry, stream schema.StreamID) (time.Time, schema.EntryID, bool) {
	idx := -1
	for i := range entries {
		if entries[i].ID == marker.ID && entries[i].Origin == marker.Origin {
			idx = i
			break
		}
	}
	if idx == -1 {
		return time.Time{}, "", false
	}
	at := marker.CreatedAt.Add(s.tick)
	var next *schema.Entry
	if idx+1 < len(entries) {
		next = &entries[idx+1]
		at = marker.CreatedAt
		if gap := next.CreatedAt.Sub(marker.CreatedAt); gap > 1 {
			at = marker.CreatedAt.Add(gap / 2)
		}
	}
	for _, id := range []schema.EntryID{SyntheticContributionID(stream), marker.ID + ":contribution"} {
		candidate := schema.Entry{ID: id, CreatedAt: at}
		if CompareEntries(marker, candidate) < 0 && (next == nil || CompareEntries(candidate, *next) < 0) {
			return at, id, true
		}
	}
	return time.Time{}, "", false
}
