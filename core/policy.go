package core

import "pkt.systems/threadpager/schema"

// ExpensePolicy is the default contributor policy for expense reports.
// Created, tracked and detailed pay contributions count toward the total.
type ExpensePolicy struct{}

// IsContributor reports whether e counts toward the report total.
func (ExpensePolicy) IsContributor(e schema.Entry) bool {
	if e.Kind != schema.KindContribution || e.Contribution == nil {
		return false
	}
	switch e.Contribution.Type {
	case schema.ContributionCreate, schema.ContributionTrack:
		return true
	case schema.ContributionPay:
		return e.Contribution.HasDetails
	default:
		return false
	}
}

// SingleContributorView hides the create and track entries of a
// one-expense report; the expense itself is shown by its thread.
func (ExpensePolicy) SingleContributorView(entries []schema.Entry) []schema.Entry {
	out := make([]schema.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == schema.KindContribution && e.Contribution != nil {
			switch e.Contribution.Type {
			case schema.ContributionCreate, schema.ContributionTrack:
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// AggregateFunc adapts a function to AggregateSource.
type AggregateFunc func(stream schema.StreamID) int

// ExpectedContributorCount calls f.
func (f AggregateFunc) ExpectedContributorCount(stream schema.StreamID) int {
	if f == nil {
		return 0
	}
	return f(stream)
}
