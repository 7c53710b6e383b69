package core

import (
	"slices"
	"strings"

	"pkt.systems/threadpager/schema"
)

// CompareEntries orders entries by creation time ascending, then by ID.
// It returns -1, 0 or 1.
func CompareEntries(a, b schema.Entry) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(string(a.ID), string(b.ID))
}

// SortEntries returns a sorted copy of entries.
func SortEntries(entries []schema.Entry) []schema.Entry {
	out := append([]schema.Entry(nil), entries...)
	slices.SortStableFunc(out, CompareEntries)
	return out
}

// IsSorted reports whether entries are in comparator order.
func IsSorted(entries []schema.Entry) bool {
	return slices.IsSortedFunc(entries, CompareEntries)
}
