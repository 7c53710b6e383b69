package core

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/threadpager/schema"
)

// MergedLog is the ordered union of the primary and satellite streams.
type MergedLog struct {
	Entries []schema.Entry
	// ParentRef is the primary entry the satellite stream hangs off, if loaded.
	ParentRef *schema.Entry
	// Dropped counts malformed entries left out of Entries.
	Dropped int
}

// Index returns the position of id in the log or -1.
func (l MergedLog) Index(id schema.EntryID) int {
	if id == "" {
		return -1
	}
	for i := range l.Entries {
		if l.Entries[i].ID == id {
			return i
		}
	}
	return -1
}

// Len returns the number of entries in the log.
func (l MergedLog) Len() int {
	return len(l.Entries)
}

// StreamMerger combines a primary collection with an optional satellite one.
type StreamMerger struct {
	log pslog.Logger
}

// NewStreamMerger constructs a merger that reports dropped entries to logger.
func NewStreamMerger(logger pslog.Logger) *StreamMerger {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &StreamMerger{log: logger}
}

// Merge builds the merged log. A zero satellite info means no satellite
// stream is configured and the satellite collection is ignored.
func (m *StreamMerger) Merge(primary schema.StreamInfo, primaryEntries []schema.Entry, satellite schema.StreamInfo, satelliteEntries []schema.Entry) MergedLog {
	var out MergedLog
	entries := make([]schema.Entry, 0, len(primaryEntries)+len(satelliteEntries))
	kept, dropped := m.collect(primaryEntries, primary.ID, schema.OriginPrimary)
	entries = append(entries, kept...)
	out.Dropped += dropped
	if satellite.ID != "" {
		kept, dropped = m.collect(satelliteEntries, satellite.ID, schema.OriginSatellite)
		entries = append(entries, kept...)
		out.Dropped += dropped
	}
	out.Entries = SortEntries(entries)
	if satellite.ID != "" && satellite.ParentEntryID != "" {
		for i := range out.Entries {
			e := out.Entries[i]
			if e.Origin == schema.OriginPrimary && e.ID == satellite.ParentEntryID {
				parent := e
				out.ParentRef = &parent
				break
			}
		}
	}
	return out
}

// collect validates, tags and de-duplicates one stream's entries.
// The last occurrence of an ID wins.
func (m *StreamMerger) collect(entries []schema.Entry, stream schema.StreamID, origin schema.Origin) ([]schema.Entry, int) {
	if len(entries) == 0 {
		return nil, 0
	}
	pos := make(map[schema.EntryID]int, len(entries))
	out := make([]schema.Entry, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		if err := schema.ValidateEntry(e); err != nil {
			dropped++
			if m.log != nil {
				m.log.Warn("merge entry dropped", "stream", stream, "origin", origin, "err", err)
			}
			continue
		}
		e.Origin = origin
		if stream != "" {
			e.Stream = stream
		}
		if idx, ok := pos[e.ID]; ok {
			out[idx] = e
			continue
		}
		pos[e.ID] = len(out)
		out = append(out, e)
	}
	return out, dropped
}
