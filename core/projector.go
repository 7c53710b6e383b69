package core

import "pkt.systems/threadpager/schema"

// projection is everything a WindowState is derived from.
type projection struct {
	log        MergedLog
	window     bounds
	res        Resolution
	linked     bool
	primary    schema.StreamInfo
	satellite  schema.StreamInfo
	older      PageState
	newer      PageState
	generation uint64
}

// project builds the read model handed to the rendering layer.
func project(in projection) schema.WindowState {
	state := schema.WindowState{
		AnchorIndex:    -1,
		LogLength:      in.log.Len(),
		IsLoadingOlder: in.older == StateFetchingOlder,
		IsLoadingNewer: in.newer == StateFetchingNewer,
		HasOlderError:  in.older == StateSuppressed,
		HasNewerError:  in.newer == StateSuppressed,
		Generation:     in.generation,
		TargetNotFound: in.linked && in.res.NotFound,
		ParentRef:      in.log.ParentRef,
	}
	state.HasCreationMarker = hasCreationMarker(in.log.Entries)
	w := in.window
	if w.start < 0 || w.end > in.log.Len() || w.empty() {
		return state
	}
	state.Start = w.start
	state.End = w.end
	state.Entries = append([]schema.Entry(nil), in.log.Entries[w.start:w.end]...)
	state.Routes = RoutesFor(state.Entries)
	if in.linked && w.contains(in.res.TargetIndex) {
		state.AnchorIndex = in.res.TargetIndex - w.start
	}
	newest := state.Entries[len(state.Entries)-1]
	state.IsAtNewestKnownEntry = isNewestKnown(newest, in.primary, in.satellite)
	state.OlderExhausted = w.start == 0 && state.HasCreationMarker
	state.NewerExhausted = w.end == in.log.Len() && state.IsAtNewestKnownEntry
	return state
}

// hasCreationMarker scans the whole log: satellite entries or timestamp ties
// can sort ahead of the marker.
func hasCreationMarker(entries []schema.Entry) bool {
	for i := range entries {
		if entries[i].IsCreationMarker() {
			return true
		}
	}
	return false
}

func isNewestKnown(e schema.Entry, primary, satellite schema.StreamInfo) bool {
	if !primary.NewestCreated.IsZero() && e.CreatedAt.Equal(primary.NewestCreated) {
		return true
	}
	return !satellite.NewestCreated.IsZero() && e.CreatedAt.Equal(satellite.NewestCreated)
}

// RoutesFor maps each entry to the stream it must be paged through.
func RoutesFor(entries []schema.Entry) []schema.Route {
	routes := make([]schema.Route, len(entries))
	for i, e := range entries {
		routes[i] = schema.Route{ID: e.ID, Stream: e.Stream, Synthetic: e.Synthetic}
	}
	return routes
}

// BoundaryID returns the oldest (older) or newest (newer) routed entry of
// stream, skipping synthetic entries. It returns "" when the stream has no
// visible entry, which asks the stream for its edge page.
func BoundaryID(routes []schema.Route, stream schema.StreamID, dir schema.Direction) schema.EntryID {
	if dir == schema.DirectionOlder {
		for _, r := range routes {
			if r.Stream == stream && !r.Synthetic {
				return r.ID
			}
		}
		return ""
	}
	for i := len(routes) - 1; i >= 0; i-- {
		if routes[i].Stream == stream && !routes[i].Synthetic {
			return routes[i].ID
		}
	}
	return ""
}
