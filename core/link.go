package core

import "pkt.systems/threadpager/schema"

// Resolution is the outcome of locating a deep-link target.
type Resolution struct {
	// TargetIndex is the target's position in the merged log, -1 when absent
	// or while the log is loading.
	TargetIndex int
	// PivotIndex is the position the window's newer edge is anchored to.
	PivotIndex int
	// IsFirstRender is true until the first newer-direction pagination of
	// the current target. Repeated successful resolutions leave it set; only
	// pagination, a new target or a reload changes it.
	IsFirstRender bool
	// NotFound is set when a target is active, the log finished loading and
	// the target is absent.
	NotFound bool
}

// LinkResolver owns the per-target render state of one session.
type LinkResolver struct {
	target      schema.EntryID
	anchor      schema.EntryID
	firstRender bool
}

// Target returns the active deep-link target.
func (r *LinkResolver) Target() schema.EntryID {
	return r.target
}

// Anchor returns the entry the window's newer edge was last anchored to.
func (r *LinkResolver) Anchor() schema.EntryID {
	return r.anchor
}

// FirstRender reports whether the current target has not been paginated yet.
func (r *LinkResolver) FirstRender() bool {
	return r.firstRender
}

// SetTarget switches to a new target. It reports whether the target changed.
func (r *LinkResolver) SetTarget(id schema.EntryID) bool {
	if id == r.target {
		return false
	}
	r.target = id
	r.anchor = ""
	r.firstRender = id != ""
	return true
}

// Rearm restores the first-render state, e.g. when the log starts loading again.
func (r *LinkResolver) Rearm() {
	if r.target == "" {
		return
	}
	r.anchor = ""
	r.firstRender = true
}

// Advance records a newer-direction pagination anchored at id.
func (r *LinkResolver) Advance(id schema.EntryID) {
	r.firstRender = false
	if id != "" {
		r.anchor = id
	}
}

// Resolve locates the target in log. Lookup is linear; windows are bounded
// by pagination.
func (r *LinkResolver) Resolve(log MergedLog, loading bool) Resolution {
	res := Resolution{TargetIndex: -1, PivotIndex: -1, IsFirstRender: r.firstRender}
	if r.target == "" || loading {
		return res
	}
	res.TargetIndex = log.Index(r.target)
	if res.TargetIndex < 0 {
		res.NotFound = true
		return res
	}
	res.PivotIndex = res.TargetIndex
	if !r.firstRender && r.anchor != "" {
		if idx := log.Index(r.anchor); idx >= 0 {
			res.PivotIndex = idx
		}
	}
	return res
}
