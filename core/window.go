package core

// bounds is a half-open range [start, end) into the merged log.
type bounds struct {
	start int
	end   int
}

func (b bounds) empty() bool {
	return b.end <= b.start
}

func (b bounds) len() int {
	if b.empty() {
		return 0
	}
	return b.end - b.start
}

func (b bounds) contains(idx int) bool {
	return idx >= b.start && idx < b.end
}

// windowInput carries what the window bounds depend on.
type windowInput struct {
	total       int
	linked      bool
	loading     bool
	targetIdx   int
	pivotIdx    int
	firstRender bool
	pageSize    int
	olderPages  int
}

// computeBounds returns the visible range. Without a link target the whole
// log is visible. With one, the first render ends at the target and later
// renders extend one page past the pivot (the newest anchored entry).
// Older pages widen the start backwards from the target.
func computeBounds(in windowInput) bounds {
	if in.total <= 0 {
		return bounds{}
	}
	if !in.linked {
		return bounds{start: 0, end: in.total}
	}
	if in.loading || in.targetIdx < 0 {
		return bounds{}
	}
	pageSize := in.pageSize
	if pageSize <= 0 {
		pageSize = 1
	}
	end := in.targetIdx + 1
	if !in.firstRender {
		pivot := in.pivotIdx
		if pivot < 0 {
			pivot = in.targetIdx
		}
		end = pivot + pageSize + 1
		if end < in.targetIdx+1 {
			end = in.targetIdx + 1
		}
	}
	end = clampIndex(end, 1, in.total)
	span := pageSize * (in.olderPages + 1)
	start := clampIndex(in.targetIdx+1-span, 0, end)
	if start > in.targetIdx {
		start = in.targetIdx
	}
	return bounds{start: start, end: end}
}

func clampIndex(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
