package schema

import "time"

// EntryID identifies a conversation entry within its stream.
type EntryID string

// StreamID identifies an entry collection (a report or a transaction thread).
type StreamID string

// OwnerID identifies the account that owns a stream.
type OwnerID string

// EntryKind tags the structural role of an entry.
type EntryKind string

const (
	// KindMessage is a plain conversation message.
	KindMessage EntryKind = "message"
	// KindCreated marks the start of a stream's timeline.
	KindCreated EntryKind = "created"
	// KindContribution contributes to a stream's running total.
	KindContribution EntryKind = "contribution"
	// KindPreview summarizes a child stream inside its parent.
	KindPreview EntryKind = "preview"
	// KindOther covers any remaining structural entry.
	KindOther EntryKind = "other"
)

// PendingState marks local mutations not yet acknowledged by the server.
type PendingState string

const (
	// PendingNone means the entry is authoritative.
	PendingNone PendingState = ""
	// PendingAdd marks an optimistic insert.
	PendingAdd PendingState = "add"
	// PendingUpdate marks an optimistic update.
	PendingUpdate PendingState = "update"
	// PendingDelete marks an optimistic delete.
	PendingDelete PendingState = "delete"
)

// Origin records which stream an entry was fetched from.
type Origin string

const (
	// OriginPrimary is the main report stream.
	OriginPrimary Origin = "primary"
	// OriginSatellite is the linked transaction thread stream.
	OriginSatellite Origin = "satellite"
)

// Direction selects the pagination direction.
type Direction string

const (
	// DirectionOlder pages toward the start of the timeline.
	DirectionOlder Direction = "older"
	// DirectionNewer pages toward the newest entry.
	DirectionNewer Direction = "newer"
)

// ContributionType classifies a contribution entry.
type ContributionType string

const (
	// ContributionCreate records a new expense.
	ContributionCreate ContributionType = "create"
	// ContributionTrack records a tracked expense.
	ContributionTrack ContributionType = "track"
	// ContributionPay records a payment.
	ContributionPay ContributionType = "pay"
	// ContributionOther covers split, delete and other contribution events.
	ContributionOther ContributionType = "other"
)

// Contribution carries the money details of a contribution entry.
type Contribution struct {
	Type       ContributionType `json:"type" yaml:"type"`
	Amount     int64            `json:"amount" yaml:"amount"`
	Currency   string           `json:"currency,omitempty" yaml:"currency,omitempty"`
	HasDetails bool             `json:"has_details,omitempty" yaml:"has_details,omitempty"`
}

// Entry is one immutable item of a conversation log.
// Updates produce a new Entry with the same ID.
type Entry struct {
	ID           EntryID       `json:"id" yaml:"id"`
	CreatedAt    time.Time     `json:"created_at" yaml:"created_at"`
	Kind         EntryKind     `json:"kind" yaml:"kind"`
	Pending      PendingState  `json:"pending,omitempty" yaml:"pending,omitempty"`
	Origin       Origin        `json:"origin,omitempty" yaml:"origin,omitempty"`
	Stream       StreamID      `json:"stream,omitempty" yaml:"stream,omitempty"`
	Owner        OwnerID       `json:"owner,omitempty" yaml:"owner,omitempty"`
	Text         string        `json:"text,omitempty" yaml:"text,omitempty"`
	Contribution *Contribution `json:"contribution,omitempty" yaml:"contribution,omitempty"`
	// Synthetic is set on placeholder entries that have no server counterpart.
	Synthetic bool `json:"synthetic,omitempty" yaml:"synthetic,omitempty"`
	// SingleContributorView is set on a creation marker once the
	// single-contributor filter has been applied to its log.
	SingleContributorView bool `json:"single_contributor_view,omitempty" yaml:"single_contributor_view,omitempty"`
}

// IsCreationMarker reports whether the entry marks the start of a timeline.
func (e Entry) IsCreationMarker() bool {
	return e.Kind == KindCreated
}

// IsPending reports whether the entry carries an unacknowledged mutation.
func (e Entry) IsPending() bool {
	return e.Pending != PendingNone
}

// StreamInfo is the per-stream metadata kept next to an entry collection.
type StreamInfo struct {
	ID StreamID `json:"id" yaml:"id"`
	// AggregateBearing is true when the stream carries a running total.
	AggregateBearing bool    `json:"aggregate_bearing,omitempty" yaml:"aggregate_bearing,omitempty"`
	Total            int64   `json:"total,omitempty" yaml:"total,omitempty"`
	Owner            OwnerID `json:"owner,omitempty" yaml:"owner,omitempty"`
	// NewestCreated is the authoritative creation time of the newest entry.
	NewestCreated time.Time `json:"newest_created,omitempty" yaml:"newest_created,omitempty"`
	// ParentEntryID references the primary entry a satellite stream hangs off.
	ParentEntryID EntryID `json:"parent_entry_id,omitempty" yaml:"parent_entry_id,omitempty"`
	// ExpectedContributors is the contributor count reported by the parent preview.
	ExpectedContributors int `json:"expected_contributors,omitempty" yaml:"expected_contributors,omitempty"`
}

// Route maps a visible entry to the stream it must be paged through.
type Route struct {
	ID     EntryID
	Stream StreamID
	// Synthetic routes have no server counterpart and are never fetch boundaries.
	Synthetic bool
}

// FetchRequest asks a stream for the page adjacent to a boundary entry.
type FetchRequest struct {
	Stream     StreamID
	Direction  Direction
	BoundaryID EntryID
	Generation uint64
}

// FetchBatch groups the legs of one logical pagination step.
// A batch has one leg per configured stream.
type FetchBatch struct {
	Direction  Direction
	Generation uint64
	Legs       []FetchRequest
}

// FetchResult reports the completion of one leg.
type FetchResult struct {
	Stream     StreamID
	Direction  Direction
	Generation uint64
	Err        error
}

// WindowState is the read model handed to the rendering layer.
// Entries is always Log[Start:End]; indices are never negative.
type WindowState struct {
	Entries              []Entry
	Start                int
	End                  int
	LogLength            int
	AnchorIndex          int
	IsLoadingOlder       bool
	IsLoadingNewer       bool
	OlderExhausted       bool
	NewerExhausted       bool
	HasOlderError        bool
	HasNewerError        bool
	HasCreationMarker    bool
	IsAtNewestKnownEntry bool
	TargetNotFound       bool
	Generation           uint64
	Routes               []Route
	ParentRef            *Entry
}
