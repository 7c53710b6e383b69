package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/threadpager/schema"
)

// DefaultDepth is the buffer size of each subscriber channel.
const DefaultDepth = 256

// AllStreams subscribes to the events of every stream. It is not a valid
// stream identifier, so it never collides with a real stream.
const AllStreams schema.StreamID = "*"

// EventType identifies the event payload.
type EventType string

const (
	// EventCollection carries the full entry collection of a stream.
	EventCollection EventType = "collection"
	// EventStreamInfo carries updated stream metadata.
	EventStreamInfo EventType = "stream_info"
	// EventFetchSettled carries the completion of one fetch leg.
	EventFetchSettled EventType = "fetch_settled"
)

// Event is a change notification for one stream.
type Event struct {
	Type    EventType
	Stream  schema.StreamID
	Entries []schema.Entry
	Info    schema.StreamInfo
	Result  schema.FetchResult
}

// Bus fans out stream events to per-stream subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.StreamID]map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus with the default subscriber depth.
func New(logger pslog.Logger) *Bus {
	return NewWithDepth(logger, DefaultDepth)
}

// NewWithDepth constructs a Bus whose subscriber channels buffer depth events.
func NewWithDepth(logger pslog.Logger, depth int) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Bus{
		subs:  make(map[schema.StreamID]map[chan Event]struct{}),
		log:   logger,
		depth: depth,
	}
}

// Subscribe registers a subscriber for the stream and returns a channel + cancel.
func (b *Bus) Subscribe(stream schema.StreamID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	streamSubs := b.subs[stream]
	if streamSubs == nil {
		streamSubs = make(map[chan Event]struct{})
		b.subs[stream] = streamSubs
	}
	streamSubs[ch] = struct{}{}
	count := len(streamSubs)
	b.mu.Unlock()
	b.log.With("stream", stream).Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[stream]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, stream)
				}
			}
			close(ch)
			b.mu.Unlock()
			b.log.With("stream", stream).Debug("eventbus unsubscribe")
		})
	}
}

// OnCollection publishes the current entry collection of stream.
func (b *Bus) OnCollection(stream schema.StreamID, entries []schema.Entry) {
	b.publish(stream, Event{Type: EventCollection, Stream: stream, Entries: entries})
}

// OnStreamInfo publishes updated stream metadata.
func (b *Bus) OnStreamInfo(info schema.StreamInfo) {
	b.publish(info.ID, Event{Type: EventStreamInfo, Stream: info.ID, Info: info})
}

// OnFetchSettled publishes the completion of a fetch leg.
func (b *Bus) OnFetchSettled(result schema.FetchResult) {
	b.publish(result.Stream, Event{Type: EventFetchSettled, Stream: result.Stream, Result: result})
}

// publish never blocks: a full subscriber misses the event. Subscribers that
// must not miss a change treat events as signals and reread the source.
func (b *Bus) publish(stream schema.StreamID, event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	dropped := 0
	for _, key := range []schema.StreamID{stream, AllStreams} {
		for sub := range b.subs[key] {
			select {
			case sub <- event:
			default:
				dropped++
			}
		}
	}
	if dropped == 0 {
		return
	}
	b.log.With("stream", stream).Debug("eventbus dropped", "type", event.Type, "count", dropped)
}
