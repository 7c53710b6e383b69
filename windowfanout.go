package threadpager

import (
	"sync"

	"pkt.systems/threadpager/core"
	"pkt.systems/threadpager/schema"
)

type windowFanout struct {
	mu    sync.RWMutex
	sinks []core.WindowSink
}

func (f *windowFanout) add(sink core.WindowSink) {
	if sink == nil {
		return
	}
	f.mu.Lock()
	f.sinks = append(f.sinks, sink)
	f.mu.Unlock()
}

func (f *windowFanout) OnWindow(stream schema.StreamID, state schema.WindowState) {
	f.mu.RLock()
	sinks := f.sinks
	f.mu.RUnlock()
	for _, sink := range sinks {
		sink.OnWindow(stream, state)
	}
}
