// Package series holds the per-channel, append-only sample store.
package series

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"xysync/pkg/model"
)

// Listener is called after every successful Append, outside the buffer lock.
type Listener func()

type listenerEntry struct {
	id uint64
	fn Listener
}

// Stats are running statistics of the stored values.
type Stats struct {
	Count int
	Min   float64
	Max   float64
	Last  float64
}

// Buffer is an append-only, timestamp-ordered sample store for one channel.
// It expects a single producer and tolerates any number of concurrent readers.
type Buffer struct {
	id     model.ChannelID
	logger *zap.Logger

	mutex   sync.RWMutex
	samples model.Samples
	stats   Stats
	closed  bool

	// copy-on-write; Append reads it under the lock and calls it after
	listeners    []listenerEntry
	nextListener uint64
}

func NewBuffer(id model.ChannelID, logger *zap.Logger) *Buffer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Buffer{
		id:     id,
		logger: logger.With(zap.String("channel", string(id))),
	}
}

func (b *Buffer) ID() model.ChannelID {
	return b.id
}

// Append stores s and notifies listeners. A sample older than the current
// last sample is discarded with ErrOutOfOrder; equal timestamps are allowed.
func (b *Buffer) Append(s model.Sample) error {
	if !model.ValidTimestamp(s.Timestamp) {
		b.logger.Warn("rejecting sample with invalid timestamp",
			zap.Float64("timestamp", s.Timestamp), zap.Float64("value", s.Value))
		return ErrInvalidTimestamp
	}

	b.mutex.Lock()
	if b.closed {
		b.mutex.Unlock()
		return ErrClosed
	}
	if n := len(b.samples); n > 0 && s.Timestamp < b.samples[n-1].Timestamp {
		last := b.samples[n-1].Timestamp
		b.mutex.Unlock()
		b.logger.Warn("rejecting out-of-order sample",
			zap.Float64("timestamp", s.Timestamp),
			zap.Float64("last_timestamp", last),
			zap.Float64("value", s.Value))
		return fmt.Errorf("%w: %v < %v", ErrOutOfOrder, s.Timestamp, last)
	}
	b.samples = b.samples.Append(s)
	b.updateStats(s.Value)
	listeners := b.listeners
	b.mutex.Unlock()

	for _, l := range listeners {
		l.fn()
	}
	return nil
}

func (b *Buffer) updateStats(v float64) {
	if b.stats.Count == 0 {
		b.stats.Min = v
		b.stats.Max = math.Inf(-1)
	}
	b.stats.Count++
	b.stats.Last = v
	if v < b.stats.Min {
		b.stats.Min = v
	}
	// overflow readings show up as +Inf and must not become the max
	if v > b.stats.Max && !math.IsInf(v, 1) {
		b.stats.Max = v
	}
}

// At returns the sample at index i. It panics if i is out of range.
func (b *Buffer) At(i int) model.Sample {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.samples[i]
}

func (b *Buffer) Len() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.samples)
}

// Last returns the newest sample, or false if the buffer is empty.
func (b *Buffer) Last() (model.Sample, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if len(b.samples) == 0 {
		return model.Sample{}, false
	}
	return b.samples[len(b.samples)-1], true
}

// First returns the oldest sample, or false if the buffer is empty.
func (b *Buffer) First() (model.Sample, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if len(b.samples) == 0 {
		return model.Sample{}, false
	}
	return b.samples[0], true
}

// View returns a read-only snapshot of the samples stored so far. Later
// appends never modify the elements of a returned view.
func (b *Buffer) View() model.Samples {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	n := len(b.samples)
	return b.samples[:n:n]
}

func (b *Buffer) Stats() Stats {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.stats
}

// OnAppend registers fn to run after each append. The returned func
// unregisters it and is safe to call more than once.
func (b *Buffer) OnAppend(fn Listener) func() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return func() {}
	}
	b.nextListener++
	id := b.nextListener
	listeners := make([]listenerEntry, len(b.listeners), len(b.listeners)+1)
	copy(listeners, b.listeners)
	b.listeners = append(listeners, listenerEntry{id: id, fn: fn})
	return func() { b.removeListener(id) }
}

func (b *Buffer) removeListener(id uint64) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	listeners := make([]listenerEntry, 0, len(b.listeners))
	for _, l := range b.listeners {
		if l.id != id {
			listeners = append(listeners, l)
		}
	}
	b.listeners = listeners
}

// Close stops accepting samples and drops all listeners. Stored samples stay
// readable for holders of earlier views.
func (b *Buffer) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.closed = true
	b.listeners = nil
}

func (b *Buffer) Closed() bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.closed
}
