package registry

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"xysync/pkg/model"
	"xysync/pkg/series"
)

type entry struct {
	channel model.Channel
	buffer  *series.Buffer
}

type removeWatcher struct {
	id uint64
	fn func(model.ChannelID)
}

// MemoryRegistry owns the buffers of all known channels.
type MemoryRegistry struct {
	channels map[model.ChannelID]*entry
	mutex    sync.RWMutex
	logger   *zap.Logger

	watchers    []removeWatcher
	nextWatcher uint64
}

var _ Store = (*MemoryRegistry)(nil)

func NewMemoryRegistry(logger *zap.Logger) *MemoryRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryRegistry{
		channels: make(map[model.ChannelID]*entry),
		logger:   logger,
	}
}

// AddChannel creates an empty buffer for ch.
func (mr *MemoryRegistry) AddChannel(ch *model.Channel) (*series.Buffer, error) {
	if ch == nil {
		return nil, ErrNilChannel
	}
	id := ch.ID()
	mr.mutex.Lock()
	defer mr.mutex.Unlock()
	if _, ok := mr.channels[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrChannelExists, id)
	}
	buf := series.NewBuffer(id, mr.logger)
	mr.channels[id] = &entry{channel: *ch, buffer: buf}
	mr.logger.Debug("channel added", zap.String("channel", string(id)))
	return buf, nil
}

// RemoveChannel closes the channel's buffer and notifies removal watchers.
func (mr *MemoryRegistry) RemoveChannel(id model.ChannelID) error {
	mr.mutex.Lock()
	e, ok := mr.channels[id]
	if !ok {
		mr.mutex.Unlock()
		return fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}
	delete(mr.channels, id)
	watchers := mr.watchers
	mr.mutex.Unlock()

	e.buffer.Close()
	mr.logger.Debug("channel removed", zap.String("channel", string(id)))
	for _, w := range watchers {
		w.fn(id)
	}
	return nil
}

// Append stores s in the buffer of channel id.
func (mr *MemoryRegistry) Append(id model.ChannelID, s model.Sample) error {
	buf, err := mr.Buffer(id)
	if err != nil {
		return err
	}
	return buf.Append(s)
}

// Query returns a snapshot of the samples of channel id.
func (mr *MemoryRegistry) Query(id model.ChannelID) (model.Samples, error) {
	buf, err := mr.Buffer(id)
	if err != nil {
		return nil, err
	}
	return buf.View(), nil
}

func (mr *MemoryRegistry) Buffer(id model.ChannelID) (*series.Buffer, error) {
	mr.mutex.RLock()
	defer mr.mutex.RUnlock()
	if e, ok := mr.channels[id]; ok {
		return e.buffer, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, id)
}

func (mr *MemoryRegistry) Channel(id model.ChannelID) (model.Channel, error) {
	mr.mutex.RLock()
	defer mr.mutex.RUnlock()
	if e, ok := mr.channels[id]; ok {
		return e.channel, nil
	}
	return model.Channel{}, fmt.Errorf("%w: %s", ErrChannelNotFound, id)
}

// Channels returns the IDs of all channels, sorted.
func (mr *MemoryRegistry) Channels() []model.ChannelID {
	mr.mutex.RLock()
	defer mr.mutex.RUnlock()
	ids := make([]model.ChannelID, 0, len(mr.channels))
	for id := range mr.channels {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (mr *MemoryRegistry) OnRemove(fn func(model.ChannelID)) func() {
	mr.mutex.Lock()
	defer mr.mutex.Unlock()
	mr.nextWatcher++
	id := mr.nextWatcher
	watchers := make([]removeWatcher, len(mr.watchers), len(mr.watchers)+1)
	copy(watchers, mr.watchers)
	mr.watchers = append(watchers, removeWatcher{id: id, fn: fn})
	return func() {
		mr.mutex.Lock()
		defer mr.mutex.Unlock()
		mr.watchers = slices.DeleteFunc(slices.Clone(mr.watchers), func(w removeWatcher) bool {
			return w.id == id
		})
	}
}
