// Package hub shares one synchronizer per ordered channel pair between all
// views that plot that pair.
package hub

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"xysync/pkg/model"
	"xysync/pkg/registry"
	"xysync/pkg/xysync"
)

type entry struct {
	sync *xysync.Synchronizer
	subs map[uuid.UUID]struct{}
}

// Hub creates a synchronizer on the first subscription to a channel pair and
// destroys it when the last subscriber leaves or either channel is removed.
type Hub struct {
	registry registry.DeviceRegistry
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	mu        sync.Mutex
	entries   map[model.PairKey]*entry
	byChannel map[model.ChannelID]map[model.PairKey]struct{}
	closed    bool
	stopWatch func()
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id  uuid.UUID
	key model.PairKey
	hub *Hub
}

func (s *Subscription) ID() uuid.UUID {
	return s.id
}

func (s *Subscription) Key() model.PairKey {
	return s.key
}

// Unsubscribe detaches the handler. It is a no-op if the pair was already
// torn down.
func (s *Subscription) Unsubscribe() {
	s.hub.unsubscribe(s)
}

func NewHub(ctx context.Context, reg registry.DeviceRegistry, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &Hub{
		registry:  reg,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		entries:   make(map[model.PairKey]*entry),
		byChannel: make(map[model.ChannelID]map[model.PairKey]struct{}),
	}
	h.stopWatch = reg.OnRemove(h.channelRemoved)
	// Close cancels ctx as well, which ends this goroutine.
	go func() {
		<-ctx.Done()
		h.Close()
	}()
	return h
}

// Subscribe delivers the synchronized pairs of (a, b) to fn, starting with
// the pairs already emitted for that key. fn runs on the synchronizer's
// delivery goroutine and must not call back into the hub.
func (h *Hub) Subscribe(a, b model.ChannelID, fn xysync.PairHandler) (*Subscription, error) {
	if a == b {
		return nil, fmt.Errorf("%w: %s", ErrSameChannel, a)
	}
	key := model.PairKey{A: a, B: b}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.ctx.Err() != nil {
		return nil, ErrClosed
	}

	e, ok := h.entries[key]
	if !ok {
		bufA, err := h.registry.Buffer(a)
		if err != nil {
			return nil, err
		}
		bufB, err := h.registry.Buffer(b)
		if err != nil {
			return nil, err
		}
		e = &entry{
			sync: xysync.New(h.ctx, key, bufA, bufB, h.logger),
			subs: make(map[uuid.UUID]struct{}),
		}
		h.entries[key] = e
		h.index(a, key)
		h.index(b, key)
		h.logger.Info("synchronizer created", zap.Stringer("pair", key))
	}

	id := e.sync.Subscribe(fn)
	e.subs[id] = struct{}{}
	return &Subscription{id: id, key: key, hub: h}, nil
}

func (h *Hub) index(id model.ChannelID, key model.PairKey) {
	if h.byChannel[id] == nil {
		h.byChannel[id] = make(map[model.PairKey]struct{})
	}
	h.byChannel[id][key] = struct{}{}
}

func (h *Hub) unsubscribe(s *Subscription) {
	h.mu.Lock()
	e, ok := h.entries[s.key]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := e.subs[s.id]; !ok {
		h.mu.Unlock()
		return
	}
	e.sync.Unsubscribe(s.id)
	delete(e.subs, s.id)

	var stale *xysync.Synchronizer
	if len(e.subs) == 0 {
		stale = h.drop(s.key)
		h.logger.Info("synchronizer released", zap.Stringer("pair", s.key))
	}
	h.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
}

// drop removes key from the hub and returns its synchronizer. h.mu must be held.
func (h *Hub) drop(key model.PairKey) *xysync.Synchronizer {
	e := h.entries[key]
	delete(h.entries, key)
	for _, id := range []model.ChannelID{key.A, key.B} {
		delete(h.byChannel[id], key)
		if len(h.byChannel[id]) == 0 {
			delete(h.byChannel, id)
		}
	}
	return e.sync
}

func (h *Hub) channelRemoved(id model.ChannelID) {
	h.mu.Lock()
	var stale []*xysync.Synchronizer
	for key := range h.byChannel[id] {
		stale = append(stale, h.drop(key))
	}
	h.mu.Unlock()

	for _, s := range stale {
		h.logger.Info("synchronizer torn down", zap.Stringer("pair", s.Key()),
			zap.String("removed_channel", string(id)))
		s.Close()
	}
}

// Active returns the keys of all live synchronizers.
func (h *Hub) Active() []model.PairKey {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]model.PairKey, 0, len(h.entries))
	for k := range h.entries {
		keys = append(keys, k)
	}
	return keys
}

// Subscribers returns the number of subscribers of key.
func (h *Hub) Subscribers(key model.PairKey) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.entries[key]; ok {
		return len(e.subs)
	}
	return 0
}

// Pending returns the deferred request counts of key's synchronizer.
func (h *Hub) Pending(key model.PairKey) (a, b int, ok bool) {
	h.mu.Lock()
	e, ok := h.entries[key]
	h.mu.Unlock()
	if !ok {
		return 0, 0, false
	}
	a, b = e.sync.Pending()
	return a, b, true
}

// Flush delivers every pair computed so far by all synchronizers.
func (h *Hub) Flush() {
	h.mu.Lock()
	syncs := make([]*xysync.Synchronizer, 0, len(h.entries))
	for _, e := range h.entries {
		syncs = append(syncs, e.sync)
	}
	h.mu.Unlock()
	for _, s := range syncs {
		s.Flush()
	}
}

// Close tears down every synchronizer. Later subscriptions fail with ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var stale []*xysync.Synchronizer
	for key := range h.entries {
		stale = append(stale, h.drop(key))
	}
	h.mu.Unlock()

	h.stopWatch()
	for _, s := range stale {
		s.Close()
	}
	h.cancel()
}
