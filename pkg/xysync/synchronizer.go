// Package xysync aligns two asynchronously sampled series into time-aligned
// pairs for XY plots and derived channels.
package xysync

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"xysync/pkg/model"
	"xysync/pkg/series"
)

// Side selects one of the two series of a Synchronizer.
type Side int

const (
	SideA Side = iota
	SideB
)

func (s Side) other() Side {
	return 1 - s
}

func (s Side) String() string {
	if s == SideA {
		return "a"
	}
	return "b"
}

// PairHandler receives synchronized pairs in emission order.
type PairHandler func(model.Pair)

type handlerEntry struct {
	id uuid.UUID
	fn PairHandler
}

// Synchronizer turns appends on two buffers into a stream of pairs.
//
// Every append to either buffer tries to emit a pair at the new sample's
// timestamp and retries the other side's deferred requests. Cursor work runs
// on the appending goroutine under a short lock; pairs are handed to
// subscribers on the synchronizer's own goroutine.
type Synchronizer struct {
	key    model.PairKey
	bufs   [2]*series.Buffer
	logger *zap.Logger

	mu      sync.Mutex
	cursors [2]Cursor
	queue   []model.Pair
	closed  bool
	detach  [2]func()

	// deliverMu serializes delivery, history and the handler list
	deliverMu sync.Mutex
	history   []model.Pair
	handlers  []handlerEntry

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts a synchronizer over a and b. Samples already stored in both
// buffers are resolved immediately. Cancelling ctx has the same effect as Close.
func New(ctx context.Context, key model.PairKey, a, b *series.Buffer, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Synchronizer{
		key:    key,
		bufs:   [2]*series.Buffer{a, b},
		logger: logger.With(zap.Stringer("pair", key)),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}

	s.mu.Lock()
	s.detach[SideA] = a.OnAppend(func() { s.notify(SideA) })
	s.detach[SideB] = b.OnAppend(func() { s.notify(SideB) })
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()

	s.notify(SideA)
	return s
}

func (s *Synchronizer) Key() model.PairKey {
	return s.key
}

// notify runs after an append to side from. It resolves that side first and
// then the deferred requests of the other side, which the append may have
// bracketed.
func (s *Synchronizer) notify(from Side) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	var views [2]model.Samples
	views[SideA] = s.bufs[SideA].View()
	views[SideB] = s.bufs[SideB].View()

	var batch []model.Pair
	for _, side := range [2]Side{from, from.other()} {
		own, other := views[side], views[side.other()]
		s.cursors[side].Resolve(own, other, s.cursors[side.other()].next,
			func(req model.Sample, v float64) {
				batch = append(batch, orient(side, req, v))
			})
	}
	if len(batch) == 0 {
		return
	}

	slices.SortStableFunc(batch, func(x, y model.Pair) int {
		return cmp.Compare(x.Timestamp, y.Timestamp)
	})
	s.queue = append(s.queue, batch...)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func orient(side Side, req model.Sample, other float64) model.Pair {
	if side == SideA {
		return model.Pair{Timestamp: req.Timestamp, A: req.Value, B: other}
	}
	return model.Pair{Timestamp: req.Timestamp, A: other, B: req.Value}
}

func (s *Synchronizer) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.wake:
			s.deliver()
		case <-s.ctx.Done():
			s.shutdown()
			s.deliver()
			return
		}
	}
}

func (s *Synchronizer) deliver() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	batch := s.queue
	s.queue = nil
	s.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	s.history = append(s.history, batch...)
	for _, p := range batch {
		for _, h := range s.handlers {
			h.fn(p)
		}
	}
}

// shutdown detaches from the buffers and discards deferred requests.
func (s *Synchronizer) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for i, d := range s.detach {
		if d != nil {
			d()
			s.detach[i] = nil
		}
	}
	var dropped int
	for side := range s.cursors {
		dropped += s.cursors[side].Pending(s.bufs[side].Len())
	}
	s.cursors = [2]Cursor{}
	s.logger.Debug("synchronizer stopped", zap.Int("discarded_requests", dropped))
}

// Subscribe registers h. h first receives every pair emitted so far and then
// live pairs, with no gap and no duplicate. Handlers run on the delivery
// goroutine (or the caller of Flush) and must not call back into s.
func (s *Synchronizer) Subscribe(h PairHandler) uuid.UUID {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	id := uuid.New()
	for _, p := range s.history {
		h(p)
	}
	s.handlers = append(s.handlers, handlerEntry{id: id, fn: h})
	return id
}

// Unsubscribe removes the handler registered under id and reports whether it
// was present.
func (s *Synchronizer) Unsubscribe(id uuid.UUID) bool {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	i := slices.IndexFunc(s.handlers, func(e handlerEntry) bool { return e.id == id })
	if i < 0 {
		return false
	}
	s.handlers = slices.Delete(s.handlers, i, i+1)
	return true
}

// Subscribers returns the number of registered handlers.
func (s *Synchronizer) Subscribers() int {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	return len(s.handlers)
}

// Flush delivers every pair computed so far on the calling goroutine.
func (s *Synchronizer) Flush() {
	s.deliver()
}

// Pairs returns a copy of every pair delivered so far.
func (s *Synchronizer) Pairs() []model.Pair {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	return slices.Clone(s.history)
}

// Pending returns the number of deferred requests per side.
func (s *Synchronizer) Pending() (a, b int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, 0
	}
	return s.cursors[SideA].Pending(s.bufs[SideA].Len()), s.cursors[SideB].Pending(s.bufs[SideB].Len())
}

// Close detaches from both buffers, drops deferred requests, delivers the
// pairs already computed and stops the delivery goroutine. It must not be
// called from a PairHandler.
func (s *Synchronizer) Close() {
	s.cancel()
	s.wg.Wait()
}
