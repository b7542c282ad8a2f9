// Package session wires channels, XY plots and derived channels together.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"xysync/pkg/hub"
	"xysync/pkg/mathchan"
	"xysync/pkg/model"
	"xysync/pkg/registry"
	"xysync/pkg/series"
)

var ErrPlotNotFound = errors.New("plot not found")

// Plot is an XY view subscribed to a channel pair.
type Plot struct {
	ID   uuid.UUID
	X, Y model.ChannelID
	View View

	sub *hub.Subscription
}

// Session owns the hub and every plot and derived channel created through it.
// The channel store and the view factory are supplied by the host.
type Session struct {
	store  registry.Store
	views  ViewFactory
	hub    *hub.Hub
	logger *zap.Logger

	mu      sync.Mutex
	plots   map[uuid.UUID]*Plot
	derived map[model.ChannelID]*mathchan.Channel
}

func New(ctx context.Context, store registry.Store, views ViewFactory, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		store:   store,
		views:   views,
		hub:     hub.NewHub(ctx, store, logger),
		logger:  logger,
		plots:   make(map[uuid.UUID]*Plot),
		derived: make(map[model.ChannelID]*mathchan.Channel),
	}
}

func (s *Session) Hub() *hub.Hub {
	return s.hub
}

func (s *Session) AddChannel(ch *model.Channel) (*series.Buffer, error) {
	return s.store.AddChannel(ch)
}

// RemoveChannel removes a channel; plots and derived channels fed by it stop
// receiving data.
func (s *Session) RemoveChannel(id model.ChannelID) error {
	if err := s.store.RemoveChannel(id); err != nil {
		return err
	}
	s.mu.Lock()
	mc, ok := s.derived[id]
	delete(s.derived, id)
	s.mu.Unlock()
	if ok {
		mc.Close()
	}
	return nil
}

// AddXYPlot creates a view for x against y and subscribes it.
func (s *Session) AddXYPlot(x, y model.ChannelID) (*Plot, error) {
	if x == y {
		return nil, fmt.Errorf("%w: %s", hub.ErrSameChannel, x)
	}
	xch, err := s.store.Channel(x)
	if err != nil {
		return nil, err
	}
	ych, err := s.store.Channel(y)
	if err != nil {
		return nil, err
	}
	view, err := s.views.NewXYView(xch, ych)
	if err != nil {
		return nil, fmt.Errorf("create xy view: %w", err)
	}
	sub, err := s.hub.Subscribe(x, y, view.OnPair)
	if err != nil {
		s.release(view)
		return nil, err
	}
	p := &Plot{ID: sub.ID(), X: x, Y: y, View: view, sub: sub}

	s.mu.Lock()
	s.plots[p.ID] = p
	s.mu.Unlock()
	s.logger.Info("xy plot added", zap.String("x", string(x)), zap.String("y", string(y)),
		zap.Stringer("plot", p.ID))
	return p, nil
}

func (s *Session) RemovePlot(id uuid.UUID) error {
	s.mu.Lock()
	p, ok := s.plots[id]
	delete(s.plots, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlotNotFound, id)
	}
	p.sub.Unsubscribe()
	s.release(p.View)
	return nil
}

func (s *Session) release(v View) {
	if r, ok := s.views.(ViewReleaser); ok {
		r.ReleaseXYView(v)
	}
}

// Plots returns the plots of the session.
func (s *Session) Plots() []*Plot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Plot, 0, len(s.plots))
	for _, p := range s.plots {
		out = append(out, p)
	}
	return out
}

// AddMathChannel adds channel out whose samples are op(a, b).
func (s *Session) AddMathChannel(out *model.Channel, op mathchan.Op, a, b model.ChannelID) (*mathchan.Channel, error) {
	buf, err := s.store.AddChannel(out)
	if err != nil {
		return nil, err
	}
	mc, err := mathchan.New(s.hub, op, a, b, buf, s.logger)
	if err != nil {
		return nil, multierr.Append(err, s.store.RemoveChannel(out.ID()))
	}
	s.mu.Lock()
	s.derived[out.ID()] = mc
	s.mu.Unlock()
	return mc, nil
}

// Close unsubscribes every plot, removes the derived channels and stops the hub.
func (s *Session) Close() error {
	s.mu.Lock()
	plots, derived := s.plots, s.derived
	s.plots = make(map[uuid.UUID]*Plot)
	s.derived = make(map[model.ChannelID]*mathchan.Channel)
	s.mu.Unlock()

	var err error
	for _, p := range plots {
		p.sub.Unsubscribe()
	}
	for id, mc := range derived {
		mc.Close()
		err = multierr.Append(err, s.store.RemoveChannel(id))
	}
	s.hub.Close()
	return err
}
