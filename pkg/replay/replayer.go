// Package replay feeds recorded channel data into the registry, one
// goroutine per channel, optionally paced by the recorded timestamps.
package replay

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"xysync/pkg/model"
)

// Appender receives the replayed samples.
type Appender interface {
	Append(id model.ChannelID, s model.Sample) error
}

type Target struct {
	Channel model.ChannelID
	Path    string
}

// Result counts what happened to the rows of one target.
type Result struct {
	Appended int
	BadRows  int
	Rejected int
}

type Replayer struct {
	appender Appender
	speed    float64
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	results map[model.ChannelID]Result
	err     error
}

// NewReplayer returns a replayer that appends to a. A speed of 0 replays as
// fast as possible; otherwise recorded time is divided by speed.
func NewReplayer(ctx context.Context, a Appender, speed float64, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Replayer{
		appender: a,
		speed:    speed,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		results:  make(map[model.ChannelID]Result),
	}
}

// Start opens every source and starts replaying them. Nothing is started
// if a source cannot be opened.
func (r *Replayer) Start(targets []Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrAlreadyStarted
	}

	files := make([]*os.File, 0, len(targets))
	for _, t := range targets {
		f, err := os.Open(t.Path)
		if err != nil {
			for _, opened := range files {
				opened.Close()
			}
			return NewOpenError(t.Path, err)
		}
		files = append(files, f)
	}
	r.started = true

	// all producers share one start instant so paced channels stay aligned
	start := time.Now()
	for i, t := range targets {
		r.wg.Add(1)
		go r.runTarget(t, files[i], start)
	}
	return nil
}

// Wait blocks until every source is exhausted or the replay is stopped and
// returns the read errors met on the way.
func (r *Replayer) Wait() error {
	r.wg.Wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Replayer) Stop() error {
	r.cancel()
	return r.Wait()
}

func (r *Replayer) Results() map[model.ChannelID]Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[model.ChannelID]Result, len(r.results))
	for k, v := range r.results {
		out[k] = v
	}
	return out
}

func (r *Replayer) runTarget(t Target, f *os.File, start time.Time) {
	defer r.wg.Done()
	defer f.Close()

	logger := r.logger.With(zap.String("channel", string(t.Channel)), zap.String("source", t.Path))
	var (
		res    Result
		origin float64
		seen   bool
		timer  *time.Timer
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		r.mu.Lock()
		r.results[t.Channel] = res
		r.mu.Unlock()
		logger.Info("replay finished", zap.Int("appended", res.Appended),
			zap.Int("bad_rows", res.BadRows), zap.Int("rejected", res.Rejected))
	}()

	rd := NewReader(f, t.Path)
	for {
		s, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if errors.Is(err, ErrBadRow) {
			res.BadRows++
			logger.Warn("skipping row", zap.Error(err))
			continue
		}
		if err != nil {
			r.fail(err)
			logger.Error("reading source", zap.Error(err))
			return
		}

		if !seen {
			origin, seen = s.Timestamp, true
		}
		if r.speed > 0 {
			due := start.Add(time.Duration((s.Timestamp - origin) / r.speed * float64(time.Second)))
			if d := time.Until(due); d > 0 {
				if timer == nil {
					timer = time.NewTimer(d)
				} else {
					timer.Reset(d)
				}
				select {
				case <-timer.C:
				case <-r.ctx.Done():
					return
				}
			}
		}
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		if err := r.appender.Append(t.Channel, s); err != nil {
			res.Rejected++
			logger.Debug("sample rejected", zap.Float64("timestamp", s.Timestamp), zap.Error(err))
			continue
		}
		res.Appended++
	}
}

func (r *Replayer) fail(err error) {
	r.mu.Lock()
	r.err = multierr.Append(r.err, err)
	r.mu.Unlock()
}
