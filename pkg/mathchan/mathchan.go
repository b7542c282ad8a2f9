// Package mathchan derives channels from two synchronized source channels.
package mathchan

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"xysync/pkg/hub"
	"xysync/pkg/model"
	"xysync/pkg/series"
)

// Op combines the two values of a synchronized pair.
type Op string

const (
	Multiply Op = "multiply"
	Divide   Op = "divide"
)

var ErrUnknownOp = errors.New("unknown math channel operation")

func ParseOp(s string) (Op, error) {
	switch op := Op(s); op {
	case Multiply, Divide:
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOp, s)
}

// Apply returns a op b. Division by zero saturates to the largest finite
// value with the sign of the dividend; a zero dividend counts as negative.
func (op Op) Apply(a, b float64) float64 {
	switch op {
	case Multiply:
		return a * b
	case Divide:
		if b == 0 {
			if a > 0 {
				return math.MaxFloat64
			}
			return -math.MaxFloat64
		}
		return a / b
	}
	return math.NaN()
}

// Channel appends op(a, b) for every synchronized pair of (a, b) to out.
type Channel struct {
	op     Op
	out    *series.Buffer
	sub    *hub.Subscription
	logger *zap.Logger
}

func New(h *hub.Hub, op Op, a, b model.ChannelID, out *series.Buffer, logger *zap.Logger) (*Channel, error) {
	if _, err := ParseOp(string(op)); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Channel{
		op:     op,
		out:    out,
		logger: logger.With(zap.String("math_channel", string(out.ID())), zap.String("op", string(op))),
	}
	sub, err := h.Subscribe(a, b, c.onPair)
	if err != nil {
		return nil, err
	}
	c.sub = sub
	return c, nil
}

func (c *Channel) onPair(p model.Pair) {
	err := c.out.Append(model.Sample{Timestamp: p.Timestamp, Value: c.op.Apply(p.A, p.B)})
	if err != nil && !errors.Is(err, series.ErrClosed) {
		c.logger.Warn("dropping derived sample", zap.Float64("timestamp", p.Timestamp), zap.Error(err))
	}
}

func (c *Channel) Output() *series.Buffer {
	return c.out
}

// Close stops deriving samples.
func (c *Channel) Close() {
	c.sub.Unsubscribe()
}
