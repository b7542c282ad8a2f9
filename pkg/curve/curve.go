// Package curve keeps the data of XY curves built from synchronized pairs.
package curve

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"xysync/pkg/model"
	"xysync/pkg/session"
)

type Point struct {
	X float64
	Y float64
}

// Rect is the bounding rectangle of a curve.
type Rect struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Curve plots channel A on the x axis against channel B on the y axis.
type Curve struct {
	name string

	mu     sync.RWMutex
	ts     []float64
	xs     []float64
	ys     []float64
	bounds Rect
}

var _ session.View = (*Curve)(nil)

func New(x, y model.Channel) *Curve {
	return &Curve{name: fmt.Sprintf("%s vs %s", y.Name, x.Name)}
}

func (c *Curve) Name() string {
	return c.name
}

func (c *Curve) OnPair(p model.Pair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.xs) == 0 {
		c.bounds = Rect{MinX: p.A, MaxX: p.A, MinY: p.B, MaxY: p.B}
	} else {
		c.bounds.MinX = math.Min(c.bounds.MinX, p.A)
		c.bounds.MaxX = math.Max(c.bounds.MaxX, p.A)
		c.bounds.MinY = math.Min(c.bounds.MinY, p.B)
		c.bounds.MaxY = math.Max(c.bounds.MaxY, p.B)
	}
	c.ts = append(c.ts, p.Timestamp)
	c.xs = append(c.xs, p.A)
	c.ys = append(c.ys, p.B)
}

func (c *Curve) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.xs)
}

func (c *Curve) Points() []Point {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pts := make([]Point, len(c.xs))
	for i := range c.xs {
		pts[i] = Point{X: c.xs[i], Y: c.ys[i]}
	}
	return pts
}

// Last returns the newest point and its timestamp.
func (c *Curve) Last() (Point, float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := len(c.xs)
	if n == 0 {
		return Point{}, 0, false
	}
	return Point{X: c.xs[n-1], Y: c.ys[n-1]}, c.ts[n-1], true
}

// Bounds returns the bounding rectangle, or false for an empty curve.
func (c *Curve) Bounds() (Rect, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.xs) == 0 {
		return Rect{}, false
	}
	return c.bounds, true
}

// Factory creates Curves for a session.
type Factory struct {
	mu     sync.Mutex
	curves []*Curve
}

func (f *Factory) NewXYView(x, y model.Channel) (session.View, error) {
	c := New(x, y)
	f.mu.Lock()
	f.curves = append(f.curves, c)
	f.mu.Unlock()
	return c, nil
}

var _ session.ViewReleaser = (*Factory)(nil)

// ReleaseXYView forgets a curve created by f.
func (f *Factory) ReleaseXYView(v session.View) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.curves = slices.DeleteFunc(f.curves, func(c *Curve) bool { return session.View(c) == v })
}

// Curves returns every live curve.
func (f *Factory) Curves() []*Curve {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Curve(nil), f.curves...)
}
