package curve

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"xysync/pkg/model"
)

func TestCurve(t *testing.T) {
	c := New(model.Channel{Name: "V"}, model.Channel{Name: "I"})
	assert.Equal(t, "I vs V", c.Name())

	_, ok := c.Bounds()
	assert.False(t, ok)
	_, _, ok = c.Last()
	assert.False(t, ok)

	c.OnPair(model.Pair{Timestamp: 6, A: 3.5, B: 10})
	c.OnPair(model.Pair{Timestamp: 7, A: 4, B: 9.5})
	c.OnPair(model.Pair{Timestamp: 8, A: 4.5, B: 9})

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []Point{{3.5, 10}, {4, 9.5}, {4.5, 9}}, c.Points())

	r, ok := c.Bounds()
	require.True(t, ok)
	assert.Equal(t, Rect{MinX: 3.5, MaxX: 4.5, MinY: 9, MaxY: 10}, r)

	p, ts, ok := c.Last()
	require.True(t, ok)
	assert.Equal(t, Point{4.5, 9}, p)
	assert.Equal(t, 8.0, ts)
}

func TestFactory(t *testing.T) {
	var f Factory
	v, err := f.NewXYView(model.Channel{Name: "A"}, model.Channel{Name: "B"})
	require.NoError(t, err)
	v.OnPair(model.Pair{Timestamp: 1, A: 1, B: 2})

	curves := f.Curves()
	require.Len(t, curves, 1)
	assert.Equal(t, 1, curves[0].Len())
}

func TestCurve_BoundsTrackEveryPoint(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	c := New(model.Channel{Name: "X"}, model.Channel{Name: "Y"})
	var xs, ys []float64
	for i := 0; i < 500; i++ {
		x, y := rng.NormFloat64()*10, rng.NormFloat64()*100
		xs, ys = append(xs, x), append(ys, y)
		c.OnPair(model.Pair{Timestamp: float64(i), A: x, B: y})

		r, ok := c.Bounds()
		require.True(t, ok)
		require.Equal(t, Rect{
			MinX: floats.Min(xs), MaxX: floats.Max(xs),
			MinY: floats.Min(ys), MaxY: floats.Max(ys),
		}, r, "after %d points", i+1)
	}
}

func TestFactory_ReleaseXYView(t *testing.T) {
	var f Factory
	a, err := f.NewXYView(model.Channel{Name: "A"}, model.Channel{Name: "B"})
	require.NoError(t, err)
	b, err := f.NewXYView(model.Channel{Name: "A"}, model.Channel{Name: "C"})
	require.NoError(t, err)

	f.ReleaseXYView(a)
	require.Len(t, f.Curves(), 1)
	assert.Same(t, b, f.Curves()[0])

	f.ReleaseXYView(a)
	assert.Len(t, f.Curves(), 1)
}
