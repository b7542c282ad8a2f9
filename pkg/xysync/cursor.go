package xysync

import "xysync/pkg/model"

// Cursor records how far one side of a synchronized pair has progressed.
//
// Own samples at index >= next are the deferred requests of this side: their
// timestamps lie beyond the newest sample of the other series, so no bracket
// exists for them yet. lo is the index in the other series of the last lower
// bracket found. Both only move forward.
type Cursor struct {
	next int
	lo   int
}

// Next is the index of the first own sample not yet resolved.
func (c *Cursor) Next() int {
	return c.next
}

// Pending returns the number of deferred requests given the own series length.
func (c *Cursor) Pending(ownLen int) int {
	if ownLen < c.next {
		return 0
	}
	return ownLen - c.next
}

// Resolve consumes deferred requests of own, oldest first, against other and
// calls emit with each request and the other series' value at its timestamp.
//
// Resolution stops at the first request newer than other's newest sample.
// Requests older than other's first sample can never be bracketed and are
// dropped. A request whose timestamp exactly matches an other-side sample that
// the other cursor (otherNext) has already consumed is dropped as well: that
// pair was emitted from the other side.
func (c *Cursor) Resolve(own, other model.Samples, otherNext int, emit func(req model.Sample, otherValue float64)) {
	if len(other) == 0 {
		return
	}
	first := other[0].Timestamp
	last := other[len(other)-1].Timestamp
	for c.next < len(own) {
		req := own[c.next]
		if req.Timestamp > last {
			return
		}
		c.next++
		if req.Timestamp < first {
			continue
		}
		lo := c.seek(other, req.Timestamp)
		if other[lo].Timestamp == req.Timestamp && lo < otherNext {
			continue
		}
		emit(req, valueAt(other, lo, req.Timestamp))
	}
}

// seek moves lo to the last index of other with timestamp <= t. With equal
// timestamps the later-inserted sample wins.
func (c *Cursor) seek(other model.Samples, t float64) int {
	for c.lo+1 < len(other) && other[c.lo+1].Timestamp <= t {
		c.lo++
	}
	return c.lo
}

// valueAt interpolates towards lo+1, so among duplicates at the upper
// bracket the first-inserted one is used.
func valueAt(s model.Samples, lo int, t float64) float64 {
	if s[lo].Timestamp == t || lo+1 >= len(s) {
		return s[lo].Value
	}
	return Interpolate(s[lo], s[lo+1], t)
}

// Interpolate returns the linear interpolation between lo and hi at t.
// Equal bracket timestamps yield lo.Value.
func Interpolate(lo, hi model.Sample, t float64) float64 {
	if hi.Timestamp == lo.Timestamp {
		return lo.Value
	}
	return lo.Value + (hi.Value-lo.Value)*(t-lo.Timestamp)/(hi.Timestamp-lo.Timestamp)
}
