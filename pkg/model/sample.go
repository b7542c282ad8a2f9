package model

import "math"

// Sample is one measurement. Timestamp is in seconds.
type Sample struct {
	Timestamp float64
	Value     float64
}

type Samples []Sample

func (s Samples) Append(sample Sample) Samples {
	return append(s, sample)
}

// Timestamps returns the timestamp column of s.
func (s Samples) Timestamps() []float64 {
	ts := make([]float64, len(s))
	for i := range s {
		ts[i] = s[i].Timestamp
	}
	return ts
}

// Values returns the value column of s.
func (s Samples) Values() []float64 {
	vs := make([]float64, len(s))
	for i := range s {
		vs[i] = s[i].Value
	}
	return vs
}

// ValidTimestamp reports whether ts can be stored in a series.
func ValidTimestamp(ts float64) bool {
	return !math.IsNaN(ts) && !math.IsInf(ts, 0)
}
