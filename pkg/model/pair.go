package model

// Pair is a time-aligned value tuple of two series. A and B are either
// native samples or linear interpolations between the bracketing samples.
type Pair struct {
	Timestamp float64 `json:"t"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
}
