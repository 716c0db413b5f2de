package tdigest

import (
	"fmt"
	"math"
)

// Centroid is a weighted representative point summarizing a cluster of samples.
type Centroid struct {
	Mean   float64
	Weight uint64
}

// String ...
func (c Centroid) String() string {
	return fmt.Sprintf("{%v %d}", c.Mean, c.Weight)
}

// merged returns the mean the centroid would have after absorbing (mean, weight).
// The result stays inside [min(c.Mean, mean), max(c.Mean, mean)].
func (c Centroid) merged(mean float64, weight uint64) float64 {
	f := float64(weight) / float64(c.Weight+weight)
	return lerp(c.Mean, mean, f)
}

// lerp interpolates from a towards b by f in [0, 1] and keeps the result
// between a and b. Means of opposite sign near the float64 limits would
// overflow b - a, so those are blended as a*(1-f) + b*f instead.
func lerp(a, b, f float64) float64 {
	var m float64
	if d := b - a; math.IsInf(d, 0) {
		m = a*(1-f) + b*f
	} else {
		m = a + d*f
	}
	if a > b {
		a, b = b, a
	}
	return clamp(m, a, b)
}

// Sample is a single weighted observation.
type Sample struct {
	Value  float64
	Weight uint64
}
