package tdigest

import "sort"

// centroidList is the ordered centroid store. Entries are kept strictly
// ascending by mean and every weight is positive.
type centroidList struct {
	vec   []Centroid
	total uint64
}

func newCentroidList(capacity int) *centroidList {
	return &centroidList{
		vec: make([]Centroid, 0, capacity),
	}
}

// locate returns the index of the first centroid whose mean is >= mean.
// An existing centroid with exactly that mean is therefore returned as is.
func (cl *centroidList) locate(mean float64) int {
	return sort.Search(len(cl.vec), func(i int) bool { return cl.vec[i].Mean >= mean })
}

// cumulativeWeightBefore returns the sum of the weights of all centroids
// strictly before position i. It walks from whichever end is closer.
func (cl *centroidList) cumulativeWeightBefore(i int) uint64 {
	if i <= 0 {
		return 0
	}
	if i >= len(cl.vec) {
		return cl.total
	}
	var sum uint64
	if i <= len(cl.vec)/2 {
		for _, c := range cl.vec[:i] {
			sum += c.Weight
		}
		return sum
	}
	for _, c := range cl.vec[i:] {
		sum += c.Weight
	}
	return cl.total - sum
}

// insert places a new centroid at position i.
func (cl *centroidList) insert(i int, mean float64, weight uint64) {
	cl.vec = append(cl.vec, Centroid{})
	copy(cl.vec[i+1:], cl.vec[i:])
	cl.vec[i] = Centroid{Mean: mean, Weight: weight}
	cl.total += weight
}

// mergeInto folds (mean, weight) into the centroid at position i. If the
// updated mean lands on a neighbour's mean the two are collapsed.
func (cl *centroidList) mergeInto(i int, mean float64, weight uint64) {
	c := &cl.vec[i]
	c.Mean = c.merged(mean, weight)
	c.Weight += weight
	cl.total += weight

	if i+1 < len(cl.vec) && cl.vec[i+1].Mean == c.Mean {
		cl.collapse(i)
	} else if i > 0 && cl.vec[i-1].Mean == c.Mean {
		cl.collapse(i - 1)
	}
}

// collapse merges the centroid at i+1 into the one at i. Both share a mean.
func (cl *centroidList) collapse(i int) {
	cl.vec[i].Weight += cl.vec[i+1].Weight
	cl.vec = append(cl.vec[:i+1], cl.vec[i+2:]...)
}

// Size ...
func (cl *centroidList) Size() int {
	return len(cl.vec)
}

// Clear ...
func (cl *centroidList) Clear() {
	cl.vec = cl.vec[:0]
	cl.total = 0
}

// clone returns a copy of the centroids.
func (cl *centroidList) clone() []Centroid {
	ret := make([]Centroid, len(cl.vec))
	copy(ret, cl.vec)
	return ret
}
