package tdigest

import (
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestList(entries ...Centroid) *centroidList {
	cl := newCentroidList(len(entries))
	for _, c := range entries {
		cl.insert(cl.Size(), c.Mean, c.Weight)
	}
	return cl
}

func TestCentroidListLocate(t *testing.T) {
	cl := newTestList(Centroid{-1, 7}, Centroid{2, 3}, Centroid{5, 9})

	for _, tc := range []struct {
		mean     float64
		expected int
	}{
		{-5, 0},
		{-1, 0},
		{0, 1},
		{2, 1},
		{4.9, 2},
		{5, 2},
		{6, 3},
	} {
		if got := cl.locate(tc.mean); got != tc.expected {
			t.Errorf("locate(%v): expected %v, got %v", tc.mean, tc.expected, got)
		}
	}
}

func TestCentroidListCumulativeWeight(t *testing.T) {
	cl := newTestList(Centroid{-13, 4}, Centroid{-7, 1}, Centroid{-1, 7}, Centroid{2, 3}, Centroid{5, 9})

	expected := []uint64{0, 4, 5, 12, 15, 24}
	for i, exp := range expected {
		if got := cl.cumulativeWeightBefore(i); got != exp {
			t.Errorf("cumulativeWeightBefore(%d): expected %v, got %v", i, exp, got)
		}
	}
	if got := cl.cumulativeWeightBefore(-1); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestCentroidListInsert(t *testing.T) {
	cl := newCentroidList(0)
	cl.insert(0, 5, 9)
	cl.insert(0, -1, 7)
	cl.insert(1, 2, 3)

	expected := []Centroid{{-1, 7}, {2, 3}, {5, 9}}
	if !reflect.DeepEqual(expected, cl.vec) {
		t.Errorf("expected %v, got %v", expected, cl.vec)
	}
	if cl.total != 19 {
		t.Errorf("expected 19, got %v", cl.total)
	}
}

func TestCentroidListMergeInto(t *testing.T) {
	assert := assert.New(t)

	cl := newTestList(Centroid{0, 1}, Centroid{10, 3})
	cl.mergeInto(1, 14, 1)

	assert.Equal(2, cl.Size())
	assert.Equal(Centroid{11, 4}, cl.vec[1])
	assert.Equal(uint64(5), cl.total)
}

func TestCentroidListMergeCollapsesEqualMeans(t *testing.T) {
	assert := assert.New(t)

	// Merging 2 into {1, 1} moves its mean to 2 only with a huge weight
	// relative to the centroid; the result must not duplicate {2, 1}.
	cl := newTestList(Centroid{1, 1}, Centroid{2, 1})
	cl.mergeInto(0, 2, 1<<62)

	assert.Equal(1, cl.Size())
	assert.Equal(2.0, cl.vec[0].Mean)
	assert.Equal(uint64(1<<62+2), cl.vec[0].Weight)
	assert.Equal(uint64(1<<62+2), cl.total)
}

func TestCentroidMergedStaysInRange(t *testing.T) {
	c := Centroid{Mean: 0.1, Weight: 3}
	for _, x := range []float64{0.1, 0.2, 0.3, -1e300, 1e300} {
		m := c.merged(x, 7)
		lo, hi := c.Mean, x
		if lo > hi {
			lo, hi = hi, lo
		}
		if m < lo || m > hi {
			t.Errorf("merged(%v) = %v outside [%v, %v]", x, m, lo, hi)
		}
	}
}

func TestCentroidMergedOppositeExtremes(t *testing.T) {
	assert.InEpsilon(t, -5e307, Centroid{Mean: -1e308, Weight: 3}.merged(1e308, 1), 1e-12)
	assert.Equal(t, 0.0, Centroid{Mean: math.MaxFloat64, Weight: 1}.merged(-math.MaxFloat64, 1))
	assert.Equal(t, 5e307, Centroid{Mean: 1e308, Weight: 1}.merged(0, 1))
}

func TestCentroidListClear(t *testing.T) {
	cl := newTestList(Centroid{1, 1}, Centroid{2, 1})
	cl.Clear()
	if cl.Size() != 0 || cl.total != 0 {
		t.Errorf("expected empty list, got %v (total %v)", cl.vec, cl.total)
	}
}
