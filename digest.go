package tdigest

import (
	"math"
	"sort"
	"unsafe"

	"github.com/pkg/errors"
)

const (
	// DefaultCompression is used when no compression is given.
	DefaultCompression = 400
	// MaxCompression is the largest accepted compression.
	MaxCompression = math.MaxInt32

	// Recompression runs once the number of insertions since the previous
	// one exceeds compressFactor * compression.
	compressFactor = 2
)

// TDigest is a bounded memory sketch answering approximate CDF and quantile
// queries over a stream of weighted samples.
//
// A TDigest is not safe for concurrent mutation. Queries may run
// concurrently with each other but not with Add, Compress or Merge.
type TDigest struct {
	compression int
	centroids   *centroidList
	unmerged    uint64
}

// Info describes the state of a digest.
type Info struct {
	Compression int
	Centroids   int
	TotalWeight uint64
	Unmerged    uint64
	MemoryUsage int
}

// New creates an empty digest. Without options the DefaultCompression is used.
func New(opts ...Option) (*TDigest, error) {
	td := &TDigest{compression: DefaultCompression}
	for _, opt := range opts {
		opt(td)
	}
	return NewWithCompression(td.compression)
}

// NewWithCompression creates an empty digest with the given compression.
func NewWithCompression(compression int) (*TDigest, error) {
	if compression <= 0 || compression > MaxCompression {
		return nil, errors.Wrapf(ErrInvalidCompression, "got %d", compression)
	}
	return &TDigest{
		compression: compression,
		centroids:   newCentroidList(capacityHint(compression)),
	}, nil
}

func capacityHint(compression int) int {
	if compression > 1024 {
		return 1024
	}
	return compression
}

// Add inserts a single sample with the given weight.
func (td *TDigest) Add(value float64, weight uint64) error {
	if err := td.validate(value, weight, 0); err != nil {
		return err
	}
	td.add(value, weight)
	return nil
}

// AddBatch inserts all samples in order and returns the total weight added.
// Every sample is validated before any of them is applied, so a malformed
// batch leaves the digest untouched.
func (td *TDigest) AddBatch(samples []Sample) (uint64, error) {
	var sum uint64
	for i, s := range samples {
		if err := td.validate(s.Value, s.Weight, sum); err != nil {
			return 0, errors.Wrapf(err, "sample %d", i)
		}
		sum += s.Weight
	}
	for _, s := range samples {
		td.add(s.Value, s.Weight)
	}
	return sum, nil
}

// validate checks a sample. pending is weight already accepted but not yet
// applied in the same batch.
func (td *TDigest) validate(value float64, weight, pending uint64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errors.Wrapf(ErrInvalidValue, "got %v", value)
	}
	if weight == 0 {
		return errors.Wrap(ErrInvalidWeight, "got 0")
	}
	total := td.centroids.total + pending
	if total < pending || total+weight < total {
		return errors.Wrapf(ErrInvalidWeight, "total weight overflows with %d", weight)
	}
	return nil
}

func (td *TDigest) add(value float64, weight uint64) {
	cl := td.centroids
	cl.add(scale(td.compression), value, weight, float64(cl.total+weight))

	td.unmerged++
	if td.unmerged > compressFactor*uint64(td.compression) {
		td.Compress()
	}
}

// add folds (value, weight) into the nearest admissible centroid or inserts
// a new one. norm is the total weight quantile positions are relative to.
func (cl *centroidList) add(s scale, value float64, weight uint64, norm float64) {
	if len(cl.vec) == 0 {
		cl.insert(0, value, weight)
		return
	}

	i := cl.locate(value)
	if i < len(cl.vec) && cl.vec[i].Mean == value {
		cl.mergeInto(i, value, weight)
		return
	}

	candidate := cl.nearest(i, value)
	before := cl.cumulativeWeightBefore(candidate)
	if s.admits(before, cl.vec[candidate].Weight+weight, norm) {
		cl.mergeInto(candidate, value, weight)
		return
	}
	cl.insert(i, value, weight)
}

// nearest picks the centroid closest to value among the neighbours of the
// insertion position i. On a distance tie the lighter centroid wins so the
// merged weight stays as small as possible.
func (cl *centroidList) nearest(i int, value float64) int {
	if i == 0 {
		return 0
	}
	if i == len(cl.vec) {
		return i - 1
	}
	left, right := cl.vec[i-1], cl.vec[i]
	dl, dr := value-left.Mean, right.Mean-value
	switch {
	case dl < dr:
		return i - 1
	case dr < dl:
		return i
	case right.Weight < left.Weight:
		return i
	default:
		return i - 1
	}
}

// Compress rebuilds the centroid set from scratch. The existing centroids
// are replayed in ascending order into an empty store, with quantile
// positions taken relative to the final total weight. Compressing an
// already compressed digest reproduces the same centroids.
func (td *TDigest) Compress() {
	td.unmerged = 0
	if td.centroids.Size() <= 1 {
		return
	}
	td.centroids = td.rebuild(td.centroids.vec, td.centroids.total)
}

func (td *TDigest) rebuild(sorted []Centroid, total uint64) *centroidList {
	s := scale(td.compression)
	cl := newCentroidList(capacityHint(td.compression))
	for _, c := range sorted {
		cl.add(s, c.Mean, c.Weight, float64(total))
	}
	return cl
}

// Merge folds the centroids of all others into td and recompresses. The
// others are left untouched and td keeps its own compression.
func (td *TDigest) Merge(others ...*TDigest) error {
	total := td.centroids.total
	size := td.centroids.Size()
	for _, o := range others {
		if o == nil || o == td {
			continue
		}
		if total+o.centroids.total < total {
			return errors.Wrap(ErrInvalidWeight, "merged total weight overflows")
		}
		total += o.centroids.total
		size += o.centroids.Size()
	}

	all := make([]Centroid, 0, size)
	all = append(all, td.centroids.vec...)
	for _, o := range others {
		if o == nil || o == td {
			continue
		}
		all = append(all, o.centroids.vec...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Mean < all[j].Mean })

	td.centroids = td.rebuild(all, total)
	td.unmerged = 0
	return nil
}

// Compression ...
func (td *TDigest) Compression() int {
	return td.compression
}

// TotalWeight returns the sum of all weights ever added.
func (td *TDigest) TotalWeight() uint64 {
	return td.centroids.total
}

// Size returns the number of centroids.
func (td *TDigest) Size() int {
	return td.centroids.Size()
}

// Centroids returns a copy of the centroids in ascending mean order.
func (td *TDigest) Centroids() []Centroid {
	return td.centroids.clone()
}

// Reset empties the digest, keeping its compression.
func (td *TDigest) Reset() {
	td.centroids.Clear()
	td.unmerged = 0
}

// Info ...
func (td *TDigest) Info() Info {
	mem := int(unsafe.Sizeof(*td)) + int(unsafe.Sizeof(*td.centroids)) +
		cap(td.centroids.vec)*int(unsafe.Sizeof(Centroid{}))
	return Info{
		Compression: td.compression,
		Centroids:   td.centroids.Size(),
		TotalWeight: td.centroids.total,
		Unmerged:    td.unmerged,
		MemoryUsage: mem,
	}
}
