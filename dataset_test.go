package tdigest

import (
	"math/rand"
	"sort"
)

// generator produces a stream of sample values.
type generator interface {
	Generate() float64
}

type uniformGenerator struct {
	r      *rand.Rand
	lo, hi float64
}

func newUniform(seed int64, lo, hi float64) *uniformGenerator {
	return &uniformGenerator{r: rand.New(rand.NewSource(seed)), lo: lo, hi: hi}
}

func (g *uniformGenerator) Generate() float64 { return g.lo + g.r.Float64()*(g.hi-g.lo) }

type normalGenerator struct {
	r            *rand.Rand
	mean, stddev float64
}

func newNormal(seed int64, mean, stddev float64) *normalGenerator {
	return &normalGenerator{r: rand.New(rand.NewSource(seed)), mean: mean, stddev: stddev}
}

func (g *normalGenerator) Generate() float64 { return g.r.NormFloat64()*g.stddev + g.mean }

type exponentialGenerator struct {
	r    *rand.Rand
	rate float64
}

func newExponential(seed int64, rate float64) *exponentialGenerator {
	return &exponentialGenerator{r: rand.New(rand.NewSource(seed)), rate: rate}
}

func (g *exponentialGenerator) Generate() float64 { return g.r.ExpFloat64() / g.rate }

// dataset keeps every value to answer exact rank questions.
type dataset struct {
	values []float64
	sorted bool
}

func (d *dataset) Add(v float64) {
	d.values = append(d.values, v)
	d.sorted = false
}

func (d *dataset) sort() {
	if !d.sorted {
		sort.Float64s(d.values)
		d.sorted = true
	}
}

// Quantile interpolates between the two closest ranks.
func (d *dataset) Quantile(q float64) float64 {
	d.sort()
	ix := float64(len(d.values))*q - 0.5
	if ix <= 0 {
		return d.values[0]
	}
	idx := int(ix)
	if idx+1 >= len(d.values) {
		return d.values[len(d.values)-1]
	}
	p := ix - float64(idx)
	return d.values[idx]*(1-p) + d.values[idx+1]*p
}

// CDF counts values below x and half of those equal to x.
func (d *dataset) CDF(x float64) float64 {
	d.sort()
	below := sort.SearchFloat64s(d.values, x)
	atOrBelow := sort.Search(len(d.values), func(i int) bool { return d.values[i] > x })
	return float64(below+atOrBelow) / 2 / float64(len(d.values))
}

func fill(td *TDigest, g generator, n int) *dataset {
	d := &dataset{values: make([]float64, 0, n)}
	for i := 0; i < n; i++ {
		v := g.Generate()
		if err := td.Add(v, 1); err != nil {
			panic(err)
		}
		d.Add(v)
	}
	return d
}
