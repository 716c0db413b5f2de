// Package keyspace hosts named digests the way a key-value store would:
// per key locking, command shaped entry points, snapshot persistence and
// an append-only replay log.
package keyspace

import (
	"io"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/axiomhq/tdigest"
)

var (
	// ErrKeyExists is returned when creating a key that is already present.
	ErrKeyExists = errors.New("key already exists")
	// ErrNoSuchKey is returned when a command requires an existing key.
	ErrNoSuchKey = errors.New("no such key")
)

// Keyspace maps keys to digests. Mutations of a digest hold its entry lock
// exclusively, queries hold it shared.
type Keyspace struct {
	mu      sync.RWMutex
	entries map[string]*entry

	log                logrus.FieldLogger
	metrics            *metrics
	defaultCompression int
}

type entry struct {
	sync.RWMutex
	td *tdigest.TDigest
}

// Option configures a Keyspace.
type Option func(*Keyspace)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logrus.FieldLogger) Option {
	return func(ks *Keyspace) {
		ks.log = log
	}
}

// WithRegisterer registers the keyspace metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(ks *Keyspace) {
		ks.metrics = newMetrics(reg)
	}
}

// WithDefaultCompression sets the compression of keys created implicitly.
func WithDefaultCompression(compression int) Option {
	return func(ks *Keyspace) {
		ks.defaultCompression = compression
	}
}

// New creates an empty keyspace.
func New(opts ...Option) *Keyspace {
	discard := logrus.New()
	discard.Out = io.Discard

	ks := &Keyspace{
		entries:            map[string]*entry{},
		log:                discard,
		defaultCompression: tdigest.DefaultCompression,
	}
	for _, opt := range opts {
		opt(ks)
	}
	if ks.metrics == nil {
		ks.metrics = newMetrics(nil)
	}
	return ks
}

func (ks *Keyspace) lookup(key string) (*entry, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	e, ok := ks.entries[key]
	return e, ok
}

// getOrCreate returns the entry for key, creating it with the default
// compression when absent.
func (ks *Keyspace) getOrCreate(key string) (*entry, error) {
	if e, ok := ks.lookup(key); ok {
		return e, nil
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	if e, ok := ks.entries[key]; ok {
		return e, nil
	}
	td, err := tdigest.NewWithCompression(ks.defaultCompression)
	if err != nil {
		return nil, err
	}
	e := &entry{td: td}
	ks.entries[key] = e
	ks.metrics.keys.Set(float64(len(ks.entries)))
	return e, nil
}

// Create adds an empty digest under key.
func (ks *Keyspace) Create(key string, compression int) error {
	td, err := tdigest.NewWithCompression(compression)
	if err != nil {
		return ks.metrics.observe("new", err)
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	if _, ok := ks.entries[key]; ok {
		return ks.metrics.observe("new", errors.Wrapf(ErrKeyExists, "%q", key))
	}
	ks.entries[key] = &entry{td: td}
	ks.metrics.keys.Set(float64(len(ks.entries)))
	return ks.metrics.observe("new", nil)
}

// Add inserts samples into the digest under key, creating it when absent.
// It returns the total weight added. A malformed batch changes nothing.
func (ks *Keyspace) Add(key string, samples []tdigest.Sample) (uint64, error) {
	e, err := ks.getOrCreate(key)
	if err != nil {
		return 0, ks.metrics.observe("add", err)
	}

	e.Lock()
	defer e.Unlock()
	added, err := e.td.AddBatch(samples)
	if err != nil {
		return 0, ks.metrics.observe("add", errors.Wrapf(err, "%q", key))
	}
	return added, ks.metrics.observe("add", nil)
}

// CDF evaluates the digest under key at every x. ok is false when the key
// is absent or its digest is empty.
func (ks *Keyspace) CDF(key string, xs []float64) ([]float64, bool) {
	e, found := ks.lookup(key)
	if !found {
		ks.metrics.observe("cdf", nil)
		return nil, false
	}

	e.RLock()
	defer e.RUnlock()
	ret, ok := e.td.CDFs(xs)
	ks.metrics.observe("cdf", nil)
	return ret, ok
}

// Quantile evaluates the digest under key at every q. ok is false when the
// key is absent or its digest is empty.
func (ks *Keyspace) Quantile(key string, qs []float64) ([]float64, bool, error) {
	e, found := ks.lookup(key)
	if !found {
		for _, q := range qs {
			if !(q >= 0 && q <= 1) {
				return nil, false, ks.metrics.observe("quantile", errors.Wrapf(tdigest.ErrInvalidQuantile, "got %v", q))
			}
		}
		ks.metrics.observe("quantile", nil)
		return nil, false, nil
	}

	e.RLock()
	defer e.RUnlock()
	ret, ok, err := e.td.Quantiles(qs)
	return ret, ok, ks.metrics.observe("quantile", err)
}

// Merge folds the digests under srcs into the one under dest, creating
// dest when absent. Every source must exist.
func (ks *Keyspace) Merge(dest string, srcs ...string) error {
	if len(srcs) == 0 {
		return ks.metrics.observe("merge", errors.Wrap(ErrBadCommand, "no source keys"))
	}
	sources := make(map[string]*entry, len(srcs))
	for _, src := range srcs {
		if src == dest {
			continue
		}
		e, ok := ks.lookup(src)
		if !ok {
			return ks.metrics.observe("merge", errors.Wrapf(ErrNoSuchKey, "%q", src))
		}
		sources[src] = e
	}
	d, err := ks.getOrCreate(dest)
	if err != nil {
		return ks.metrics.observe("merge", err)
	}

	// Locks are taken in key order so concurrent merges cannot deadlock.
	keys := make([]string, 0, len(sources)+1)
	keys = append(keys, dest)
	for k := range sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == dest {
			d.Lock()
			defer d.Unlock()
			continue
		}
		sources[k].RLock()
		defer sources[k].RUnlock()
	}

	others := make([]*tdigest.TDigest, 0, len(sources))
	for _, k := range keys {
		if k != dest {
			others = append(others, sources[k].td)
		}
	}
	ks.log.WithFields(logrus.Fields{"key": dest, "sources": len(others)}).Debug("merging digests")
	return ks.metrics.observe("merge", d.td.Merge(others...))
}

// Compress recompresses the digest under key.
func (ks *Keyspace) Compress(key string) error {
	e, ok := ks.lookup(key)
	if !ok {
		return ks.metrics.observe("compress", errors.Wrapf(ErrNoSuchKey, "%q", key))
	}
	e.Lock()
	defer e.Unlock()
	e.td.Compress()
	return ks.metrics.observe("compress", nil)
}

// Info describes the digest under key.
func (ks *Keyspace) Info(key string) (tdigest.Info, error) {
	e, ok := ks.lookup(key)
	if !ok {
		return tdigest.Info{}, ks.metrics.observe("debug", errors.Wrapf(ErrNoSuchKey, "%q", key))
	}
	e.RLock()
	defer e.RUnlock()
	return e.td.Info(), ks.metrics.observe("debug", nil)
}

// Delete removes key and reports whether it existed.
func (ks *Keyspace) Delete(key string) bool {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	_, ok := ks.entries[key]
	delete(ks.entries, key)
	ks.metrics.keys.Set(float64(len(ks.entries)))
	return ok
}

// Keys returns all keys in sorted order.
func (ks *Keyspace) Keys() []string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	keys := make([]string, 0, len(ks.entries))
	for k := range ks.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// replace swaps the whole content of the keyspace.
func (ks *Keyspace) replace(digests map[string]*tdigest.TDigest) {
	entries := make(map[string]*entry, len(digests))
	for k, td := range digests {
		entries[k] = &entry{td: td}
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.entries = entries
	ks.metrics.keys.Set(float64(len(ks.entries)))
}
