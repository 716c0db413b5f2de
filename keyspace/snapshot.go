package keyspace

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/axiomhq/tdigest"
)

// Snapshot compresses every digest and saves it to store.
func (ks *Keyspace) Snapshot(ctx context.Context, store Store) error {
	ks.mu.RLock()
	entries := make(map[string]*entry, len(ks.entries))
	for k, e := range ks.entries {
		entries[k] = e
	}
	ks.mu.RUnlock()

	payloads := make(map[string][]byte, len(entries))
	for k, e := range entries {
		e.Lock()
		data, err := e.td.MarshalBinary()
		e.Unlock()
		if err != nil {
			return errors.Wrapf(err, "marshal %q", k)
		}
		payloads[k] = data
	}

	if err := store.Save(ctx, payloads); err != nil {
		return err
	}
	ks.log.WithField("keys", len(payloads)).Info("saved snapshot")
	return nil
}

// Restore replaces the keyspace with the snapshot in store. Nothing
// changes if any payload fails to decode.
func (ks *Keyspace) Restore(ctx context.Context, store Store) error {
	payloads, err := store.Load(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(payloads))
	for k := range payloads {
		keys = append(keys, k)
	}
	decoded := make([]*tdigest.TDigest, len(keys))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, k := range keys {
		i, k := i, k
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			td := &tdigest.TDigest{}
			if err := td.UnmarshalBinary(payloads[k]); err != nil {
				return errors.Wrapf(err, "decode %q", k)
			}
			decoded[i] = td
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	digests := make(map[string]*tdigest.TDigest, len(keys))
	for i, k := range keys {
		digests[k] = decoded[i]
		ks.log.WithFields(logrus.Fields{"key": k, "centroids": decoded[i].Size()}).Debug("restored digest")
	}

	ks.replace(digests)
	ks.log.WithField("keys", len(digests)).Info("restored snapshot")
	return nil
}
