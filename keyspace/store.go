package keyspace

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	bolt "go.etcd.io/bbolt"
)

// Store persists snapshots of a keyspace. Payloads are opaque bytes keyed
// by digest key; Save replaces the previous snapshot entirely.
type Store interface {
	Save(ctx context.Context, payloads map[string][]byte) error
	Load(ctx context.Context) (map[string][]byte, error)
	Close() error
}

var digestBucket = []byte("tdigest")

// BoltStore keeps snapshots in a bbolt file.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the bbolt file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return nil, errors.Wrapf(err, "create directory for %q", path)
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(digestBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "create bucket %q", digestBucket)
	}
	return &BoltStore{db: db}, nil
}

// Save ...
func (s *BoltStore) Save(ctx context.Context, payloads map[string][]byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(digestBucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return errors.Wrap(err, "drop previous snapshot")
		}
		b, err := tx.CreateBucket(digestBucket)
		if err != nil {
			return errors.Wrap(err, "create snapshot bucket")
		}
		for k, v := range payloads {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := b.Put([]byte(k), v); err != nil {
				return errors.Wrapf(err, "put %q", k)
			}
		}
		return nil
	})
}

// Load ...
func (s *BoltStore) Load(ctx context.Context) (map[string][]byte, error) {
	payloads := map[string][]byte{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(digestBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// bbolt values are only valid inside the transaction.
			payloads[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "load snapshot")
	}
	return payloads, nil
}

// Close ...
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// RedisStore keeps snapshots in a single redis hash.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore stores snapshots in the hash at key.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Save ...
func (s *RedisStore) Save(ctx context.Context, payloads map[string][]byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(payloads) == 0 {
			return nil
		}
		values := make(map[string]interface{}, len(payloads))
		for k, v := range payloads {
			values[k] = v
		}
		pipe.HSet(ctx, s.key, values)
		return nil
	})
	return errors.Wrapf(err, "save snapshot to %q", s.key)
}

// Load ...
func (s *RedisStore) Load(ctx context.Context) (map[string][]byte, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "load snapshot from %q", s.key)
	}
	payloads := make(map[string][]byte, len(values))
	for k, v := range values {
		payloads[k] = []byte(v)
	}
	return payloads, nil
}

// Close ...
func (s *RedisStore) Close() error {
	return s.client.Close()
}
