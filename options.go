package tdigest

// Option configures a TDigest built with New.
type Option func(*TDigest)

// WithCompression sets the digest compression.
//
// Compression rules the threshold under which samples are merged together:
// the more often distinct samples are merged the more precision is lost.
// A higher value keeps more centroids in memory (better precision) at the
// cost of a larger serialized payload and slower insertion. The value must
// lie in (0, MaxCompression]; New reports ErrInvalidCompression otherwise.
func WithCompression(compression int) Option {
	return func(td *TDigest) {
		td.compression = compression
	}
}
