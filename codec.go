package tdigest

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// FormatVersion identifies a persisted digest layout.
type FormatVersion int

const (
	// FormatV0 is the current layout:
	//
	//	compression   uvarint
	//	num_centroids uvarint
	//	num_centroids times:
	//	    mean      float64, little endian IEEE-754 bits
	//	    weight    uint64, little endian
	FormatV0 FormatVersion = 0

	// FormatLegacy is the layout that predates per digest compression. It
	// lacks the leading compression field; decoded digests get
	// DefaultCompression.
	FormatLegacy FormatVersion = -1

	// FormatCurrent is what Encode and MarshalBinary produce.
	FormatCurrent = FormatV0
)

const centroidEncodedSize = 16

// Encode compresses the digest in place and returns its FormatV0 encoding.
func (td *TDigest) Encode() []byte {
	td.Compress()

	vec := td.centroids.vec
	buf := make([]byte, 0, 2*binary.MaxVarintLen64+len(vec)*centroidEncodedSize)
	buf = binary.AppendUvarint(buf, uint64(td.compression))
	return appendCentroids(buf, vec)
}

func appendCentroids(buf []byte, vec []Centroid) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(vec)))
	for _, c := range vec {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(c.Mean))
		buf = binary.LittleEndian.AppendUint64(buf, c.Weight)
	}
	return buf
}

// Decode rebuilds a digest from data encoded in the given format version.
// Every stored centroid is replayed through Add in stored order, so the
// result satisfies the digest invariants even for hand-crafted input.
func Decode(data []byte, version FormatVersion) (*TDigest, error) {
	compression := uint64(DefaultCompression)
	switch version {
	case FormatV0:
		c, n := binary.Uvarint(data)
		if n <= 0 {
			return nil, errors.Wrap(ErrCorrupt, "invalid compression")
		}
		compression = c
		data = data[n:]
	case FormatLegacy:
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "version %d", version)
	}

	if compression == 0 || compression > MaxCompression {
		return nil, errors.Wrapf(ErrCorrupt, "compression %d out of range", compression)
	}
	td, err := NewWithCompression(int(compression))
	if err != nil {
		return nil, err
	}

	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, errors.Wrap(ErrCorrupt, "invalid centroid count")
	}
	data = data[n:]
	if count > uint64(len(data))/centroidEncodedSize || uint64(len(data)) != count*centroidEncodedSize {
		return nil, errors.Wrapf(ErrCorrupt, "%d centroids do not fit %d bytes", count, len(data))
	}

	for i := uint64(0); i < count; i++ {
		mean := math.Float64frombits(binary.LittleEndian.Uint64(data))
		weight := binary.LittleEndian.Uint64(data[8:])
		data = data[centroidEncodedSize:]
		if err := td.Add(mean, weight); err != nil {
			return nil, errors.Wrapf(err, "centroid %d", i)
		}
	}
	return td, nil
}

// MarshalBinary implements encoding.BinaryMarshaler. The output is a
// version byte followed by the Encode payload. Like Encode it compresses
// the digest first.
func (td *TDigest) MarshalBinary() ([]byte, error) {
	payload := td.Encode()
	buf := make([]byte, 0, 1+len(payload))
	buf = append(buf, byte(FormatCurrent))
	return append(buf, payload...), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (td *TDigest) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		return errors.Wrap(ErrCorrupt, "missing version")
	}
	decoded, err := Decode(data[1:], FormatVersion(data[0]))
	if err != nil {
		return err
	}
	*td = *decoded
	return nil
}
