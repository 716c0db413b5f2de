package tdigest

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeRaw(compression *uint64, centroids ...Centroid) []byte {
	var buf []byte
	if compression != nil {
		buf = binary.AppendUvarint(buf, *compression)
	}
	return appendCentroids(buf, centroids)
}

func TestEncodeLayout(t *testing.T) {
	td, err := NewWithCompression(300)
	require.NoError(t, err)
	require.NoError(t, td.Add(1.5, 2))
	require.NoError(t, td.Add(-3, 1))

	expected := []byte{0xac, 0x02, 0x02}
	expected = binary.LittleEndian.AppendUint64(expected, math.Float64bits(-3))
	expected = binary.LittleEndian.AppendUint64(expected, 1)
	expected = binary.LittleEndian.AppendUint64(expected, math.Float64bits(1.5))
	expected = binary.LittleEndian.AppendUint64(expected, 2)

	assert.Equal(t, expected, td.Encode())
}

func TestEncodeDecodeFidelity(t *testing.T) {
	assert := assert.New(t)
	for _, g := range []generator{
		newUniform(41, -1, 1),
		newNormal(42, 0, 1),
		newExponential(43, 1),
	} {
		td, err := NewWithCompression(100)
		require.NoError(t, err)
		fill(td, g, 20000)

		data := td.Encode()
		decoded, err := Decode(data, FormatV0)
		require.NoError(t, err)

		assert.Equal(td.Compression(), decoded.Compression())
		assert.Equal(td.TotalWeight(), decoded.TotalWeight())
		assertInvariants(t, decoded)

		for q := 0.0; q <= 1; q += 0.05 {
			expected, _, err := td.Quantile(q)
			require.NoError(t, err)
			got, ok, err := decoded.Quantile(q)
			require.NoError(t, err)
			assert.True(ok)
			assert.InDelta(expected, got, 1e-9, "quantile %v", q)

			expectedCDF, _ := td.CDF(expected)
			gotCDF, _ := decoded.CDF(expected)
			assert.InDelta(expectedCDF, gotCDF, 1e-9)
		}
	}
}

func TestDecodeEmpty(t *testing.T) {
	td, err := NewWithCompression(7)
	require.NoError(t, err)

	decoded, err := Decode(td.Encode(), FormatV0)
	require.NoError(t, err)
	assert.Equal(t, 7, decoded.Compression())
	assert.Equal(t, 0, decoded.Size())
}

func TestDecodeReplaysUnsortedInput(t *testing.T) {
	compression := uint64(100)
	data := encodeRaw(&compression, Centroid{3, 1}, Centroid{1, 1}, Centroid{2, 1}, Centroid{1, 2})

	td, err := Decode(data, FormatV0)
	require.NoError(t, err)
	assert.Equal(t, []Centroid{{1, 3}, {2, 1}, {3, 1}}, td.Centroids())
	assert.Equal(t, uint64(5), td.TotalWeight())
}

func TestDecodeLegacy(t *testing.T) {
	td, err := Decode(encodeRaw(nil, Centroid{1, 1}, Centroid{2, 4}), FormatLegacy)
	require.NoError(t, err)
	assert.Equal(t, DefaultCompression, td.Compression())
	assert.Equal(t, uint64(5), td.TotalWeight())
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	compression := uint64(100)
	for _, v := range []FormatVersion{1, 2, -2, 255} {
		td, err := Decode(encodeRaw(&compression), v)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, "version %d", v)
		assert.Nil(t, td)
	}
}

func TestDecodeCorrupt(t *testing.T) {
	zero := uint64(0)
	tooLarge := uint64(math.MaxInt32) + 1
	compression := uint64(100)
	valid := encodeRaw(&compression, Centroid{1, 1}, Centroid{2, 1})

	for name, data := range map[string][]byte{
		"empty":            nil,
		"zero compression": encodeRaw(&zero),
		"huge compression": encodeRaw(&tooLarge),
		"missing count":    binary.AppendUvarint(nil, 100),
		"truncated":        valid[:len(valid)-1],
		"trailing bytes":   append(append([]byte{}, valid...), 0),
		"absurd count":     binary.AppendUvarint(binary.AppendUvarint(nil, 100), math.MaxUint64),
	} {
		td, err := Decode(data, FormatV0)
		assert.ErrorIs(t, err, ErrCorrupt, name)
		assert.Nil(t, td, name)
	}

	td, err := Decode(encodeRaw(&compression, Centroid{math.NaN(), 1}), FormatV0)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Nil(t, td)

	td, err = Decode(encodeRaw(&compression, Centroid{1, 0}), FormatV0)
	assert.ErrorIs(t, err, ErrInvalidWeight)
	assert.Nil(t, td)
}

func TestMarshalBinary(t *testing.T) {
	assert := assert.New(t)
	td, err := NewWithCompression(50)
	require.NoError(t, err)
	fill(td, newNormal(51, 10, 3), 5000)

	data, err := td.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(byte(FormatCurrent), data[0])

	var decoded TDigest
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(td.Centroids(), decoded.Centroids())
	assert.Equal(50, decoded.Compression())

	assert.ErrorIs(decoded.UnmarshalBinary(nil), ErrCorrupt)
	assert.ErrorIs(decoded.UnmarshalBinary([]byte{7, 0, 0}), ErrUnsupportedFormat)
	assert.Equal(td.Centroids(), decoded.Centroids())
}
