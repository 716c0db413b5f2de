package tdigest

import "github.com/pkg/errors"

var (
	// ErrInvalidCompression is returned for a compression outside (0, MaxCompression].
	ErrInvalidCompression = errors.New("invalid compression: must be a positive 32 bit integer")
	// ErrInvalidValue is returned for NaN or infinite sample values.
	ErrInvalidValue = errors.New("invalid value: must be a finite double")
	// ErrInvalidWeight is returned for zero weights or weights overflowing the digest total.
	ErrInvalidWeight = errors.New("invalid weight: must be a positive 64 bit integer")
	// ErrInvalidQuantile is returned for quantiles outside [0, 1].
	ErrInvalidQuantile = errors.New("invalid quantile: must be a double between 0..1")
	// ErrUnsupportedFormat is returned by Decode for unknown format versions.
	ErrUnsupportedFormat = errors.New("unsupported encoding version")
	// ErrCorrupt is returned by Decode for malformed payloads.
	ErrCorrupt = errors.New("corrupt encoding")
)
