// Package checkpoint implements saving and loading of training state.
//
// The .lgrd file format:
//
//	magic "LGRD" (4 bytes)
//	format version (uint32, little-endian)
//	epoch (int64), step (int64), loss (float64)
//	record count (uint32)
//	per record: name length (uint32), name bytes,
//	            dtype (uint8), ndim (uint32), dims (int64 each),
//	            data length (uint64), raw tensor bytes
//	SHA-256 checksum of everything above (32 bytes)
//
// All integers are little-endian. Records are written in sorted name order
// so the same state always produces the same bytes.
package checkpoint

import (
	"errors"

	"github.com/lingrad-ml/lingrad/internal/tensor"
)

// Format constants.
const (
	MagicBytes    = "LGRD"
	FormatVersion = 1
	ChecksumSize  = 32 // SHA-256

	// MaxTensorNameLen bounds record names so a corrupted length field
	// cannot trigger a huge allocation.
	MaxTensorNameLen = 1024

	// MaxRecords bounds the record count for the same reason.
	MaxRecords = 1 << 20
)

// Common errors.
var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrTruncated          = errors.New("file truncated")
	ErrTensorNameTooLong  = errors.New("tensor name too long")
	ErrTooManyTensors     = errors.New("too many tensors in file")
)

// dtypeByte maps a DataType to its on-disk byte.
func dtypeByte(dt tensor.DataType) (byte, bool) {
	switch dt {
	case tensor.Float32:
		return 0, true
	case tensor.Float64:
		return 1, true
	case tensor.Int32:
		return 2, true
	case tensor.Int64:
		return 3, true
	default:
		return 0, false
	}
}

// byteDtype maps an on-disk byte back to a DataType.
func byteDtype(b byte) (tensor.DataType, bool) {
	switch b {
	case 0:
		return tensor.Float32, true
	case 1:
		return tensor.Float64, true
	case 2:
		return tensor.Int32, true
	case 3:
		return tensor.Int64, true
	default:
		return 0, false
	}
}
