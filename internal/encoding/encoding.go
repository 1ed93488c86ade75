// Package encoding reads and writes particle position datasets.
//
// A dataset is a 16-byte header followed by fixed-size records:
//
//	header: magic "DBPOS001" (8 bytes) | record count (uint64 LE)
//	record: x | y | z (float64 LE each, 24 bytes)
//
// Fixed-size records let the tools memory-map a dataset and address record i
// directly, without decoding what comes before it.
package encoding

import (
	"encoding/binary"
	"fmt"
	"math"

	binerrors "github.com/tamirms/densebins/errors"
)

const (
	// Magic identifies a position dataset.
	Magic = "DBPOS001"

	// HeaderSize is the size of the dataset header in bytes.
	HeaderSize = 16

	// RecordSize is the size of one position record in bytes.
	RecordSize = 24
)

// FileSize returns the size of a dataset holding n records.
func FileSize(n uint64) int64 {
	return HeaderSize + int64(n)*RecordSize
}

// PutHeader writes the header for n records into buf[:HeaderSize].
func PutHeader(buf []byte, n uint64) {
	copy(buf[:8], Magic)
	binary.LittleEndian.PutUint64(buf[8:16], n)
}

// ReadHeader validates the header of data and returns the record count.
// data must hold the whole dataset.
func ReadHeader(data []byte) (uint64, error) {
	if len(data) < HeaderSize {
		return 0, fmt.Errorf("%w: %d bytes, header needs %d", binerrors.ErrTruncatedFile, len(data), HeaderSize)
	}
	if string(data[:8]) != Magic {
		return 0, fmt.Errorf("%w: %q", binerrors.ErrInvalidMagic, data[:8])
	}
	n := binary.LittleEndian.Uint64(data[8:16])
	if n > uint64(len(data)-HeaderSize)/RecordSize {
		return 0, fmt.Errorf("%w: header claims %d records, file holds %d",
			binerrors.ErrTruncatedFile, n, (len(data)-HeaderSize)/RecordSize)
	}
	return n, nil
}

// PutPosition writes record i of the dataset in data.
func PutPosition(data []byte, i int, p [3]float64) {
	rec := data[HeaderSize+i*RecordSize:]
	binary.LittleEndian.PutUint64(rec[0:8], math.Float64bits(p[0]))
	binary.LittleEndian.PutUint64(rec[8:16], math.Float64bits(p[1]))
	binary.LittleEndian.PutUint64(rec[16:24], math.Float64bits(p[2]))
}

// Position reads record i of the dataset in data.
func Position(data []byte, i int) [3]float64 {
	rec := data[HeaderSize+i*RecordSize:]
	return [3]float64{
		math.Float64frombits(binary.LittleEndian.Uint64(rec[0:8])),
		math.Float64frombits(binary.LittleEndian.Uint64(rec[8:16])),
		math.Float64frombits(binary.LittleEndian.Uint64(rec[16:24])),
	}
}
