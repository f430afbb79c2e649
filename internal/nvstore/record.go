// internal/nvstore/record.go
package nvstore

import (
	"encoding/binary"
	"fmt"

	"github.com/tamzrod/heliotrack/internal/crc"
	"github.com/tamzrod/heliotrack/internal/fault"
)

// Persisted record layout. Little-endian, fixed order.
// This layout is storage-locked and MUST NOT be rearranged.
//
//	off  size  field
//	  0     2  magic
//	  2     2  version
//	  4     2  azimuth offset (int16)
//	  6     2  elevation offset (int16)
//	  8    16  fault counters [fault.NumKinds]uint16
//	 24     4  boot count
//	 28     2  crc16 over bytes 0..27
const (
	Magic   uint16 = 0xA55A
	Version uint16 = 1

	offMagic     = 0
	offVersion   = 2
	offAzimuth   = 4
	offElevation = 6
	offFaults    = 8
	offBootCount = offFaults + 2*fault.NumKinds
	offCRC       = offBootCount + 4

	// RecordSize is the serialized record length in bytes.
	RecordSize = offCRC + 2

	// ImageSize is the encoded footprint of one storage location.
	ImageSize = RecordSize * 2
)

// Record is the persisted device configuration.
type Record struct {
	Magic           uint16
	Version         uint16
	AzimuthOffset   int16
	ElevationOffset int16
	FaultCounts     [fault.NumKinds]uint16
	BootCount       uint32
	CRC             uint16
}

// Defaults returns the factory record with a valid checksum.
func Defaults() Record {
	r := Record{
		Magic:   Magic,
		Version: Version,
	}
	r.Seal()
	return r
}

// MarshalBinary serializes r in storage layout.
func (r Record) MarshalBinary() ([]byte, error) {
	return r.bytes(), nil
}

func (r Record) bytes() []byte {
	b := make([]byte, RecordSize)
	le := binary.LittleEndian

	le.PutUint16(b[offMagic:], r.Magic)
	le.PutUint16(b[offVersion:], r.Version)
	le.PutUint16(b[offAzimuth:], uint16(r.AzimuthOffset))
	le.PutUint16(b[offElevation:], uint16(r.ElevationOffset))
	for i, n := range r.FaultCounts {
		le.PutUint16(b[offFaults+2*i:], n)
	}
	le.PutUint32(b[offBootCount:], r.BootCount)
	le.PutUint16(b[offCRC:], r.CRC)

	return b
}

// UnmarshalRecord parses a record from storage layout. It does not validate.
func UnmarshalRecord(b []byte) (Record, error) {
	if len(b) != RecordSize {
		return Record{}, fmt.Errorf("nvstore: record length %d, want %d", len(b), RecordSize)
	}

	le := binary.LittleEndian
	r := Record{
		Magic:           le.Uint16(b[offMagic:]),
		Version:         le.Uint16(b[offVersion:]),
		AzimuthOffset:   int16(le.Uint16(b[offAzimuth:])),
		ElevationOffset: int16(le.Uint16(b[offElevation:])),
		BootCount:       le.Uint32(b[offBootCount:]),
		CRC:             le.Uint16(b[offCRC:]),
	}
	for i := range r.FaultCounts {
		r.FaultCounts[i] = le.Uint16(b[offFaults+2*i:])
	}

	return r, nil
}

// Checksum computes the CRC over every byte preceding the CRC field.
func (r Record) Checksum() uint16 {
	return crc.Checksum(r.bytes()[:offCRC])
}

// Seal recomputes and stores the checksum.
func (r *Record) Seal() {
	r.CRC = r.Checksum()
}

// Valid reports whether magic, version and checksum all match.
func (r Record) Valid() bool {
	if r.Magic != Magic {
		return false
	}
	if r.Version != Version {
		return false
	}
	return r.Checksum() == r.CRC
}
