// internal/nvstore/image.go
package nvstore

import (
	"fmt"

	"github.com/tamzrod/heliotrack/internal/ecc"
	"github.com/tamzrod/heliotrack/internal/hal"
)

// Image layout: for record byte i, byte 2i holds the codeword of its low
// nibble and byte 2i+1 the codeword of its high nibble.

// EncodeImage expands a serialized record into its SECDED image.
func EncodeImage(rec []byte) []byte {
	img := make([]byte, len(rec)*2)
	for i, b := range rec {
		img[2*i], img[2*i+1] = ecc.EncodeByte(b)
	}
	return img
}

// DecodeImage collapses an image back into record bytes.
// corrected counts the bytes that needed a single-bit fix.
func DecodeImage(img []byte) (rec []byte, corrected int) {
	rec = make([]byte, len(img)/2)
	for i := range rec {
		b, fixed := ecc.DecodeByte(img[2*i], img[2*i+1])
		rec[i] = b
		if fixed {
			corrected++
		}
	}
	return rec, corrected
}

// Location is one storage copy of the record.
type Location struct {
	Name string
	Base uint16
}

// LoadResult describes one decoded location.
type LoadResult struct {
	Location  Location
	Record    Record
	Valid     bool
	Corrected int
	Err       error
}

// Load reads and decodes the record at loc. A read error yields an invalid result.
func Load(mem hal.ByteStore, loc Location) LoadResult {
	res := LoadResult{Location: loc}

	img := make([]byte, ImageSize)
	for i := range img {
		b, err := mem.Load(loc.Base + uint16(i))
		if err != nil {
			res.Err = fmt.Errorf("nvstore: read %s: %w", loc.Name, err)
			return res
		}
		img[i] = b
	}

	raw, corrected := DecodeImage(img)
	rec, err := UnmarshalRecord(raw)
	if err != nil {
		res.Err = err
		return res
	}

	res.Record = rec
	res.Corrected = corrected
	res.Valid = rec.Valid()
	return res
}

// Save encodes r and writes it at loc, one byte pair at a time.
// A failure mid-write leaves the location torn; nothing rolls it back.
func Save(mem hal.ByteStore, loc Location, r Record) error {
	img := EncodeImage(r.bytes())
	for i, b := range img {
		if err := mem.Store(loc.Base+uint16(i), b); err != nil {
			return fmt.Errorf("nvstore: write %s at %d: %w", loc.Name, i, err)
		}
	}
	return nil
}
