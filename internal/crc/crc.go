// internal/crc/crc.go
package crc

// CRC-16/CCITT-FALSE parameters.
// These values define the on-storage and on-wire checksum and MUST NOT change.
const (
	Initial    uint16 = 0xFFFF
	Polynomial uint16 = 0x1021
)

// Checksum returns the CRC-16/CCITT-FALSE of b.
// MSB first, no reflection, no final XOR. Empty input yields Initial.
func Checksum(b []byte) uint16 {
	return Update(Initial, b)
}

// Update continues a running CRC register over b.
func Update(crc uint16, b []byte) uint16 {
	for _, c := range b {
		crc ^= uint16(c) << 8

		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ Polynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
