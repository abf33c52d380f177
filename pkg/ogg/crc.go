package ogg

// Ogg uses its own CRC32 variant (poly 0x04c11db7, MSB-first, no
// reflection, zero init/xor-out) rather than the zlib/IEEE polynomial
// hash/crc32 implements. Grounded on the table-building algorithm in the
// teacher's pkg/media/oggreader's generateChecksumTable/checksum-update
// loop, which this package mirrors for both directions (the reader
// verifies, the writer computes).
var crcTable = buildCRCTable()

const crcPolynomial = 0x04c11db7

func buildCRCTable() [256]uint32 {
	var table [256]uint32
	for i := range table {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = (r << 1) ^ crcPolynomial
			} else {
				r <<= 1
			}
		}
		table[i] = r
	}
	return table
}

// crc32Ogg computes the Ogg page CRC over data, which must already have
// its header CRC field zeroed (spec.md §3/§4.8: "CRC32 with zero-in-
// header rule").
func crc32Ogg(data []byte) uint32 {
	var c uint32
	for _, b := range data {
		c = (c << 8) ^ crcTable[byte(c>>24)^b]
	}
	return c
}
