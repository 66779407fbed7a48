package hash

// crc8Poly is 0x31 bit-reversed.
const crc8Poly = 0x8C

var crc8Table = makeCRC8Table()

func makeCRC8Table() *[256]uint8 {
	var t [256]uint8
	for i := 0; i < 256; i++ {
		c := uint8(i)
		for j := 0; j < 8; j++ {
			if c&1 != 0 {
				c = (c >> 1) ^ crc8Poly
			} else {
				c >>= 1
			}
		}
		t[i] = c
	}
	return &t
}

// CRC8 folds data into crc and returns the updated checksum.
// Start a new checksum with crc = 0.
func CRC8(crc uint8, data []byte) uint8 {
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc
}

// NameHash returns the additive (mod 256) hash of name.
func NameHash(name []byte) uint8 {
	var h uint8
	for _, b := range name {
		h += b
	}
	return h
}
