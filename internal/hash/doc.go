// Package hash provides the checksums used by the on-media format.
//
// # CRC-8
//
// Segment and item headers carry a single-byte CRC computed with the
// reflected 0x31 polynomial (CRC-8/MAXIM, init 0x00, no final xor).
// The checksum is table-driven and streamable so record payloads can be
// folded in chunk by chunk:
//
//	crc := hash.CRC8(0, header[3:])
//	crc = hash.CRC8(crc, name)
//	crc = hash.CRC8(crc, data)
//
// # Name hash
//
// NameHash is an order-independent additive hash over the name bytes. It is
// only a cheap pre-filter for equality; names are always compared in full.
//
// # CRC32-Castagnoli
//
// Region image archives are framed with CRC32C.
package hash
