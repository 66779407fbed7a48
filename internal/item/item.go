// Package item implements the on-media key/value record.
//
// Layout (little endian), padded with 0xFF to a 16-byte boundary:
//
//	+-------+-------+-----+------+----------+-----------+-----------+------+------+
//	| magic | state | crc | hash | reserved | name_size | data_size | name | data |
//	|  1B   |  1B   | 1B  |  1B  |    1B    |    1B     |    2B     |      |      |
//	+-------+-------+-----+------+----------+-----------+-----------+------+------+
//
// The name is stored NUL terminated and name_size counts the terminator.
// The CRC-8 covers the header from the hash byte on, then name, then data.
// Once flushed, only the state byte of a record is ever written again.
package item

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/nvram/internal/hash"
)

const (
	// Magic identifies an item header.
	Magic = 'I'

	// StateValid is the state byte of a live record (the erased value).
	StateValid = 0xFF
	// StateObsolete is the state byte of a retired record.
	StateObsolete = 0x5A

	// HeaderSize is the encoded header length.
	HeaderSize = 8
	// Align is the record alignment on media.
	Align = 16

	// MaxNameSize bounds name_size, terminator included.
	MaxNameSize = 112
	// MaxNameLen is the longest usable name.
	MaxNameLen = MaxNameSize - 1
	// MaxDataSize bounds the payload length.
	MaxDataSize = 512

	// MaxSize is the largest aligned record.
	MaxSize = (HeaderSize + MaxNameSize + MaxDataSize + Align - 1) / Align * Align

	stateOffset = 1
	crcFrom     = 3
)

var (
	// ErrEmptyName is returned for a zero-length name.
	ErrEmptyName = errors.New("item: empty name")
	// ErrNameTooLong is returned when a name does not fit in MaxNameSize.
	ErrNameTooLong = errors.New("item: name too long")
	// ErrDataTooLarge is returned when a payload exceeds MaxDataSize.
	ErrDataTooLarge = errors.New("item: data too large")
)

// Status classifies the bytes found at a record slot.
type Status uint8

const (
	// Empty means the slot is erased: the write frontier.
	Empty Status = iota
	// Valid means a live record.
	Valid
	// Obsolete means a retired record that still occupies space.
	Obsolete
	// Invalid means garbage: corrupt, torn, or not a record at all.
	Invalid
)

func (s Status) String() string {
	switch s {
	case Empty:
		return "empty"
	case Valid:
		return "valid"
	case Obsolete:
		return "obsolete"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Header is the decoded fixed part of a record.
type Header struct {
	Magic    uint8
	State    uint8
	CRC      uint8
	Hash     uint8
	NameSize uint8
	DataSize uint16
}

// DecodeHeader parses the first HeaderSize bytes of b.
func DecodeHeader(b []byte) Header {
	_ = b[HeaderSize-1]
	return Header{
		Magic:    b[0],
		State:    b[1],
		CRC:      b[2],
		Hash:     b[3],
		NameSize: b[5],
		DataSize: binary.LittleEndian.Uint16(b[6:8]),
	}
}

// Encode writes h into the first HeaderSize bytes of b.
func (h Header) Encode(b []byte) {
	_ = b[HeaderSize-1]
	b[0] = h.Magic
	b[1] = h.State
	b[2] = h.CRC
	b[3] = h.Hash
	b[4] = 0xFF
	b[5] = h.NameSize
	binary.LittleEndian.PutUint16(b[6:8], h.DataSize)
}

// Size returns the aligned on-media size of the record.
func (h Header) Size() uint32 {
	return AlignedSize(int(h.NameSize), int(h.DataSize))
}

// AlignedSize returns round_up(HeaderSize+nameSize+dataSize, Align).
func AlignedSize(nameSize, dataSize int) uint32 {
	n := uint32(HeaderSize + nameSize + dataSize)
	return (n + Align - 1) / Align * Align
}

// SizeOf returns the aligned size of the record that would store name and data.
func SizeOf(name string, dataLen int) uint32 {
	return AlignedSize(len(name)+1, dataLen)
}

// Validate checks the name and payload bounds before anything is written.
func Validate(name string, dataLen int) error {
	switch {
	case len(name) == 0:
		return ErrEmptyName
	case len(name) > MaxNameLen:
		return fmt.Errorf("%w: %d > %d", ErrNameTooLong, len(name), MaxNameLen)
	case dataLen > MaxDataSize:
		return fmt.Errorf("%w: %d > %d", ErrDataTooLarge, dataLen, MaxDataSize)
	}
	return nil
}

func erased(b []byte) bool {
	for _, c := range b {
		if c != 0xFF {
			return false
		}
	}
	return true
}

// checksum returns the CRC-8 of an encoded header plus name and data.
func checksum(hdr []byte, name []byte, data []byte) uint8 {
	crc := hash.CRC8(0, hdr[crcFrom:HeaderSize])
	crc = hash.CRC8(crc, name)
	return hash.CRC8(crc, data)
}
