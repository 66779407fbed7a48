// Package segment manages the erase-unit sized segments a region rotates
// through.
//
// Header layout (little endian, 16 bytes) at offset 0 of a segment:
//
//	0  u32 magic 'NVRS'
//	4  u8  state      0xFF valid, 0x5A obsolete
//	5  u8  crc        CRC-8 over bytes [6,16)
//	6  u8  version
//	7  u8  reserved
//	8  u8  seq_id     generation, compared modulo 256
//	9  u8  head_size
//	10 u16 seg_size
//	12 u8  reserved2[4]
package segment

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/nvram/internal/hash"
	"github.com/hupe1980/nvram/internal/item"
)

const (
	// Magic is 'NVRS' read as a little endian u32.
	Magic uint32 = 0x5253564E

	StateValid    = 0xFF
	StateObsolete = 0x5A

	// Version is the format version written into new headers.
	Version = 1

	// HeaderSize is the encoded header length.
	HeaderSize = 16

	// ItemStart is the offset of the first record slot.
	ItemStart = (HeaderSize + item.Align - 1) / item.Align * item.Align

	// MaxSize is the largest segment the u16 size field can describe
	// while staying a power of two.
	MaxSize = 32 * 1024

	stateOffset = 4
	crcFrom     = 6
)

var (
	// ErrNotErased is returned when a segment that must be blank is not.
	ErrNotErased = errors.New("segment: not erased")

	// ErrGeometry is returned by Scan when a trusted header describes a
	// different segment layout than the one requested.
	ErrGeometry = errors.New("segment: geometry mismatch")
)

// Media is the raw device surface the segment manager needs.
type Media interface {
	Read(addr uint32, p []byte) error
	Write(addr uint32, p []byte) error
	Erase(addr, size uint32) error
}

// Header is a decoded segment header.
type Header struct {
	Magic    uint32
	State    uint8
	CRC      uint8
	Version  uint8
	SeqID    uint8
	HeadSize uint8
	SegSize  uint16
}

// NewHeader builds a valid header for a segment of segSize bytes.
func NewHeader(seq uint8, segSize uint32) Header {
	h := Header{
		Magic:    Magic,
		State:    StateValid,
		Version:  Version,
		SeqID:    seq,
		HeadSize: HeaderSize,
		SegSize:  uint16(segSize),
	}
	var b [HeaderSize]byte
	h.Encode(b[:])
	h.CRC = hash.CRC8(0, b[crcFrom:])
	return h
}

// Encode writes h into the first HeaderSize bytes of b.
func (h Header) Encode(b []byte) {
	_ = b[HeaderSize-1]
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	b[4] = h.State
	b[5] = h.CRC
	b[6] = h.Version
	b[7] = 0xFF
	b[8] = h.SeqID
	b[9] = h.HeadSize
	binary.LittleEndian.PutUint16(b[10:12], h.SegSize)
	b[12], b[13], b[14], b[15] = 0xFF, 0xFF, 0xFF, 0xFF
}

// DecodeHeader parses the first HeaderSize bytes of b.
func DecodeHeader(b []byte) Header {
	_ = b[HeaderSize-1]
	return Header{
		Magic:    binary.LittleEndian.Uint32(b[0:4]),
		State:    b[4],
		CRC:      b[5],
		Version:  b[6],
		SeqID:    b[8],
		HeadSize: b[9],
		SegSize:  binary.LittleEndian.Uint16(b[10:12]),
	}
}

// Trusted reports whether raw is a header of an active segment: magic,
// state and checksum all match.
func Trusted(raw []byte) (Header, bool) {
	h := DecodeHeader(raw)
	if h.Magic != Magic || h.State != StateValid {
		return h, false
	}
	return h, hash.CRC8(0, raw[crcFrom:HeaderSize]) == h.CRC
}

// Newer reports whether sequence a is newer than b with 8-bit wraparound.
func Newer(a, b uint8) bool {
	return int8(a-b) > 0
}

// ReadHeader reads the header of the segment at addr.
func ReadHeader(m Media, addr uint32) (Header, bool, error) {
	var raw [HeaderSize]byte
	if err := m.Read(addr, raw[:]); err != nil {
		return Header{}, false, err
	}
	h, ok := Trusted(raw[:])
	return h, ok, nil
}

// WriteHeader programs a fresh valid header at addr.
func WriteHeader(m Media, addr uint32, seq uint8, segSize uint32) (Header, error) {
	h := NewHeader(seq, segSize)
	var raw [HeaderSize]byte
	h.Encode(raw[:])
	if err := m.Write(addr, raw[:]); err != nil {
		return Header{}, err
	}
	return h, nil
}

// MarkObsolete retires the segment at addr with a single-byte write.
func MarkObsolete(m Media, addr uint32) error {
	return m.Write(addr+stateOffset, []byte{StateObsolete})
}

// Blank reports whether size bytes at addr are all erased. scratch is used
// as the read buffer.
func Blank(m Media, addr, size uint32, scratch []byte) (bool, error) {
	for pos := uint32(0); pos < size; {
		chunk := scratch[:min(int(size-pos), len(scratch))]
		if err := m.Read(addr+pos, chunk); err != nil {
			return false, err
		}
		for _, b := range chunk {
			if b != 0xFF {
				return false, nil
			}
		}
		pos += uint32(len(chunk))
	}
	return true, nil
}

// EraseIfDirty erases the segment at addr unless it is already blank.
// It reports whether an erase was issued.
func EraseIfDirty(m Media, addr, size uint32, scratch []byte) (bool, error) {
	blank, err := Blank(m, addr, size, scratch)
	if err != nil || blank {
		return false, err
	}
	return true, m.Erase(addr, size)
}

// ScanResult describes the segments found in a region.
type ScanResult struct {
	// Found is false when no segment carries a trusted header.
	Found bool
	// Offset is the region-relative offset of the newest segment.
	Offset uint32
	Header Header
	// Stale lists other segments that still carry a trusted header.
	Stale []uint32
}

// Scan visits every segSize-aligned slot of the region at base and picks
// the trusted header with the newest sequence number. A trusted header with
// another segment or header size means the region was formatted with a
// different layout; Scan fails with ErrGeometry rather than walk it with the
// wrong stride.
func Scan(m Media, base, total, segSize uint32) (ScanResult, error) {
	var res ScanResult
	var trusted []uint32
	for off := uint32(0); off+segSize <= total; off += segSize {
		h, ok, err := ReadHeader(m, base+off)
		if err != nil {
			return ScanResult{}, err
		}
		if !ok {
			continue
		}
		if uint32(h.SegSize) != segSize || h.HeadSize != HeaderSize {
			return ScanResult{}, fmt.Errorf("%w: segment %#x has seg_size=%d head_size=%d, want %d and %d",
				ErrGeometry, off, h.SegSize, h.HeadSize, segSize, HeaderSize)
		}
		trusted = append(trusted, off)
		if !res.Found || Newer(h.SeqID, res.Header.SeqID) {
			res.Found = true
			res.Offset = off
			res.Header = h
		}
	}
	for _, off := range trusted {
		if off != res.Offset {
			res.Stale = append(res.Stale, off)
		}
	}
	return res, nil
}
