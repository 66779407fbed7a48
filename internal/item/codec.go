package item

import (
	"bytes"
	"fmt"

	"github.com/hupe1980/nvram/internal/hash"
)

// ScratchSize is the default scratch buffer size. It holds a full header
// plus the longest name so both are programmed in one shot.
const ScratchSize = 128

// Media is the raw device surface the codec reads and programs.
type Media interface {
	Read(addr uint32, p []byte) error
	Write(addr uint32, p []byte) error
}

// Record is a flushed record found on media. Its bytes are immutable except
// for the state byte, which Retire flips to obsolete.
type Record struct {
	Addr   uint32
	Header Header
	Name   string
}

// Size returns the aligned on-media size.
func (r Record) Size() uint32 { return r.Header.Size() }

// DataAddr returns the absolute address of the payload.
func (r Record) DataAddr() uint32 {
	return r.Addr + HeaderSize + uint32(r.Header.NameSize)
}

// Retire marks the record obsolete with a single-byte write.
func (r Record) Retire(m Media) error {
	return Retire(m, r.Addr)
}

// Retire writes the obsolete state byte of the record at addr.
func Retire(m Media, addr uint32) error {
	return m.Write(addr+stateOffset, []byte{StateObsolete})
}

// Codec encodes, copies and classifies records through a fixed scratch
// buffer. A Codec is not safe for concurrent use.
type Codec struct {
	scratch []byte

	// OnCorrupt, if set, is called when Classify finds a checksum mismatch
	// and retires the record. err is the result of the retire write.
	OnCorrupt func(addr uint32, err error)
}

// NewCodec creates a codec with a scratch buffer of size bytes, rounded up
// to hold at least a header and the longest name.
func NewCodec(size int) *Codec {
	if size < ScratchSize {
		size = ScratchSize
	}
	size = (size + Align - 1) / Align * Align
	return &Codec{scratch: make([]byte, size)}
}

// Scratch exposes the codec's buffer for other chunked work done under the
// same owner, such as blank checks.
func (c *Codec) Scratch() []byte { return c.scratch }

// Peek classifies the slot at addr from its header alone. limit is the
// number of bytes left in the segment from addr. A Valid result has not had
// its name or checksum verified.
func (c *Codec) Peek(m Media, addr, limit uint32) (Header, Status, error) {
	if limit < HeaderSize {
		return Header{}, Invalid, nil
	}
	raw := c.scratch[:HeaderSize]
	if err := m.Read(addr, raw); err != nil {
		return Header{}, Invalid, err
	}

	h := DecodeHeader(raw)
	if h.Magic != Magic {
		if erased(raw) {
			return h, Empty, nil
		}
		return h, Invalid, nil
	}

	var st Status
	switch h.State {
	case StateValid:
		st = Valid
	case StateObsolete:
		st = Obsolete
	default:
		return h, Invalid, nil
	}

	if h.NameSize == 0 || h.NameSize > MaxNameSize || h.DataSize > MaxDataSize || h.Size() > limit {
		return h, Invalid, nil
	}
	return h, st, nil
}

// Classify inspects the slot at addr like Peek and, for a valid header,
// verifies the name hash. With checkCRC set, a record whose checksum does
// not match is retired on media and reported Invalid.
//
// Only read errors are returned; the Record is meaningful for Valid and
// Obsolete slots.
func (c *Codec) Classify(m Media, addr, limit uint32, checkCRC bool) (Record, Status, error) {
	h, st, err := c.Peek(m, addr, limit)
	if err != nil || st == Empty || st == Invalid {
		return Record{}, st, err
	}

	rec := Record{Addr: addr, Header: h}
	if st == Obsolete {
		return rec, Obsolete, nil
	}

	// Peek left the raw header in scratch.
	var hdr [HeaderSize]byte
	copy(hdr[:], c.scratch)

	name := c.scratch[:h.NameSize]
	if err := m.Read(addr+HeaderSize, name); err != nil {
		return Record{}, Invalid, err
	}
	if name[len(name)-1] != 0 || hash.NameHash(name) != h.Hash {
		return Record{}, Invalid, nil
	}
	rec.Name = string(name[:len(name)-1])

	if checkCRC {
		crc := hash.CRC8(0, hdr[crcFrom:])
		crc = hash.CRC8(crc, name)
		var err error
		if crc, err = c.foldData(m, rec, crc); err != nil {
			return Record{}, Invalid, err
		}
		if crc != h.CRC {
			err := rec.Retire(m)
			if c.OnCorrupt != nil {
				c.OnCorrupt(addr, err)
			}
			return Record{}, Invalid, nil
		}
	}

	return rec, Valid, nil
}

func (c *Codec) foldData(m Media, rec Record, crc uint8) (uint8, error) {
	addr := rec.DataAddr()
	left := int(rec.Header.DataSize)
	for left > 0 {
		chunk := c.scratch[:min(left, len(c.scratch))]
		if err := m.Read(addr, chunk); err != nil {
			return 0, err
		}
		crc = hash.CRC8(crc, chunk)
		addr += uint32(len(chunk))
		left -= len(chunk)
	}
	return crc, nil
}

// Write encodes a new valid record for name and data at addr and returns
// its aligned size. The caller must have validated the inputs and ensured
// that the space is erased. The record is streamed through the scratch
// buffer in aligned chunks; the tail is padded with 0xFF.
func (c *Codec) Write(m Media, addr uint32, name string, data []byte) (uint32, error) {
	if err := Validate(name, len(data)); err != nil {
		return 0, err
	}

	nameBytes := make([]byte, len(name)+1)
	copy(nameBytes, name)

	var hdr [HeaderSize]byte
	h := Header{
		Magic:    Magic,
		State:    StateValid,
		Hash:     hash.NameHash(nameBytes),
		NameSize: uint8(len(nameBytes)),
		DataSize: uint16(len(data)),
	}
	h.Encode(hdr[:])
	h.CRC = checksum(hdr[:], nameBytes, data)
	h.Encode(hdr[:])

	size := h.Size()
	parts := [][]byte{hdr[:], nameBytes, data}

	var pos uint32
	n := 0
	for _, part := range parts {
		for len(part) > 0 {
			k := copy(c.scratch[n:], part)
			part = part[k:]
			n += k
			if n == len(c.scratch) {
				if err := m.Write(addr+pos, c.scratch); err != nil {
					return 0, fmt.Errorf("write record %q at %#x: %w", name, addr+pos, err)
				}
				pos += uint32(n)
				n = 0
			}
		}
	}
	if n > 0 {
		padded := int(size - pos)
		for i := n; i < padded; i++ {
			c.scratch[i] = 0xFF
		}
		if err := m.Write(addr+pos, c.scratch[:padded]); err != nil {
			return 0, fmt.Errorf("write record %q at %#x: %w", name, addr+pos, err)
		}
	}
	return size, nil
}

// Copy moves a record verbatim from rec.Addr to dst.
func (c *Codec) Copy(m Media, rec Record, dst uint32) error {
	size := rec.Size()
	for pos := uint32(0); pos < size; {
		chunk := c.scratch[:min(int(size-pos), len(c.scratch))]
		if err := m.Read(rec.Addr+pos, chunk); err != nil {
			return err
		}
		if err := m.Write(dst+pos, chunk); err != nil {
			return err
		}
		pos += uint32(len(chunk))
	}
	return nil
}

// Equal reports whether the payload of rec is byte-for-byte data.
func (c *Codec) Equal(m Media, rec Record, data []byte) (bool, error) {
	if int(rec.Header.DataSize) != len(data) {
		return false, nil
	}
	addr := rec.DataAddr()
	for len(data) > 0 {
		chunk := c.scratch[:min(len(data), len(c.scratch))]
		if err := m.Read(addr, chunk); err != nil {
			return false, err
		}
		if !bytes.Equal(chunk, data[:len(chunk)]) {
			return false, nil
		}
		addr += uint32(len(chunk))
		data = data[len(chunk):]
	}
	return true, nil
}

// ReadData copies up to len(buf) payload bytes of rec into buf.
func ReadData(m Media, rec Record, buf []byte) (int, error) {
	n := min(int(rec.Header.DataSize), len(buf))
	if n == 0 {
		return 0, nil
	}
	if err := m.Read(rec.DataAddr(), buf[:n]); err != nil {
		return 0, err
	}
	return n, nil
}
