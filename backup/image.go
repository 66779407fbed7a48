// Package backup stores raw region images in object storage.
//
// Every image is framed before upload:
//
//	magic "NVIMG1" | compression u8 | raw length u32 | CRC32C(raw) u32 | payload
//
// Integers are little endian. Erased flash is mostly 0xFF, so images
// compress well.
package backup

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/nvram/internal/hash"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how the payload of a frame is encoded.
type Compression uint8

const (
	// None stores the image as is.
	None Compression = 0
	// LZ4 uses LZ4 block compression.
	LZ4 Compression = 1
	// Zstd uses Zstandard. This is the default.
	Zstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	for _, c := range []Compression{None, LZ4, Zstd} {
		if c.String() == s {
			return c, nil
		}
	}
	return None, fmt.Errorf("backup: unknown compression %q", s)
}

var (
	// ErrBadMagic is returned when a frame does not start with the image magic.
	ErrBadMagic = errors.New("backup: bad image magic")
	// ErrCorrupt is returned for truncated or undecodable frames.
	ErrCorrupt = errors.New("backup: corrupt image")
	// ErrChecksum is returned when the decoded image does not match its CRC.
	ErrChecksum = errors.New("backup: checksum mismatch")
)

const (
	magic      = "NVIMG1"
	headerSize = len(magic) + 1 + 4 + 4

	// MaxImageSize bounds the raw length a frame may declare. It is far
	// above any NOR part the store runs on.
	MaxImageSize = 64 << 20
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxImageSize))
	return dec
}

// Encode frames img with the requested compression. If LZ4 cannot shrink
// the image it is stored uncompressed.
func Encode(img []byte, c Compression) ([]byte, error) {
	if len(img) > MaxImageSize {
		return nil, fmt.Errorf("backup: image of %d bytes exceeds %d", len(img), MaxImageSize)
	}
	var payload []byte
	switch c {
	case None:
		payload = img
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(img)))
		n, err := lz4.CompressBlock(img, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("backup: lz4: %w", err)
		}
		if n == 0 {
			c, payload = None, img
		} else {
			payload = buf[:n]
		}
	case Zstd:
		enc := getZstdEncoder()
		payload = enc.EncodeAll(img, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("backup: unknown compression %d", c)
	}

	out := make([]byte, headerSize+len(payload))
	copy(out, magic)
	out[len(magic)] = byte(c)
	binary.LittleEndian.PutUint32(out[len(magic)+1:], uint32(len(img)))
	binary.LittleEndian.PutUint32(out[len(magic)+5:], hash.CRC32C(img))
	copy(out[headerSize:], payload)
	return out, nil
}

// Decode verifies a frame and returns the raw image.
func Decode(frame []byte) ([]byte, error) {
	if len(frame) < headerSize {
		return nil, fmt.Errorf("%w: %d byte frame", ErrCorrupt, len(frame))
	}
	if string(frame[:len(magic)]) != magic {
		return nil, ErrBadMagic
	}
	c := Compression(frame[len(magic)])
	size := binary.LittleEndian.Uint32(frame[len(magic)+1:])
	sum := binary.LittleEndian.Uint32(frame[len(magic)+5:])
	payload := frame[headerSize:]
	if size > MaxImageSize {
		return nil, fmt.Errorf("%w: declared size %d exceeds %d", ErrCorrupt, size, MaxImageSize)
	}

	var img []byte
	switch c {
	case None:
		img = payload
	case LZ4:
		img = make([]byte, size)
		n, err := lz4.UncompressBlock(payload, img)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %w", ErrCorrupt, err)
		}
		img = img[:n]
	case Zstd:
		dec := getZstdDecoder()
		var err error
		img, err = dec.DecodeAll(payload, make([]byte, 0, size))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrCorrupt, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, c)
	}

	if uint32(len(img)) != size {
		return nil, fmt.Errorf("%w: %d bytes decoded, %d expected", ErrCorrupt, len(img), size)
	}
	if hash.CRC32C(img) != sum {
		return nil, ErrChecksum
	}
	return img, nil
}
