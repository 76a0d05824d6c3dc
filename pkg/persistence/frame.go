// Package persistence implements the append-only edge log used by the
// in-memory backend: a sequence of CRC-checked binary frames, each carrying
// one operation code and an opaque payload.
package persistence

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

const (
	// MagicByte marks the start of a frame.
	MagicByte = 0xA5

	// HeaderSize is Magic(1) + OpCode(1) + Length(4) + CRC32(4).
	HeaderSize = 10

	// MaxPayload bounds a single frame so a corrupted length cannot trigger a huge allocation.
	MaxPayload = 64 << 20
)

// OpCode identifies the operation a frame carries.
type OpCode byte

const (
	OpAddEdge    OpCode = 0x01
	OpDeleteEdge OpCode = 0x02
)

var (
	ErrInvalidMagic     = errors.New("invalid magic byte")
	ErrChecksumMismatch = errors.New("crc32 checksum mismatch")
	// ErrIncompleteFrame indicates the log ended in the middle of a frame (e.g. crash during write).
	ErrIncompleteFrame = errors.New("incomplete frame")
	ErrFrameTooLarge   = errors.New("frame too large")
)

// Frame is one decoded log entry.
type Frame struct {
	Op      OpCode
	Payload []byte
}

// FrameWriter encodes frames onto an io.Writer.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter wraps w. Use a buffered writer so header and payload reach
// the file in a single write.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes [Magic][Op][Length LE][CRC32 LE][Payload].
func (fw *FrameWriter) WriteFrame(op OpCode, payload []byte) error {
	if len(payload) > MaxPayload {
		return ErrFrameTooLarge
	}
	var header [HeaderSize]byte
	header[0] = MagicByte
	header[1] = byte(op)
	binary.LittleEndian.PutUint32(header[2:6], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[6:10], crc32.ChecksumIEEE(payload))

	if _, err := fw.w.Write(header[:]); err != nil {
		return err
	}
	_, err := fw.w.Write(payload)
	return err
}

// ReadFrame reads and validates the next frame. It returns io.EOF only at a
// clean frame boundary.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, ErrIncompleteFrame
	}
	if header[0] != MagicByte {
		return Frame{}, ErrInvalidMagic
	}

	length := binary.LittleEndian.Uint32(header[2:6])
	if length > MaxPayload {
		return Frame{}, ErrFrameTooLarge
	}
	expectedCRC := binary.LittleEndian.Uint32(header[6:10])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, ErrIncompleteFrame
	}
	if crc32.ChecksumIEEE(payload) != expectedCRC {
		return Frame{}, ErrChecksumMismatch
	}
	return Frame{Op: OpCode(header[1]), Payload: payload}, nil
}
