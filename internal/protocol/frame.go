package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the length prefix width: a 4-byte big-endian unsigned
// payload length.
const HeaderSize = 4

// DefaultMaxFrameBytes bounds frames when no limit is configured.
const DefaultMaxFrameBytes = 16 << 20

// ErrFrameTooLarge reports a length prefix beyond the configured limit.
// The stream cannot be resynchronized after one; callers must close the
// connection.
var ErrFrameTooLarge = errors.New("frame exceeds size limit")

// ReadFrame reads one length-prefixed frame. io.EOF before any header
// byte means the peer closed cleanly and is returned unwrapped.
func ReadFrame(r io.Reader, maxBytes int) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if maxBytes > 0 && uint64(n) > uint64(maxBytes) {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLarge, n, maxBytes)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading frame body: %w", err)
	}
	return payload, nil
}

// WriteFrame writes one length-prefixed frame as a single buffer so a
// frame is never interleaved mid-write.
func WriteFrame(w io.Writer, payload []byte, maxBytes int) error {
	if maxBytes > 0 && len(payload) > maxBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLarge, len(payload), maxBytes)
	}
	frame := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame[:HeaderSize], uint32(len(payload)))
	copy(frame[HeaderSize:], payload)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}
