package protocol

import (
	"errors"
	"fmt"
)

var ErrPayloadTooLarge = errors.New("payload exceeds frame size")

// Frame is one decoded message block.
type Frame struct {
	Seq     uint8
	Payload []byte
}

// AppendFrame appends a complete frame carrying payload to dst.
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > MessagePayloadMax {
		return dst, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	start := len(dst)
	dst = append(dst, byte(len(payload)+MessageLengthMin), seq&MessageSeqMask|MessageDest)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, byte(crc>>8), byte(crc), MessageValueSync), nil
}

// EncodeFrame returns a new frame carrying payload.
func EncodeFrame(seq uint8, payload []byte) ([]byte, error) {
	return AppendFrame(make([]byte, 0, len(payload)+MessageLengthMin), seq, payload)
}

// checkFrame reports how data starts. It returns the frame length when a
// valid frame is at the front, 0 when more bytes are needed, and -1 when
// the front byte cannot start a frame.
func checkFrame(data []byte) int {
	if len(data) < MessageLengthMin {
		if len(data) > 0 && !validHeader(data) {
			return -1
		}
		return 0
	}
	if !validHeader(data) {
		return -1
	}
	n := int(data[MessagePositionLen])
	if len(data) < n {
		return 0
	}
	if data[n-MessageTrailerSync] != MessageValueSync {
		return -1
	}
	got := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
	if got != CRC16(data[:n-MessageTrailerSize]) {
		return -1
	}
	return n
}

func validHeader(data []byte) bool {
	n := int(data[MessagePositionLen])
	if n < MessageLengthMin || n > MessageLengthMax {
		return false
	}
	return len(data) < 2 || data[MessagePositionSeq]&^MessageSeqMask == MessageDest
}

// DecodeFrames splits data into frames. On a bad length, sequence byte,
// CRC or trailer it discards up to and including the next sync byte and
// carries on. rest holds a trailing partial frame to prepend to the next
// read. dropped counts discarded bytes.
func DecodeFrames(data []byte) (frames []Frame, rest []byte, dropped int) {
	for len(data) > 0 {
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		switch n := checkFrame(data); {
		case n > 0:
			frames = append(frames, Frame{
				Seq:     data[MessagePositionSeq] & MessageSeqMask,
				Payload: data[MessageHeaderSize : n-MessageTrailerSize],
			})
			data = data[n:]
		case n == 0:
			return frames, data, dropped
		default:
			skip := len(data)
			for i, b := range data {
				if b == MessageValueSync {
					skip = i + 1
					break
				}
			}
			dropped += skip
			data = data[skip:]
		}
	}
	return frames, nil, dropped
}

// Decoder reassembles frames from a byte stream.
type Decoder struct {
	fifo    *FifoBuffer
	dropped int
}

func NewDecoder() *Decoder {
	return &Decoder{fifo: NewFifoBuffer(4 * MessageLengthMax)}
}

// Feed buffers data and returns the frames it completes. Frame payloads
// are copied and stay valid after later calls.
func (d *Decoder) Feed(data []byte) []Frame {
	var out []Frame
	for len(data) > 0 {
		n := d.fifo.Write(data)
		data = data[n:]

		frames, rest, dropped := DecodeFrames(d.fifo.Data())
		for _, f := range frames {
			f.Payload = append([]byte(nil), f.Payload...)
			out = append(out, f)
		}
		d.dropped += dropped
		d.fifo.Pop(d.fifo.Available() - len(rest))
	}
	return out
}

// Dropped returns the number of bytes discarded while resynchronizing.
func (d *Decoder) Dropped() int {
	return d.dropped
}
