package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestCRC16(t *testing.T) {
	testCases := []struct {
		data     []byte
		expected uint16
	}{
		{[]byte("123456789"), 0x6F91},
		{[]byte{}, 0xFFFF},
	}

	for _, tc := range testCases {
		if got := CRC16(tc.data); got != tc.expected {
			t.Errorf("CRC16(%q): expected %04X, got %04X", tc.data, tc.expected, got)
		}
	}

	if CRC16([]byte{1, 2, 3}) == CRC16([]byte{1, 2, 4}) {
		t.Errorf("CRC16 collision on single byte change")
	}
}

func TestEncodeFrame(t *testing.T) {
	frame, err := EncodeFrame(0x13, []byte{0xAA, 0xBB})
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	if len(frame) != 7 {
		t.Fatalf("Expected 7 byte frame, got % x", frame)
	}
	if frame[0] != 7 || frame[1] != 0x13 || frame[6] != MessageValueSync {
		t.Errorf("Bad header or trailer: % x", frame)
	}
	crc := CRC16(frame[:4])
	if frame[4] != byte(crc>>8) || frame[5] != byte(crc) {
		t.Errorf("CRC not big endian: % x", frame)
	}

	if _, err := EncodeFrame(0, make([]byte, MessagePayloadMax+1)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestDecodeFrames(t *testing.T) {
	var stream []byte
	for seq := uint8(0); seq < 3; seq++ {
		var err error
		stream, err = AppendFrame(stream, seq, []byte{seq, seq + 1})
		if err != nil {
			t.Fatal(err)
		}
	}

	frames, rest, dropped := DecodeFrames(stream)
	if len(frames) != 3 || len(rest) != 0 || dropped != 0 {
		t.Fatalf("Expected 3 clean frames, got %d frames rest=%v dropped=%d", len(frames), rest, dropped)
	}
	for i, f := range frames {
		if f.Seq != uint8(i) || !bytes.Equal(f.Payload, []byte{byte(i), byte(i + 1)}) {
			t.Errorf("frame %d: unexpected %+v", i, f)
		}
	}

	frames, rest, _ = DecodeFrames(stream[:10])
	if len(frames) != 1 || !bytes.Equal(rest, stream[7:10]) {
		t.Errorf("Expected one frame and a partial rest, got %d frames rest=% x", len(frames), rest)
	}
}

func TestDecodeFramesResync(t *testing.T) {
	good, _ := EncodeFrame(1, []byte{0x42})
	bad := append([]byte(nil), good...)
	bad[2] ^= 0xFF

	stream := append([]byte{0x00, 0x7E}, bad...)
	stream = append(stream, good...)

	frames, rest, dropped := DecodeFrames(stream)
	if len(frames) != 1 || frames[0].Seq != 1 || frames[0].Payload[0] != 0x42 {
		t.Fatalf("Expected to recover the good frame, got %+v", frames)
	}
	if len(rest) != 0 {
		t.Errorf("Unexpected rest % x", rest)
	}
	if dropped != 2+len(bad) {
		t.Errorf("Expected %d dropped bytes, got %d", 2+len(bad), dropped)
	}
}

func TestDecoderFeedsAcrossReads(t *testing.T) {
	var stream []byte
	for seq := uint8(0); seq < 40; seq++ {
		stream, _ = AppendFrame(stream, seq, []byte{seq, 1, 2, 3, 4, 5})
	}

	dec := NewDecoder()
	var got []Frame
	for off := 0; off < len(stream); off += 7 {
		end := off + 7
		if end > len(stream) {
			end = len(stream)
		}
		got = append(got, dec.Feed(stream[off:end])...)
	}

	if len(got) != 40 {
		t.Fatalf("Expected 40 frames, got %d", len(got))
	}
	for i, f := range got {
		if f.Seq != uint8(i)&MessageSeqMask || f.Payload[0] != byte(i) {
			t.Errorf("frame %d: unexpected %+v", i, f)
		}
	}
	if dec.Dropped() != 0 {
		t.Errorf("Expected no dropped bytes, got %d", dec.Dropped())
	}
}
