package protocol

// OutputBuffer receives encoded protocol bytes.
type OutputBuffer interface {
	Output(data []byte)

	// CurPosition returns the current write position.
	CurPosition() int

	// Update overwrites a byte already written.
	Update(pos int, val byte)

	// DataSince returns the bytes written from pos to the current position.
	DataSince(pos int) []byte
}

// ScratchOutput is an OutputBuffer over a fixed frame-sized array. Writes
// past the end are truncated; Overflowed reports it.
type ScratchOutput struct {
	buf       [MessageLengthMax]byte
	pos       int
	truncated bool
}

func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
	if n < len(data) {
		s.truncated = true
	}
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns the accumulated bytes. The slice aliases the buffer.
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Overflowed reports whether any write was truncated since the last Reset.
func (s *ScratchOutput) Overflowed() bool {
	return s.truncated
}

func (s *ScratchOutput) Reset() {
	s.pos = 0
	s.truncated = false
}

// FifoBuffer is a byte ring used to reassemble frames from a stream.
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
}

// NewFifoBuffer returns a ring that holds up to capacity-1 bytes.
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the count written.
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		next := (f.write + 1) % len(f.buf)
		if next == f.read {
			break
		}
		f.buf[f.write] = b
		f.write = next
		written++
	}
	return written
}

func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return len(f.buf) - f.read + f.write
}

func (f *FifoBuffer) Free() int {
	return len(f.buf) - f.Available() - 1
}

// Data returns the buffered bytes contiguously, copying when the ring has
// wrapped.
func (f *FifoBuffer) Data() []byte {
	if f.read <= f.write {
		return f.buf[f.read:f.write]
	}
	out := make([]byte, 0, f.Available())
	out = append(out, f.buf[f.read:]...)
	return append(out, f.buf[:f.write]...)
}

// Pop discards n bytes from the front.
func (f *FifoBuffer) Pop(n int) {
	if avail := f.Available(); n > avail {
		n = avail
	}
	f.read = (f.read + n) % len(f.buf)
}

func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}
