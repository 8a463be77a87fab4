package protocol

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"rtccounter/core"
)

var ErrUnknownRecord = errors.New("unknown trace record")

// Trace record ids. They share the values of the core timing event codes.
const (
	RecordAlarmSet    = core.EvtAlarmSet
	RecordAlarmFire   = core.EvtAlarmFire
	RecordAlarmRearm  = core.EvtAlarmRearm
	RecordAlarmCancel = core.EvtAlarmCancel
	RecordOverflow    = core.EvtOverflow
	RecordStart       = core.EvtStart
	RecordStop        = core.EvtStop
	RecordIRQDrop     = core.EvtIRQDrop
)

// EncodeRecord writes evt as a trace payload:
// id, channel, clock, value1, value2, each VLQ encoded.
func EncodeRecord(output OutputBuffer, evt core.TimingEvent) {
	EncodeVLQUint(output, uint32(evt.EventType))
	EncodeVLQUint(output, uint32(evt.Channel))
	EncodeVLQUint(output, evt.Clock)
	EncodeVLQUint(output, evt.Value1)
	EncodeVLQUint(output, evt.Value2)
}

// DecodeRecord parses one record and advances data past it.
func DecodeRecord(data *[]byte) (core.TimingEvent, error) {
	var fields [5]uint32
	for i := range fields {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return core.TimingEvent{}, err
		}
		fields[i] = v
	}
	if fields[0] < RecordAlarmSet || fields[0] > RecordIRQDrop || fields[1] > 0xFF {
		return core.TimingEvent{}, ErrUnknownRecord
	}
	return core.TimingEvent{
		EventType: uint8(fields[0]),
		Channel:   uint8(fields[1]),
		Clock:     fields[2],
		Value1:    fields[3],
		Value2:    fields[4],
	}, nil
}

// DecodeRecords parses every record in a frame payload.
func DecodeRecords(payload []byte) ([]core.TimingEvent, error) {
	var out []core.TimingEvent
	for len(payload) > 0 {
		evt, err := DecodeRecord(&payload)
		if err != nil {
			return out, err
		}
		out = append(out, evt)
	}
	return out, nil
}

// TraceWriter turns a device trace hook into frames on an io.Writer.
//
// Record is safe to call from interrupt paths: it encodes into a frame and
// queues it without blocking. Frames that do not fit the queue are dropped
// and counted. Run or Flush perform the writes.
type TraceWriter struct {
	w      io.Writer
	mu     sync.Mutex
	seq    uint8
	out    ScratchOutput
	frames chan []byte

	dropped atomic.Uint32
}

// NewTraceWriter returns a writer queuing up to depth frames.
func NewTraceWriter(w io.Writer, depth int) *TraceWriter {
	if depth <= 0 {
		depth = 64
	}
	return &TraceWriter{w: w, frames: make(chan []byte, depth)}
}

// Record is a core.Options.Trace hook.
func (t *TraceWriter) Record(evt core.TimingEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.out.Reset()
	EncodeRecord(&t.out, evt)
	frame, err := EncodeFrame(t.seq, t.out.Result())
	if err != nil {
		t.dropped.Add(1)
		return
	}
	select {
	case t.frames <- frame:
		t.seq = (t.seq + 1) & MessageSeqMask
	default:
		t.dropped.Add(1)
	}
}

// Flush writes every queued frame.
func (t *TraceWriter) Flush() error {
	for {
		select {
		case f := <-t.frames:
			if _, err := t.w.Write(f); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// Run writes frames as they are queued until ctx is canceled, then flushes
// what is left.
func (t *TraceWriter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return t.Flush()
		case f := <-t.frames:
			if _, err := t.w.Write(f); err != nil {
				return err
			}
		}
	}
}

// Dropped returns the number of records lost to a full queue.
func (t *TraceWriter) Dropped() uint32 {
	return t.dropped.Load()
}
