package main

import (
	"errors"
	"fmt"
	"io"

	"rtccounter/core"
	"rtccounter/protocol"
)

// replay decodes a captured trace stream and prints one line per record.
// It returns the number of records printed. Corrupt frames are skipped and
// reported at the end.
func replay(r io.Reader, out io.Writer) (int, error) {
	dec := protocol.NewDecoder()
	buf := make([]byte, 4096)
	records, bad := 0, 0
	for {
		n, err := r.Read(buf)
		for _, f := range dec.Feed(buf[:n]) {
			evts, derr := protocol.DecodeRecords(f.Payload)
			if derr != nil {
				bad++
			}
			for _, evt := range evts {
				fmt.Fprintln(out, formatRecord(evt))
				records++
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records, err
		}
	}
	if bad > 0 || dec.Dropped() > 0 {
		fmt.Fprintf(out, "%d bad frames, %d bytes skipped\n", bad, dec.Dropped())
	}
	return records, nil
}

// formatRecord renders a trace record, naming the error for failed calls.
func formatRecord(evt core.TimingEvent) string {
	line := core.FormatTimingEvent(evt)
	switch {
	case evt.EventType == protocol.RecordAlarmCancel,
		evt.EventType == protocol.RecordAlarmSet && evt.Channel == core.NoChannel:
		if err := core.ErrnoError(int32(evt.Value2)); err != nil {
			line += " (" + err.Error() + ")"
		}
	}
	return line
}
