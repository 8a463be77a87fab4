package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"rtccounter/config"
	"rtccounter/core"
)

func newTestSession(t *testing.T) (*session, *bytes.Buffer) {
	t.Helper()
	unit, ok := config.DefaultConfig().Unit("rtc2")
	if !ok {
		t.Fatal("default config has no rtc2")
	}
	var out bytes.Buffer
	return newSession(&out, unit, nil), &out
}

func run(t *testing.T, s *session, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if err := s.exec(line); err != nil {
			t.Fatalf("%q: %v", line, err)
		}
	}
}

func TestSessionAlarmFires(t *testing.T) {
	s, out := newTestSession(t)
	run(t, s, "start", `alarm 1s "first alarm"`, "advance 32767")
	if s.fired != 0 {
		t.Fatalf("Alarm fired early")
	}
	run(t, s, "advance 1")
	if s.fired != 1 {
		t.Fatalf("Expected one fire, got %d", s.fired)
	}
	if !strings.Contains(out.String(), "first alarm fired at 32768") {
		t.Errorf("Missing fire message in output:\n%s", out.String())
	}
}

func TestSessionRepeatRearms(t *testing.T) {
	s, _ := newTestSession(t)
	run(t, s, "start", "repeat 32768", "repeat 5s slow", "advance 30s")

	// 30 fires at 1s and 6 at 5s.
	if s.fired != 36 {
		t.Errorf("Expected 36 fires, got %d", s.fired)
	}
	if st := s.dev.Stats(); st.Active != 2 {
		t.Errorf("Expected both alarms still armed, got %+v", st)
	}
}

func TestSessionReportsErrno(t *testing.T) {
	s, _ := newTestSession(t)

	err := s.exec("alarm 100")
	if !errors.Is(err, core.ErrNotSupported) {
		t.Fatalf("Expected ErrNotSupported before start, got %v", err)
	}
	if !strings.Contains(err.Error(), "= -134") {
		t.Errorf("Expected errno in message: %v", err)
	}

	run(t, s, "start")
	if err := s.exec("alarm 2"); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
	for i := 0; i < 4; i++ {
		run(t, s, "alarm 1000")
	}
	if err := s.exec("alarm 1000"); !errors.Is(err, core.ErrNoMemory) {
		t.Errorf("Expected ErrNoMemory with all channels busy, got %v", err)
	}
}

func TestSessionWrapAndRead(t *testing.T) {
	s, out := newTestSession(t)
	run(t, s, "start", "wrap", "wrap", "read", "stats")

	if got := s.dev.Read(); got != 2*core.CounterPeriod {
		t.Errorf("Expected count %d after two wraps, got %d", 2*core.CounterPeriod, got)
	}
	if !strings.Contains(out.String(), "overflows=2") {
		t.Errorf("Expected overflow count in stats:\n%s", out.String())
	}
}

func TestSessionCommandErrors(t *testing.T) {
	s, _ := newTestSession(t)

	if err := s.exec("quit"); !errors.Is(err, errQuit) {
		t.Errorf("Expected errQuit, got %v", err)
	}
	for _, line := range []string{"bogus", "alarm", "alarm x", "advance 1 2", `alarm "unterminated`, "debug maybe"} {
		if err := s.exec(line); err == nil {
			t.Errorf("%q: expected an error", line)
		}
	}
	if err := s.exec("   "); err != nil {
		t.Errorf("Blank line should be ignored, got %v", err)
	}
}

func TestSessionDebugTracesEvents(t *testing.T) {
	s, out := newTestSession(t)
	defer func() {
		core.SetDebugEnabled(false)
		core.SetDebugWriter(func(string) {})
	}()

	run(t, s, "debug on", "start", "alarm 100 a", "advance 200", "wrap")
	if err := s.exec("alarm 1"); err == nil {
		t.Fatalf("Expected alarm 1 to be rejected")
	}
	run(t, s, "stop")

	for _, want := range []string{
		"[rtc2] [TIMING] START",
		"[TIMING] ALARM_SET ch=0 clock=0 v1=100 v2=100",
		"[TIMING] ALARM_FIRE ch=0 clock=100 v1=100 v2=0",
		"[TIMING] OVERFLOW",
		"[TIMING] ALARM_SET clock=16777216 v1=0 v2=-22",
		"[TIMING] STOP",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Missing %q in output:\n%s", want, out.String())
		}
	}

	out.Reset()
	run(t, s, "debug off", "start", "alarm 100", "advance 200")
	if strings.Contains(out.String(), "[TIMING]") {
		t.Errorf("Timing lines printed with debug off:\n%s", out.String())
	}
}
