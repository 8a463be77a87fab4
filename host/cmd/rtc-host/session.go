package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"rtccounter/config"
	"rtccounter/core"
	"rtccounter/sim"
)

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
)

var errQuit = errors.New("quit")

// session drives one simulated counter unit from typed commands.
type session struct {
	out  io.Writer
	unit config.UnitConfig
	rate uint32
	hw   *sim.RTC
	dev  *core.Device

	nextLabel int
	fired     int
}

// alarmInfo is the user data attached to every alarm set from the shell.
type alarmInfo struct {
	label  string
	delta  uint32
	target uint32
	repeat bool
}

func newSession(out io.Writer, unit config.UnitConfig, trace func(core.TimingEvent)) *session {
	hw := sim.New(unit.Channels)
	opts := unit.Options()
	opts.Trace = trace
	return &session{
		out:  out,
		unit: unit,
		rate: unit.TickRate(),
		hw:   hw,
		dev:  core.New(hw, opts),
	}
}

func (s *session) printf(color, format string, args ...any) {
	fmt.Fprintf(s.out, color+format+colorReset+"\n", args...)
}

// exec runs one command line. It returns errQuit when the session ends.
func (s *session) exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if len(args) == 0 {
		return nil
	}

	switch cmd, args := args[0], args[1:]; cmd {
	case "quit", "exit", "q":
		return errQuit

	case "help", "?":
		s.help()

	case "start":
		if err := s.dev.Start(); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s started at %d Hz\n", s.dev.Name(), s.rate)

	case "stop":
		if err := s.dev.Stop(); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s stopped\n", s.dev.Name())

	case "read":
		now := s.dev.Read()
		fmt.Fprintf(s.out, "count=%d raw=%d elapsed=%s\n",
			now, s.hw.Raw(), time.Duration(core.TicksToUS(now, s.rate))*time.Microsecond)

	case "alarm", "repeat":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: %s <ticks|duration> [label]", cmd)
		}
		delta, err := s.parseTicks(args[0])
		if err != nil {
			return err
		}
		s.nextLabel++
		info := &alarmInfo{
			label:  "alarm" + strconv.Itoa(s.nextLabel),
			delta:  delta,
			repeat: cmd == "repeat",
		}
		if len(args) == 2 {
			info.label = args[1]
		}
		return s.arm(info)

	case "advance":
		if len(args) != 1 {
			return errors.New("usage: advance <ticks|duration>")
		}
		ticks, err := s.parseTicks(args[0])
		if err != nil {
			return err
		}
		s.advance(ticks)

	case "wrap":
		s.advance(core.CounterPeriod - s.hw.Raw())

	case "pending":
		fmt.Fprintf(s.out, "pending=%v\n", s.dev.PendingInterrupt())

	case "channels":
		for ch := 0; ch < s.dev.Channels(); ch++ {
			if target, ok := s.dev.Target(ch); ok {
				fmt.Fprintf(s.out, "  ch%d: target=%d\n", ch, target)
			} else if s.dev.Busy(ch) {
				fmt.Fprintf(s.out, "  ch%d: firing\n", ch)
			} else {
				fmt.Fprintf(s.out, "  ch%d: free\n", ch)
			}
		}

	case "stats":
		st := s.dev.Stats()
		fmt.Fprintf(s.out, "allocated=%d freed=%d active=%d overflows=%d rearms=%d irq_drops=%d fired=%d\n",
			st.Allocated, st.Freed, st.Active, st.Overflows, st.Rearms, st.IRQDrops, s.fired)

	case "dump":
		core.SetDebugWriter(func(line string) { fmt.Fprintln(s.out, line) })
		s.dev.DumpTimingRing()

	case "debug":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return errors.New("usage: debug on|off")
		}
		core.SetDebugWriter(func(line string) { fmt.Fprintln(s.out, line) })
		core.SetDebugEnabled(args[0] == "on")

	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
	return nil
}

func (s *session) arm(info *alarmInfo) error {
	info.target = s.dev.Read() + info.delta
	if err := s.dev.SetAlarm(s.onAlarm, info.delta, info); err != nil {
		return fmt.Errorf("%s: set_alarm(%d) = %d: %w", info.label, info.delta, core.Errno(err), err)
	}
	fmt.Fprintf(s.out, "%s armed for %d (in %d ticks)\n", info.label, info.target, info.delta)
	return nil
}

// onAlarm runs in the device's interrupt context.
func (s *session) onAlarm(c core.Counter, userData any) {
	info := userData.(*alarmInfo)
	now := c.Read()
	s.fired++
	s.printf(colorGreen, "%s fired at %d (target %d, late %d)", info.label, now, info.target, now-info.target)

	if info.repeat {
		next := *info
		next.target = now + info.delta
		if err := c.SetAlarm(s.onAlarm, info.delta, &next); err != nil {
			s.printf(colorRed, "%s: re-arm failed: %v", info.label, err)
		}
	}
}

// advance moves simulated time forward, servicing interrupts at each tick
// that raises one.
func (s *session) advance(ticks uint32) {
	if !s.hw.Running() {
		s.printf(colorYellow, "counter is stopped")
		return
	}
	for ticks > 0 {
		used := s.hw.Step(ticks)
		if used == 0 {
			break
		}
		ticks -= used
		s.dev.Dispatch()
	}
}

// parseTicks accepts a tick count or a duration such as 250ms.
func (s *session) parseTicks(arg string) (uint32, error) {
	if strings.ContainsAny(arg, "numsh") {
		d, err := time.ParseDuration(arg)
		if err != nil {
			return 0, err
		}
		return core.TicksFromDuration(d, s.rate), nil
	}
	v, err := strconv.ParseUint(arg, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad tick count %q: %w", arg, err)
	}
	return uint32(v), nil
}

func (s *session) help() {
	fmt.Fprintln(s.out, "\nAvailable commands:")
	fmt.Fprintln(s.out, "  start / stop             - Start or stop the counter")
	fmt.Fprintln(s.out, "  read                     - Read the 32-bit count")
	fmt.Fprintln(s.out, "  alarm <delta> [label]    - Set a one-shot alarm (ticks or 1s, 250ms)")
	fmt.Fprintln(s.out, "  repeat <delta> [label]   - Set an alarm that re-arms itself")
	fmt.Fprintln(s.out, "  advance <delta>          - Advance simulated time")
	fmt.Fprintln(s.out, "  wrap                     - Advance to the next hardware overflow")
	fmt.Fprintln(s.out, "  pending                  - Show whether an interrupt is pending")
	fmt.Fprintln(s.out, "  channels                 - Show compare channel use")
	fmt.Fprintln(s.out, "  stats                    - Show scheduler counters")
	fmt.Fprintln(s.out, "  dump                     - Dump the timing ring")
	fmt.Fprintln(s.out, "  debug on|off             - Toggle debug messages")
	fmt.Fprintln(s.out, "  quit/exit/q              - Exit the program")
	fmt.Fprintln(s.out)
}
