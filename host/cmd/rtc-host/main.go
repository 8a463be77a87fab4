package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/mattn/go-colorable"

	"rtccounter/config"
	"rtccounter/core"
	"rtccounter/host/serial"
	"rtccounter/protocol"
)

var (
	configPath = flag.String("config", "", "Unit configuration file (YAML); built-in nRF52 layout if empty")
	unitName   = flag.String("unit", "rtc2", "Unit to simulate")
	tracePath  = flag.String("trace", "", "Write trace frames to this serial device or file")
	baud       = flag.Int("baud", 250000, "Trace port baud rate (ignored for USB CDC and files)")
	replayPath = flag.String("replay", "", "Decode a captured trace file and exit")
)

func main() {
	flag.Parse()

	out := colorable.NewColorableStdout()

	if *replayPath != "" {
		f, err := os.Open(*replayPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		n, err := replay(f, out)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: replay failed after %d records: %v\n", n, err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintln(out, "RTC Counter Host - 32-bit counter and alarm simulator")
	fmt.Fprintln(out, "=====================================================")

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: config load failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: config validation failed: %v\n", err)
		os.Exit(1)
	}
	unit, ok := cfg.Unit(*unitName)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: no unit named %q\n", *unitName)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	var tw *protocol.TraceWriter
	if *tracePath != "" {
		pcfg := serial.DefaultConfig(*tracePath)
		pcfg.Baud = *baud
		port, err := serial.Open(pcfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer port.Close()

		tw = protocol.NewTraceWriter(port, 256)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tw.Run(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error: trace write failed: %v\n", err)
			}
			port.Flush()
		}()
		fmt.Fprintf(out, "Tracing to %s\n", *tracePath)
	}

	var s *session
	if tw != nil {
		s = newSession(out, unit, tw.Record)
	} else {
		s = newSession(out, unit, nil)
	}
	fmt.Fprintf(out, "Unit %s: RTC%d, %d channels, %d Hz, wraps every %s\n\n",
		unit.Name, unit.Instance, unit.Channels, s.rate, core.WrapInterval(s.rate))

	fmt.Fprintln(out, "Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		err := s.exec(scanner.Text())
		if errors.Is(err, errQuit) {
			fmt.Fprintln(out, "Goodbye!")
			break
		}
		if err != nil {
			s.printf(colorRed, "Error: %v", err)
		}
	}

	cancel()
	wg.Wait()
	if tw != nil && tw.Dropped() > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d trace records dropped\n", tw.Dropped())
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}
