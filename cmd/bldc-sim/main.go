// Command bldc-sim runs the motor controller core on a simulated board
// and reports what the peripherals saw.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"tinygo.org/x/drivers"

	"bldc/config"
	"bldc/core"
	"bldc/host/serial"
	"bldc/sim"
	"bldc/usart"
)

var (
	configPath = flag.String("config", "", "YAML configuration file (defaults to the STM32F103 board)")
	demo       = flag.String("demo", "pwm-comm", "Demo to run: "+strings.Join(sim.Demos(), ", "))
	duration   = flag.Duration("duration", 0, "Simulated time to run (overrides sim.duration)")
	port       = flag.String("port", "", "Serial device for the trace output (overrides sim.trace_port)")
	verbose    = flag.Bool("verbose", false, "Enable debug output")
	events     = flag.Bool("events", true, "Dump the event ring at the end")
)

// traceBuffer is the size of the trace FIFO between the core and the
// output.
const traceBuffer = 4096

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *duration > 0 {
		cfg.Sim.Duration = *duration
	}
	if *port != "" {
		cfg.Sim.TracePort = *port
	}

	out, closeOut, err := openTrace(cfg)
	if err != nil {
		return err
	}
	defer closeOut()

	tracer := usart.NewTracer(out, traceBuffer)
	core.SetDebugWriter(tracer.Println)
	core.SetDebugEnabled(*verbose)
	if core.IsDebugEnabled() {
		core.InitAsyncDebug()
	}
	// Drained before the report; this covers early returns.
	defer core.StopAsyncDebug()
	core.ClearEventRing()

	m := sim.New(cfg)
	if err := m.Init(); err != nil {
		return err
	}
	if err := m.StartDemo(*demo); err != nil {
		return err
	}

	// Run in slices so the trace drains while the simulation goes.
	const slice = time.Millisecond
	for elapsed := time.Duration(0); elapsed < cfg.Sim.Duration; elapsed += slice {
		if err := m.Run(min(slice, cfg.Sim.Duration-elapsed)); err != nil {
			return err
		}
		if err := tracer.Flush(); err != nil {
			return fmt.Errorf("trace: %w", err)
		}
	}

	core.StopAsyncDebug()
	report(tracer, m)
	if *events {
		core.DumpEventRing()
	}
	if err := tracer.Flush(); err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	if n := tracer.Dropped(); n > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d trace bytes dropped\n", n)
	}
	return nil
}

// openTrace returns the trace destination: the configured serial port,
// or stdout.
func openTrace(cfg *config.Config) (io.Writer, func(), error) {
	if cfg.Sim.TracePort == "" {
		return os.Stdout, func() {}, nil
	}

	sc := serial.DefaultConfig(cfg.Sim.TracePort)
	sc.Baud = cfg.Sim.TraceBaud
	p, err := serial.Open(sc)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { p.Close() }, nil
}

func report(tracer *usart.Tracer, m *sim.Machine) {
	say := func(format string, args ...interface{}) {
		tracer.Println(fmt.Sprintf(format, args...))
	}

	st := m.Engine.State()
	say("simulated %s", m.Now())
	say("commutation: running=%v step=%d duty=%d events=%d", st.Running, st.Step, st.Duty, m.Bridge.Events())
	say("interrupts: commutation=%d compare=%d dma=%d systick=%d",
		m.IRQ.Count(sim.IRQCommutation), m.IRQ.Count(sim.IRQCompare),
		m.IRQ.Count(sim.IRQDMA), m.IRQ.Count(sim.IRQSysTick))
	say("timers: hw free=%d soft free=%d ticks=%d",
		m.HWTimers.Free(), m.SoftTimers.Free(), m.SoftTimers.Timestamp())
	say("leds: green=%v (%d edges) red=%v (%d edges)",
		m.Indicator.Lit(core.LEDGreen), m.Green.Edges(),
		m.Indicator.Lit(core.LEDRed), m.Red.Edges())

	if !m.ADC.Running() {
		return
	}
	if err := m.Monitor.Update(drivers.Voltage); err != nil {
		say("monitor: %v", err)
		return
	}
	say("adc: conversions=%d halves=%d transfer errors=%d",
		m.ADC.Conversions(), m.Monitor.Rounds(), m.Acquisition.TransferErrors())
	say("monitor: U=%s V=%s W=%s bus=%s current=%s",
		m.Monitor.Phase(core.PhaseU), m.Monitor.Phase(core.PhaseV), m.Monitor.Phase(core.PhaseW),
		m.Monitor.BusVoltage(), m.Monitor.CurrentSense())
}
