package sim

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"bldc/core"
)

func TestDemos(t *testing.T) {
	want := []string{"adc", "pwm-comm", "pwm-duty", "timer"}
	if diff := cmp.Diff(want, Demos()); diff != "" {
		t.Errorf("demos mismatch (-want +got):\n%s", diff)
	}

	m := newTestMachine(t)
	if err := m.StartDemo("spin"); err == nil || !strings.Contains(err.Error(), "unknown demo") {
		t.Errorf("unknown demo: got %v", err)
	}
}

func TestPWMCommDemo(t *testing.T) {
	m := newTestMachine(t)
	redEdges := m.Red.Edges()

	if err := m.StartDemo("pwm-comm"); err != nil {
		t.Fatal(err)
	}
	// Five 2ms commutation periods.
	if err := m.Run(10 * time.Millisecond); err != nil {
		t.Fatal(err)
	}

	st := m.Engine.State()
	if !st.Running || st.Step != 5 || st.Duty != m.Config().Sim.Duty {
		t.Errorf("state: got %+v", st)
	}
	// One event from Init, then two per commutation.
	if got := m.Bridge.Events(); got != 11 {
		t.Errorf("commutation events: got %d, want 11", got)
	}
	if got := m.IRQ.Count(IRQCommutation); got != 10 {
		t.Errorf("commutation interrupts: got %d, want 10", got)
	}
	if got := m.Red.Edges() - redEdges; got != 5 {
		t.Errorf("red LED edges: got %d, want 5", got)
	}
}

func TestPWMCommDemoSlowInterval(t *testing.T) {
	cfg := newTestMachine(t).Config()
	cfg.Sim.CommutationInterval = 50 * time.Millisecond
	m := New(cfg)
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}

	if err := m.StartDemo("pwm-comm"); err != nil {
		t.Fatal(err)
	}
	if m.SoftTimers.Free() != core.SoftTimerSlots-1 {
		t.Fatal("interval beyond the compare range did not use a soft timer")
	}
	if err := m.Run(100 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if got := m.Engine.State().Step; got != 2 {
		t.Errorf("step after two intervals: got %d, want 2", got)
	}
}

func TestPWMDutyDemo(t *testing.T) {
	m := newTestMachine(t)
	if err := m.StartDemo("pwm-duty"); err != nil {
		t.Fatal(err)
	}
	if got := m.Engine.State().Step; got != 1 {
		t.Errorf("outputs not enabled: step %d", got)
	}

	// The sweep advances every other tick.
	if err := m.Run(time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if got := m.Engine.State().Duty; got != 5*DutySweepStep {
		t.Errorf("duty after 1ms: got %d, want %d", got, 5*DutySweepStep)
	}
}

func TestPWMDutyDemoReverses(t *testing.T) {
	m := newTestMachine(t)
	if err := m.StartDemo("pwm-duty"); err != nil {
		t.Fatal(err)
	}

	// Tick the scheduler directly; the sweep to full scale is long.
	peak := int16(0)
	for i := 0; i < 2*(math.MaxInt16/DutySweepStep+10); i++ {
		m.SoftTimers.Tick()
		peak = max(peak, m.Engine.State().Duty)
	}
	if peak != math.MaxInt16/DutySweepStep*DutySweepStep {
		t.Errorf("peak duty: got %d", peak)
	}
	if got := m.Engine.State().Duty; got >= peak {
		t.Errorf("sweep did not reverse: duty %d", got)
	}
}

func TestTimerDemo(t *testing.T) {
	m := newTestMachine(t)
	if err := m.StartDemo("timer"); err != nil {
		t.Fatal(err)
	}

	if err := m.Run(10 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if !m.Indicator.Lit(core.LEDRed) {
		t.Error("red LED off right after the tenth blink")
	}
	// Ten periodic matches and nine one-shots.
	if got := m.IRQ.Count(IRQCompare); got != 19 {
		t.Errorf("compare interrupts: got %d, want 19", got)
	}

	if err := m.Run(25 * time.Microsecond); err != nil {
		t.Fatal(err)
	}
	if m.Indicator.Lit(core.LEDRed) {
		t.Error("red LED still lit after the one-shot")
	}
	if got := m.HWTimers.Free(); got != core.HardwareTimerSlots-1 {
		t.Errorf("free slots: got %d, want %d", got, core.HardwareTimerSlots-1)
	}
}

func TestTimerDemoQueuesOneShotFailure(t *testing.T) {
	var lines []string
	core.SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer core.SetDebugWriter(func(string) {})
	core.SetDebugEnabled(true)
	defer core.SetDebugEnabled(false)
	core.InitAsyncDebug()
	defer core.StopAsyncDebug()

	m := newTestMachine(t)
	if err := m.StartDemo("timer"); err != nil {
		t.Fatal(err)
	}
	for m.HWTimers.Free() > 0 {
		if _, err := m.HWTimers.Register(60000, func(int, uint16) {}); err != nil {
			t.Fatal(err)
		}
	}

	if err := m.Run(1100 * time.Microsecond); err != nil {
		t.Fatal(err)
	}
	core.StopAsyncDebug()

	want := []string{"timer demo: " + core.ErrCapacityExceeded.Error()}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("debug lines mismatch (-want +got):\n%s", diff)
	}
	if !m.Indicator.Lit(core.LEDRed) {
		t.Error("red LED not lit by the periodic timer")
	}
}

func TestADCDemo(t *testing.T) {
	m := newTestMachine(t)
	if err := m.StartDemo("adc"); err != nil {
		t.Fatal(err)
	}
	if err := m.Run(5 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if !m.ADC.Running() || m.ADC.Conversions() == 0 {
		t.Error("converters idle")
	}
	if m.Acquisition.TransferErrors() != 0 {
		t.Errorf("transfer errors: %d", m.Acquisition.TransferErrors())
	}
	if m.Engine.State().Step == 0 {
		t.Error("no commutation during acquisition")
	}
}
