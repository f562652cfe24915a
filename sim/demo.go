package sim

import (
	"fmt"
	"math"
	"sort"

	"bldc/core"
)

// DemoFunc arms a demonstration on an initialized machine. The demo runs
// from timer callbacks as the machine clock advances.
type DemoFunc func(m *Machine) error

var demos = map[string]DemoFunc{
	"pwm-comm": PWMCommDemo,
	"pwm-duty": PWMDutyDemo,
	"timer":    TimerDemo,
	"adc":      ADCDemo,
}

// Demos returns the demo names, sorted.
func Demos() []string {
	names := make([]string, 0, len(demos))
	for name := range demos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartDemo arms the named demo.
func (m *Machine) StartDemo(name string) error {
	demo, ok := demos[name]
	if !ok {
		return fmt.Errorf("unknown demo %q", name)
	}
	if err := demo(m); err != nil {
		return fmt.Errorf("demo %s: %w", name, err)
	}
	return nil
}

// commutate triggers a commutation every sim.commutation_interval and
// toggles the red LED with each one.
func commutate(m *Machine) error {
	delta := m.HWTicks(m.cfg.Sim.CommutationInterval)
	if delta >= core.MinTimerDelta && delta <= math.MaxUint16 {
		_, err := m.HWTimers.Register(uint16(delta), func(int, uint16) {
			m.Engine.TriggerCommutation()
			m.Indicator.Toggle(core.LEDRed)
		})
		return err
	}

	// Too long for the 16-bit compare timer; fall back to the tick.
	period := m.cfg.SysTickTicks(m.cfg.Sim.CommutationInterval)
	if period == 0 {
		return core.ErrIntervalTooShort
	}
	slot := m.SoftTimers.Register(period-1, func(int) {
		m.Engine.TriggerCommutation()
		m.Indicator.Toggle(core.LEDRed)
	})
	if slot == core.NoSlot {
		return core.ErrCapacityExceeded
	}
	return nil
}

// PWMCommDemo applies the configured duty and commutates continuously.
func PWMCommDemo(m *Machine) error {
	m.Engine.SetDuty(m.cfg.Sim.Duty)
	return commutate(m)
}

// DutySweepStep is the duty increment of the duty sweep demo.
const DutySweepStep = 0xF

// PWMDutyDemo commutates once to enable the outputs, then sweeps the
// duty between the int16 limits in DutySweepStep increments, reversing
// at either end, one increment every other tick.
func PWMDutyDemo(m *Machine) error {
	m.Engine.SetDuty(0)
	m.Engine.TriggerCommutation()

	duty := int32(0)
	dir := int32(1)
	slot := m.SoftTimers.Register(1, func(int) {
		next := duty + DutySweepStep*dir
		if next > math.MaxInt16 || next < math.MinInt16 {
			dir = -dir
			next = duty + DutySweepStep*dir
		}
		duty = next
		m.Engine.SetDuty(int16(duty))
		m.Indicator.Toggle(core.LEDRed)
	})
	if slot == core.NoSlot {
		return core.ErrCapacityExceeded
	}
	return nil
}

const (
	// BlinkDelta is the period of the timer demo, 1kHz at 4MHz.
	BlinkDelta = 4000
	// BlinkOnTicks is how long the timer demo keeps the red LED lit.
	BlinkOnTicks = 100
)

// TimerDemo lights the red LED every BlinkDelta compare ticks and
// schedules a one-shot that turns it off BlinkOnTicks later.
func TimerDemo(m *Machine) error {
	_, err := m.HWTimers.Register(BlinkDelta, func(int, uint16) {
		m.Indicator.On(core.LEDRed)
		if _, err := m.HWTimers.RegisterOneShot(BlinkOnTicks, func(int, uint16) {
			m.Indicator.Off(core.LEDRed)
		}); err != nil {
			// Interrupt context: queue, never block on the writer.
			core.DebugAsync("timer demo: " + err.Error())
		}
	})
	return err
}

// ADCDemo starts acquisition with the commutation demo running, so the
// phase monitor sees driven and floating legs.
func ADCDemo(m *Machine) error {
	if err := m.StartAcquisition(); err != nil {
		return err
	}
	return PWMCommDemo(m)
}
