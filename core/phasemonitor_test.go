package core

import (
	"testing"

	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"
)

// bufferFor fills every slot with the value given for its channel.
func bufferFor(values map[ADCChannel]uint16) *RawBuffer {
	var b RawBuffer
	for slot, info := range SlotLayout() {
		b[slot] = values[info.Channel]
	}
	return &b
}

func TestPhaseMonitorFilterStep(t *testing.T) {
	m := NewPhaseMonitor(MonitorConfig{VRef: 4096 * physic.MilliVolt})
	buf := bufferFor(map[ADCChannel]uint16{
		ChanPhaseU: 600, ChanPhaseV: 1200, ChanPhaseW: 2400,
		ChanVBatt: 3000, ChanCurrent: 60,
	})

	m.Consume(false, buf)

	if m.Raw(PhaseU) != 0 {
		t.Error("filtered value visible before Update")
	}
	if err := m.Update(drivers.Voltage); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	want := map[Phase]uint16{PhaseU: 200, PhaseV: 400, PhaseW: 800}
	for p, v := range want {
		if got := m.Raw(p); got != v {
			t.Errorf("phase %s: got %d, want %d", p, got, v)
		}
	}
	if got := m.BusVoltage(); got != 1000*physic.MilliVolt {
		t.Errorf("bus voltage: got %s, want 1V", got)
	}
	if got := m.CurrentSense(); got != 20*physic.MilliVolt {
		t.Errorf("current sense: got %s, want 20mV", got)
	}
	if m.Rounds() != 1 {
		t.Errorf("rounds: got %d, want 1", m.Rounds())
	}
}

func TestPhaseMonitorBothHalves(t *testing.T) {
	m := NewPhaseMonitor(DefaultMonitorConfig())

	// Only the completed half is read; the other half holds garbage.
	buf := bufferFor(map[ADCChannel]uint16{ChanPhaseU: 1200})
	for i := 0; i < HalfSampleCount; i++ {
		buf[i] = 0xFFF
	}

	m.Consume(true, buf)
	m.Update(drivers.Voltage)

	if got := m.Raw(PhaseU); got != 400 {
		t.Errorf("phase U: got %d, want 400", got)
	}
}

func TestPhaseMonitorConverges(t *testing.T) {
	m := NewPhaseMonitor(MonitorConfig{VRef: 4096 * physic.MilliVolt, PhaseDivider: 11})
	buf := bufferFor(map[ADCChannel]uint16{ChanPhaseU: 600})

	for i := 0; i < 100; i++ {
		m.Consume(i%2 == 1, buf)
	}
	m.Update(drivers.Voltage)

	raw := m.Raw(PhaseU)
	if raw < 595 || raw > 600 {
		t.Errorf("phase U settled at %d, want ~600", raw)
	}
	want := physic.ElectricPotential(raw) * 11 * physic.MilliVolt
	if got := m.Phase(PhaseU); got != want {
		t.Errorf("phase U voltage: got %s, want %s", got, want)
	}
}

func TestPhaseMonitorIgnoresOtherMeasurements(t *testing.T) {
	m := NewPhaseMonitor(DefaultMonitorConfig())
	m.Consume(false, bufferFor(map[ADCChannel]uint16{ChanPhaseU: 600}))

	if err := m.Update(drivers.Temperature); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if m.Raw(PhaseU) != 0 {
		t.Error("snapshot taken for a non-voltage measurement")
	}
}

func TestPhaseMonitorAsSensor(t *testing.T) {
	var s drivers.Sensor = NewPhaseMonitor(DefaultMonitorConfig())
	if err := s.Update(drivers.AllMeasurements); err != nil {
		t.Errorf("Update failed: %v", err)
	}
}
