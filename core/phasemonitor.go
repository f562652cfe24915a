package core

import (
	"tinygo.org/x/drivers"

	"periph.io/x/conn/v3/physic"
)

// adcFullScale is the 12-bit converter range.
const adcFullScale = 1 << 12

// MonitorConfig converts filtered counts to voltages.
type MonitorConfig struct {
	VRef physic.ElectricPotential // Converter reference

	// Divider ratios of the resistor networks in front of the inputs.
	// Zero means 1.
	PhaseDivider uint32
	VBattDivider uint32
}

// DefaultMonitorConfig matches the STM32F103 board's 3.3V reference with
// the phase and battery dividers.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		VRef:         3300 * physic.MilliVolt,
		PhaseDivider: 11,
		VBattDivider: 11,
	}
}

type monitorReading struct {
	phase   [NumPhases]uint32
	vbatt   uint32
	current uint32
	rounds  uint32
}

// PhaseMonitor low-pass filters the back-EMF phase voltages, the battery
// voltage and the current sense from the acquisition callbacks. Each half
// buffer carries two samples of every phase, folded in as
// filtered = (filtered*4 + r1 + r2) / 6.
//
// Consume runs in DMA interrupt context; Update copies the filtered
// values to the main line under a critical section.
type PhaseMonitor struct {
	cfg MonitorConfig

	live     monitorReading
	snapshot monitorReading
}

var _ drivers.Sensor = (*PhaseMonitor)(nil)

// phaseSlots lists, per buffer half and phase, the two slots sampling
// that phase. Built from the slot layout.
var phaseSlots = func() (out [2][NumPhases][2]int) {
	var fill [2][NumPhases]int
	for slot, info := range SlotLayout() {
		if info.Channel > ChanPhaseW {
			continue
		}
		half := info.Round - 1
		p := Phase(info.Channel - ChanPhaseU)
		out[half][p][fill[half][p]] = slot % HalfSampleCount
		fill[half][p]++
	}
	return out
}()

// NewPhaseMonitor creates a monitor with all filters at zero.
func NewPhaseMonitor(cfg MonitorConfig) *PhaseMonitor {
	if cfg.PhaseDivider == 0 {
		cfg.PhaseDivider = 1
	}
	if cfg.VBattDivider == 0 {
		cfg.VBattDivider = 1
	}
	return &PhaseMonitor{cfg: cfg}
}

// Consume folds the completed buffer half into the filters. It has the
// ADCSampleCallback signature.
func (m *PhaseMonitor) Consume(fullTransfer bool, samples *RawBuffer) {
	half := 0
	if fullTransfer {
		half = 1
	}
	data := samples.CompletedHalf(fullTransfer)

	r := &m.live
	for p := PhaseU; p < NumPhases; p++ {
		s := phaseSlots[half][p]
		r.phase[p] = filter(r.phase[p], uint32(data[s[0]]), uint32(data[s[1]]))
	}

	// One battery and one current sample per half.
	vb := uint32(data[SlotA1VBatt1])
	cu := uint32(data[SlotA2Current1])
	r.vbatt = filter(r.vbatt, vb, vb)
	r.current = filter(r.current, cu, cu)
	r.rounds++
}

func filter(prev, r1, r2 uint32) uint32 {
	return (prev*4 + r1 + r2) / 6
}

// Update snapshots the filtered values. Only drivers.Voltage is
// supported; other measurements are ignored.
func (m *PhaseMonitor) Update(which drivers.Measurement) error {
	if which&drivers.Voltage == 0 {
		return nil
	}
	state := disableInterrupts()
	m.snapshot = m.live
	restoreInterrupts(state)
	return nil
}

// Raw returns the filtered count of a phase at the last Update.
func (m *PhaseMonitor) Raw(p Phase) uint16 {
	if p >= NumPhases {
		return 0
	}
	return uint16(m.snapshot.phase[p])
}

// Phase returns the filtered voltage of a phase at the last Update.
func (m *PhaseMonitor) Phase(p Phase) physic.ElectricPotential {
	if p >= NumPhases {
		return 0
	}
	return m.toVolts(m.snapshot.phase[p], m.cfg.PhaseDivider)
}

// BusVoltage returns the filtered battery voltage at the last Update.
func (m *PhaseMonitor) BusVoltage() physic.ElectricPotential {
	return m.toVolts(m.snapshot.vbatt, m.cfg.VBattDivider)
}

// CurrentSense returns the filtered current-shunt amplifier output at the
// last Update.
func (m *PhaseMonitor) CurrentSense() physic.ElectricPotential {
	return m.toVolts(m.snapshot.current, 1)
}

// Rounds returns the number of buffer halves consumed at the last Update.
func (m *PhaseMonitor) Rounds() uint32 {
	return m.snapshot.rounds
}

func (m *PhaseMonitor) toVolts(counts, divider uint32) physic.ElectricPotential {
	return m.cfg.VRef * physic.ElectricPotential(counts) * physic.ElectricPotential(divider) / adcFullScale
}
