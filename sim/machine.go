package sim

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"

	"bldc/config"
	"bldc/core"
)

// adcPrescaler divides the core clock down to the converter clock.
const adcPrescaler = 6

// sampleHalfCycles is the sampling window of each core.SampleTime in
// half converter cycles.
var sampleHalfCycles = [...]uint64{3, 15, 27, 57, 83, 111, 143, 479}

// LEDPin is a fake output pin counting level changes.
type LEDPin struct {
	gpiotest.Pin
	edges int
}

func (p *LEDPin) Out(l gpio.Level) error {
	p.Lock()
	if p.L != l {
		p.edges++
	}
	p.Unlock()
	return p.Pin.Out(l)
}

// Edges returns the number of level changes driven on the pin.
func (p *LEDPin) Edges() int {
	p.Lock()
	defer p.Unlock()
	return p.edges
}

// Machine is a simulated board running the controller core.
type Machine struct {
	cfg *config.Config

	IRQ    *Controller
	Bridge *Bridge
	Timer  *CompareTimer
	ADC    *ADC
	DMA    *DMA
	Tick   *SysTick
	Green  *LEDPin
	Red    *LEDPin

	Indicator   *core.PinIndicator
	Engine      *core.CommutationEngine
	HWTimers    *core.HardwareTimerScheduler
	SoftTimers  *core.SoftTimerScheduler
	Acquisition *core.AcquisitionPipeline
	Monitor     *core.PhaseMonitor

	coreHz     uint64
	timerDiv   uint64 // Core cycles per compare-timer tick
	convCycles uint64 // Core cycles per conversion round
	convAcc    uint64
	residual   uint64 // Core cycles owed from the previous Run
	fraction   uint64 // Sub-cycle remainder, in core cycles times 1e9
	cycles     uint64 // Core cycles since Init
}

// New builds a machine for cfg. Nothing is initialized until Init.
func New(cfg *config.Config) *Machine {
	m := &Machine{cfg: cfg}

	m.IRQ = NewController()
	m.Bridge = NewBridge(m.IRQ)
	m.Timer = NewCompareTimer(m.IRQ)
	m.DMA = NewDMA(m.IRQ)
	m.ADC = NewADC(m.DMA, m.analog)
	m.Tick = NewSysTick(m.IRQ)
	m.Green = &LEDPin{Pin: gpiotest.Pin{N: "PB4", Num: 20}}
	m.Red = &LEDPin{Pin: gpiotest.Pin{N: "PB5", Num: 21}}

	m.Indicator = core.NewPinIndicator(m.Green, m.Red, true)
	m.Engine = core.NewCommutationEngine(m.Bridge, m.Indicator)
	m.HWTimers = core.NewHardwareTimerScheduler(m.Timer)
	m.SoftTimers = core.NewSoftTimerScheduler()
	m.Acquisition = core.NewAcquisitionPipeline(m.ADC, m.DMA, m.Indicator)
	m.Monitor = core.NewPhaseMonitor(cfg.MonitorConfig())

	m.IRQ.Attach(IRQCommutation, m.Engine.HandleCommutation)
	m.IRQ.Attach(IRQCompare, m.HWTimers.HandleInterrupt)
	m.IRQ.Attach(IRQDMA, m.Acquisition.HandleInterrupt)
	m.IRQ.Attach(IRQSysTick, m.SoftTimers.Tick)
	return m
}

// Config returns the machine configuration.
func (m *Machine) Config() *config.Config { return m.cfg }

// Init brings up the bridge and both timer schedulers. Acquisition is
// started separately by StartAcquisition.
func (m *Machine) Init() error {
	coreClock := m.cfg.CoreClock()
	m.coreHz = uint64(coreClock / physic.Hertz)
	m.cycles = 0
	m.residual = 0
	m.fraction = 0
	m.convAcc = 0
	core.SetEventClock(m.Micros)

	if err := m.Engine.Init(m.cfg.CommutationConfig()); err != nil {
		return fmt.Errorf("init commutation: %w", err)
	}
	if err := m.HWTimers.Init(coreClock, physic.Frequency(m.cfg.HWTimer.Frequency)); err != nil {
		return fmt.Errorf("init hardware timer: %w", err)
	}
	if err := m.SoftTimers.Start(m.Tick, coreClock, physic.Frequency(m.cfg.SysTick.Rate)); err != nil {
		return fmt.Errorf("start sys tick: %w", err)
	}

	m.timerDiv = uint64(m.Timer.Prescaler()) + 1
	st := m.cfg.ADC.SampleTime
	if int(st) >= len(sampleHalfCycles) {
		return fmt.Errorf("init: sample time %d", st)
	}
	m.convCycles = adcPrescaler * (sampleHalfCycles[st] + 25) / 2
	return nil
}

// StartAcquisition starts the converters with the phase monitor
// consuming both buffer halves.
func (m *Machine) StartAcquisition() error {
	if err := m.Acquisition.Init(m.cfg.AcquisitionConfig(), m.Monitor.Consume, m.Monitor.Consume); err != nil {
		return fmt.Errorf("init acquisition: %w", err)
	}
	return nil
}

// Run advances the simulation clock by d, one compare-timer tick at a
// time. Cycles short of a whole tick carry over to the next call.
func (m *Machine) Run(d time.Duration) error {
	if m.timerDiv == 0 {
		return fmt.Errorf("run: machine not initialized")
	}
	num := m.fraction + uint64(d.Nanoseconds())*m.coreHz
	m.fraction = num % uint64(time.Second)
	total := m.residual + num/uint64(time.Second)
	for total >= m.timerDiv {
		total -= m.timerDiv
		if err := m.step(); err != nil {
			return err
		}
	}
	m.residual = total
	return nil
}

func (m *Machine) step() error {
	m.cycles += m.timerDiv
	m.Timer.Advance(1)

	m.convAcc += m.timerDiv
	n := m.convAcc / m.convCycles
	m.convAcc %= m.convCycles
	if err := m.ADC.Convert(int(n)); err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	m.Tick.Advance(m.timerDiv)
	return nil
}

// Now returns the simulated time since Init.
func (m *Machine) Now() time.Duration {
	if m.coreHz == 0 {
		return 0
	}
	return time.Duration(m.cycles * uint64(time.Second) / m.coreHz)
}

// Micros returns the simulated time since Init in microseconds,
// wrapping at 32 bits.
func (m *Machine) Micros() uint32 {
	return uint32(m.Now() / time.Microsecond)
}

// HWTicks converts a duration to compare-timer ticks.
func (m *Machine) HWTicks(d time.Duration) uint64 {
	f := uint64(physic.Frequency(m.cfg.HWTimer.Frequency) / physic.Hertz)
	return uint64(d.Nanoseconds()) * f / uint64(time.Second)
}

// analog models the converter inputs from the applied bridge state. A
// driven leg sits at its high-side share of the battery, a floating leg
// at half the battery.
func (m *Machine) analog(ch core.ADCChannel) uint16 {
	battery := physic.ElectricPotential(m.cfg.Sim.Battery)
	switch ch {
	case core.ChanPhaseU, core.ChanPhaseV, core.ChanPhaseW:
		p := core.Phase(ch - core.ChanPhaseU)
		share, floating := m.Bridge.HighSideFraction(p)
		v := battery / 2
		if !floating {
			v = battery * physic.ElectricPotential(share) >> 16
		}
		return m.counts(v, m.cfg.ADC.PhaseDivider)
	case core.ChanVBatt:
		return m.counts(battery, m.cfg.ADC.VBattDivider)
	case core.ChanCurrent:
		return m.counts(physic.ElectricPotential(m.cfg.Sim.CurrentSense), 1)
	}
	return 0
}

// counts converts an input voltage ahead of a divider to a 12-bit result.
func (m *Machine) counts(v physic.ElectricPotential, divider uint32) uint16 {
	if divider == 0 {
		divider = 1
	}
	vref := int64(m.cfg.ADC.VRef)
	c := int64(v) * 4096 / (vref * int64(divider))
	return uint16(max(0, min(c, 4095)))
}
