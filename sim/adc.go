package sim

import (
	"errors"
	"fmt"
	"time"

	"bldc/core"
)

// AnalogSource returns the 12-bit conversion result of a channel.
type AnalogSource func(ch core.ADCChannel) uint16

type adcUnit struct {
	powered    bool
	calibrated bool
	scan       core.ScanConfig
}

// ADC simulates the dual-converter peripheral. Each conversion round
// converts one channel on both units and hands the packed pair to the
// DMA channel.
type ADC struct {
	dma    *DMA
	source AnalogSource

	units   [2]adcUnit
	dual    bool
	running bool
	index   int
	analog  []core.ADCChannel

	delayed     time.Duration
	conversions int
}

// NewADC creates a converter pair feeding dma. source may be nil, in
// which case every channel reads zero.
func NewADC(dma *DMA, source AnalogSource) *ADC {
	if source == nil {
		source = func(core.ADCChannel) uint16 { return 0 }
	}
	return &ADC{dma: dma, source: source}
}

func (a *ADC) ConfigureAnalogInputs(channels []core.ADCChannel) error {
	for _, ch := range channels {
		if ch > 17 {
			return fmt.Errorf("sim: no analog input for channel %d", ch)
		}
	}
	a.analog = append(a.analog[:0], channels...)
	return nil
}

func (a *ADC) PowerOff(unit core.ADCUnit) {
	a.units[unit].powered = false
	a.units[unit].calibrated = false
	if unit == core.ADC1 {
		a.running = false
	}
}

func (a *ADC) SetDualRegularSimultaneous() { a.dual = true }

func (a *ADC) ConfigureScan(unit core.ADCUnit, cfg core.ScanConfig) error {
	if a.units[unit].powered {
		return fmt.Errorf("sim: %s configured while powered", unitName(unit))
	}
	if len(cfg.Sequence) == 0 || len(cfg.Sequence) > 16 {
		return fmt.Errorf("sim: %s scan length %d", unitName(unit), len(cfg.Sequence))
	}
	a.units[unit].scan = core.ScanConfig{
		Sequence:   append([]core.ADCChannel(nil), cfg.Sequence...),
		SampleTime: cfg.SampleTime,
	}
	return nil
}

func (a *ADC) PowerOn(unit core.ADCUnit) { a.units[unit].powered = true }

func (a *ADC) Calibrate(unit core.ADCUnit) error {
	if !a.units[unit].powered {
		return fmt.Errorf("sim: %s calibrated while powered off", unitName(unit))
	}
	a.units[unit].calibrated = true
	return nil
}

func (a *ADC) StartConversion(unit core.ADCUnit) {
	if unit != core.ADC1 || !a.units[unit].powered {
		return
	}
	a.running = true
	a.index = 0
}

// Delay only accounts the time; the simulation clock is not advanced.
func (a *ADC) Delay(d time.Duration) { a.delayed += d }

// Running reports whether continuous conversion is active.
func (a *ADC) Running() bool { return a.running }

// Delayed returns the total busy-wait time requested.
func (a *ADC) Delayed() time.Duration { return a.delayed }

// Conversions returns the number of conversion rounds performed.
func (a *ADC) Conversions() int { return a.conversions }

// Convert performs n conversion rounds. Both units must be powered and
// calibrated, in dual mode, with scans of equal length.
func (a *ADC) Convert(n int) error {
	if !a.running {
		return nil
	}
	u1, u2 := &a.units[core.ADC1], &a.units[core.ADC2]
	if !a.dual || !u2.powered {
		return errors.New("sim: slave converter not linked")
	}
	if !u1.calibrated || !u2.calibrated {
		return errors.New("sim: converter not calibrated")
	}
	if len(u1.scan.Sequence) != len(u2.scan.Sequence) {
		return errors.New("sim: scan lengths differ")
	}

	for i := 0; i < n; i++ {
		master := a.source(u1.scan.Sequence[a.index]) & 0xFFF
		slave := a.source(u2.scan.Sequence[a.index]) & 0xFFF
		a.index = (a.index + 1) % len(u1.scan.Sequence)
		a.conversions++
		a.dma.request(uint32(slave)<<16 | uint32(master))
	}
	return nil
}

func unitName(u core.ADCUnit) string {
	return fmt.Sprintf("ADC%d", int(u)+1)
}

// DMA simulates the circular peripheral-to-memory channel. Each request
// stores one 32-bit word as two consecutive samples.
type DMA struct {
	irq *Controller

	buf     []uint16
	enabled bool
	words   int
	pos     int
	flags   core.DMAFlags
}

// NewDMA creates a channel delivering on irq.
func NewDMA(irq *Controller) *DMA {
	return &DMA{irq: irq}
}

func (d *DMA) ConfigureCircular(buf []uint16) error {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return fmt.Errorf("sim: circular buffer of %d samples", len(buf))
	}
	d.buf = buf
	d.words = len(buf) / 2
	d.pos = 0
	d.flags = 0
	return nil
}

// Enable restarts the transfer at the start of the buffer.
func (d *DMA) Enable() {
	d.enabled = true
	d.pos = 0
}

func (d *DMA) Disable() { d.enabled = false }

func (d *DMA) Flags() core.DMAFlags { return d.flags }

func (d *DMA) ClearFlags(f core.DMAFlags) { d.flags &^= f }

// Enabled reports whether the channel is transferring.
func (d *DMA) Enabled() bool { return d.enabled }

// InjectError latches a transfer error and raises the channel interrupt.
func (d *DMA) InjectError() {
	d.flags |= core.DMATransferError
	d.irq.Raise(IRQDMA)
}

func (d *DMA) request(word uint32) {
	if !d.enabled || d.buf == nil {
		return
	}
	d.buf[2*d.pos] = uint16(word)
	d.buf[2*d.pos+1] = uint16(word >> 16)
	d.pos++

	switch d.pos {
	case d.words / 2:
		d.flags |= core.DMAHalfTransfer
		d.irq.Raise(IRQDMA)
	case d.words:
		d.pos = 0
		d.flags |= core.DMATransferComplete
		d.irq.Raise(IRQDMA)
	}
}
