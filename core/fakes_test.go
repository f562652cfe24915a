package core

import (
	"fmt"
	"time"
)

// fakeBridge models the bridge timer: mode and enable writes are
// preloaded and copied to the applied state by GenerateCommutation, which
// then raises the commutation interrupt. A request made from inside the
// handler is queued and serviced after it returns, like a tail-chained
// interrupt.
type fakeBridge struct {
	cfg        BridgeConfig
	configured int

	preload  BridgeState
	applied  BridgeState
	applyLog []BridgeState
	compare  [NumPhases]uint16

	irqEnabled bool
	flag       bool
	events     int

	handler   func()
	inHandler bool
	pending   int
}

func (b *fakeBridge) Configure(cfg BridgeConfig) error {
	b.cfg = cfg
	b.configured++
	for p := range b.compare {
		b.compare[p] = cfg.Center
	}
	b.irqEnabled = false
	return nil
}

func (b *fakeBridge) SetMode(p Phase, m OutputMode) { b.preload[p].Mode = m }

func (b *fakeBridge) SetOutputs(p Phase, high, low bool) {
	b.preload[p].High = high
	b.preload[p].Low = low
}

func (b *fakeBridge) SetCompare(p Phase, v uint16) { b.compare[p] = v }

func (b *fakeBridge) GenerateCommutation() {
	b.events++
	b.applied = b.preload
	b.applyLog = append(b.applyLog, b.applied)
	b.flag = true
	b.raise()
}

func (b *fakeBridge) raise() {
	if !b.irqEnabled || b.handler == nil {
		return
	}
	if b.inHandler {
		b.pending++
		return
	}
	b.inHandler = true
	b.handler()
	for b.pending > 0 {
		b.pending--
		b.handler()
	}
	b.inHandler = false
}

func (b *fakeBridge) EnableCommutationIRQ() { b.irqEnabled = true }
func (b *fakeBridge) ClearCommutationFlag() { b.flag = false }

// fakeCompareTimer is a 16-bit counter advanced by the test.
type fakeCompareTimer struct {
	prescaler  uint16
	configured int
	counter    uint16
	compare    [HardwareTimerSlots]uint16
	irq        [HardwareTimerSlots]bool
	flag       [HardwareTimerSlots]bool
}

func (f *fakeCompareTimer) Configure(prescaler uint16) error {
	f.prescaler = prescaler
	f.configured++
	f.irq = [HardwareTimerSlots]bool{}
	f.flag = [HardwareTimerSlots]bool{}
	return nil
}

func (f *fakeCompareTimer) Counter() uint16 { return f.counter }
func (f *fakeCompareTimer) SetCompare(ch int, v uint16) { f.compare[ch] = v }
func (f *fakeCompareTimer) EnableCompareIRQ(ch int) { f.irq[ch] = true }
func (f *fakeCompareTimer) DisableCompareIRQ(ch int) { f.irq[ch] = false }
func (f *fakeCompareTimer) CompareIRQEnabled(ch int) bool { return f.irq[ch] }
func (f *fakeCompareTimer) CompareFlag(ch int) bool { return f.flag[ch] }
func (f *fakeCompareTimer) ClearCompareFlag(ch int) { f.flag[ch] = false }

// advance steps the counter one tick at a time, raising match flags and
// running the shared interrupt handler when an enabled channel matches.
func (f *fakeCompareTimer) advance(s *HardwareTimerScheduler, ticks int) {
	for i := 0; i < ticks; i++ {
		f.counter++
		pending := false
		for ch := range f.compare {
			if f.counter == f.compare[ch] {
				f.flag[ch] = true
				pending = pending || f.irq[ch]
			}
		}
		if pending {
			s.HandleInterrupt()
		}
	}
}

// fakeADC logs every driver call in order.
type fakeADC struct {
	calls        []string
	analog       []ADCChannel
	scans        [2]ScanConfig
	calibrateErr error
}

func unitName(u ADCUnit) string {
	return fmt.Sprintf("ADC%d", int(u)+1)
}

func (a *fakeADC) ConfigureAnalogInputs(ch []ADCChannel) error {
	a.analog = append([]ADCChannel(nil), ch...)
	a.calls = append(a.calls, "analog")
	return nil
}

func (a *fakeADC) PowerOff(u ADCUnit) { a.calls = append(a.calls, "off "+unitName(u)) }

func (a *fakeADC) SetDualRegularSimultaneous() { a.calls = append(a.calls, "dual") }

func (a *fakeADC) ConfigureScan(u ADCUnit, cfg ScanConfig) error {
	a.scans[u] = ScanConfig{
		Sequence:   append([]ADCChannel(nil), cfg.Sequence...),
		SampleTime: cfg.SampleTime,
	}
	a.calls = append(a.calls, "scan "+unitName(u))
	return nil
}

func (a *fakeADC) PowerOn(u ADCUnit) { a.calls = append(a.calls, "on "+unitName(u)) }

func (a *fakeADC) Calibrate(u ADCUnit) error {
	a.calls = append(a.calls, "calibrate "+unitName(u))
	return a.calibrateErr
}

func (a *fakeADC) StartConversion(u ADCUnit) { a.calls = append(a.calls, "start "+unitName(u)) }

func (a *fakeADC) Delay(d time.Duration) { a.calls = append(a.calls, "delay "+d.String()) }

// fakeDMA holds the pending flags raised by the test.
type fakeDMA struct {
	buf       []uint16
	enabled   bool
	enables   int
	disables  int
	flags     DMAFlags
	configErr error
}

func (d *fakeDMA) ConfigureCircular(buf []uint16) error {
	d.buf = buf
	return d.configErr
}

func (d *fakeDMA) Enable() {
	d.enabled = true
	d.enables++
}

func (d *fakeDMA) Disable() {
	d.enabled = false
	d.disables++
}

func (d *fakeDMA) Flags() DMAFlags { return d.flags }
func (d *fakeDMA) ClearFlags(f DMAFlags) { d.flags &^= f }

// raise sets flags and runs the channel interrupt handler.
func (d *fakeDMA) raise(p *AcquisitionPipeline, f DMAFlags) {
	d.flags |= f
	p.HandleInterrupt()
}

// fakeIndicator logs indicator calls.
type fakeIndicator struct {
	log []string
	lit [numLEDs]bool
}

func ledName(l LED) string {
	if l == LEDGreen {
		return "green"
	}
	return "red"
}

func (i *fakeIndicator) On(l LED) {
	i.lit[l] = true
	i.log = append(i.log, "on "+ledName(l))
}

func (i *fakeIndicator) Off(l LED) {
	i.lit[l] = false
	i.log = append(i.log, "off "+ledName(l))
}

func (i *fakeIndicator) Toggle(l LED) {
	i.lit[l] = !i.lit[l]
	i.log = append(i.log, "toggle "+ledName(l))
}

func (i *fakeIndicator) count(entry string) int {
	n := 0
	for _, e := range i.log {
		if e == entry {
			n++
		}
	}
	return n
}

// fakeTickSource records the programmed reload value.
type fakeTickSource struct {
	reload  uint32
	started bool
}

func (f *fakeTickSource) Start(reload uint32) error {
	f.reload = reload
	f.started = true
	return nil
}
