//go:build stm32f103

package main

import (
	"errors"
	"machine"
	"runtime/volatile"
	"time"
	"unsafe"

	"tinygo.org/x/drivers/delay"

	"bldc/core"
)

var errCalibrationTimeout = errors.New("adc calibration timeout")

// calibrationSpins bounds the busy-wait on the calibration bits.
const calibrationSpins = 100000

// dualADC drives ADC1 and ADC2 in regular simultaneous mode. Analog
// inputs 0..7 are PA0..PA7.
type dualADC struct{}

func unitRegs(u core.ADCUnit) *adcRegs {
	if u == core.ADC2 {
		return adc2
	}
	return adc1
}

func (dualADC) ConfigureAnalogInputs(channels []core.ADCChannel) error {
	for _, ch := range channels {
		if ch > 7 {
			return errors.New("adc channel not on port A")
		}
		pin := machine.PA0 + machine.Pin(ch)
		pin.Configure(machine.PinConfig{Mode: machine.PinInputAnalog})
	}
	return nil
}

func (dualADC) PowerOff(u core.ADCUnit) {
	unitRegs(u).CR2.ClearBits(adcCR2_ADON)
}

func (dualADC) SetDualRegularSimultaneous() {
	adc1.CR1.ReplaceBits(adcDualRegularSim, adcCR1_DUALMOD, 0)
}

func (dualADC) ConfigureScan(u core.ADCUnit, cfg core.ScanConfig) error {
	n := len(cfg.Sequence)
	if n == 0 || n > 16 {
		return errors.New("adc scan length out of range")
	}
	r := unitRegs(u)

	r.CR1.SetBits(adcCR1_SCAN)
	r.CR2.ClearBits(adcCR2_ALIGN)
	r.CR2.SetBits(adcCR2_CONT | adcCR2_DMA | adcCR2_EXTSEL | adcCR2_EXTTRIG)

	var smpr2 uint32
	for ch := 0; ch < 10; ch++ {
		smpr2 |= uint32(cfg.SampleTime) << (3 * ch)
	}
	r.SMPR2.Set(smpr2)

	var sq [3]uint32 // SQR3, SQR2, SQR1
	for i, ch := range cfg.Sequence {
		sq[i/6] |= uint32(ch&0x1F) << (5 * (i % 6))
	}
	r.SQR3.Set(sq[0])
	r.SQR2.Set(sq[1])
	r.SQR1.Set(sq[2] | uint32(n-1)<<20)
	return nil
}

func (dualADC) PowerOn(u core.ADCUnit) {
	unitRegs(u).CR2.SetBits(adcCR2_ADON)
}

func (dualADC) Calibrate(u core.ADCUnit) error {
	r := unitRegs(u)
	r.CR2.SetBits(adcCR2_RSTCAL)
	if !waitClear(&r.CR2, adcCR2_RSTCAL) {
		return errCalibrationTimeout
	}
	r.CR2.SetBits(adcCR2_CAL)
	if !waitClear(&r.CR2, adcCR2_CAL) {
		return errCalibrationTimeout
	}
	return nil
}

func waitClear(reg *volatile.Register32, bit uint32) bool {
	for i := 0; i < calibrationSpins; i++ {
		if !reg.HasBits(bit) {
			return true
		}
	}
	return false
}

func (dualADC) StartConversion(u core.ADCUnit) {
	unitRegs(u).CR2.SetBits(adcCR2_SWSTART)
}

func (dualADC) Delay(d time.Duration) {
	delay.Sleep(d)
}

// dmaADC is DMA1 channel 1, the ADC1 request line.
type dmaADC struct{}

func (dmaADC) ConfigureCircular(buf []uint16) error {
	if len(buf) == 0 || len(buf)%2 != 0 {
		return errors.New("dma buffer must hold whole words")
	}
	addr := uintptr(unsafe.Pointer(&buf[0]))
	if addr%4 != 0 {
		return errors.New("dma buffer not word aligned")
	}

	ch := &dma1.CH[0]
	ch.CCR.Set(0)
	dma1.IFCR.Set(dmaIFCR_ALL1)
	ch.CPAR.Set(uint32(uintptr(unsafe.Pointer(&adc1.DR))))
	ch.CMAR.Set(uint32(addr))
	ch.CNDTR.Set(uint32(len(buf) / 2))
	ch.CCR.Set(dmaCCR_PL | dmaCCR_MSIZE | dmaCCR_PSIZE | dmaCCR_MINC | dmaCCR_CIRC |
		dmaCCR_TEIE | dmaCCR_HTIE | dmaCCR_TCIE)
	return nil
}

func (dmaADC) Enable()  { dma1.CH[0].CCR.SetBits(dmaCCR_EN) }
func (dmaADC) Disable() { dma1.CH[0].CCR.ClearBits(dmaCCR_EN) }

func (dmaADC) Flags() core.DMAFlags {
	isr := dma1.ISR.Get()
	var f core.DMAFlags
	if isr&dmaISR_HTIF1 != 0 {
		f |= core.DMAHalfTransfer
	}
	if isr&dmaISR_TCIF1 != 0 {
		f |= core.DMATransferComplete
	}
	if isr&dmaISR_TEIF1 != 0 {
		f |= core.DMATransferError
	}
	return f
}

func (dmaADC) ClearFlags(f core.DMAFlags) {
	var bits uint32
	if f&core.DMAHalfTransfer != 0 {
		bits |= dmaISR_HTIF1
	}
	if f&core.DMATransferComplete != 0 {
		bits |= dmaISR_TCIF1
	}
	if f&core.DMATransferError != 0 {
		bits |= dmaISR_TEIF1
	}
	dma1.IFCR.Set(bits)
}

var (
	_ core.ADCDriver  = dualADC{}
	_ core.DMAChannel = dmaADC{}
)
