package core

import "time"

// ADCUnit selects one of the two converters.
type ADCUnit uint8

const (
	ADC1 ADCUnit = iota // Master
	ADC2                // Slave, triggered in lockstep with ADC1
)

// ADCChannel is a converter input channel number.
type ADCChannel uint8

// SampleTime is the per-conversion sampling window in ADC clock cycles.
type SampleTime uint8

const (
	SampleTime1_5 SampleTime = iota
	SampleTime7_5
	SampleTime13_5
	SampleTime28_5
	SampleTime41_5
	SampleTime55_5
	SampleTime71_5
	SampleTime239_5
)

// ScanConfig is the regular-group setup of one converter.
type ScanConfig struct {
	Sequence   []ADCChannel // Conversion order
	SampleTime SampleTime   // Applied to every channel
}

// ADCDriver is the dual-converter peripheral. Both converters run
// continuous scan conversion, right aligned, software triggered, with
// DMA requests enabled; the master's data register carries both results.
type ADCDriver interface {
	// ConfigureAnalogInputs puts the channels' pins into analog-input mode.
	ConfigureAnalogInputs(channels []ADCChannel) error

	PowerOff(unit ADCUnit)

	// SetDualRegularSimultaneous links both converters so every master
	// conversion starts the matching slave conversion.
	SetDualRegularSimultaneous()

	ConfigureScan(unit ADCUnit, cfg ScanConfig) error
	PowerOn(unit ADCUnit)

	// Calibrate resets and runs self-calibration, returning once done.
	Calibrate(unit ADCUnit) error

	StartConversion(unit ADCUnit)

	// Delay busy-waits; used for the converter power-up time.
	Delay(d time.Duration)
}

// DMAFlags are the pending interrupt flags of a DMA channel.
type DMAFlags uint8

const (
	DMAHalfTransfer DMAFlags = 1 << iota
	DMATransferComplete
	DMATransferError
)

// DMAChannel is the DMA channel moving conversion results to memory.
type DMAChannel interface {
	// ConfigureCircular sets up a peripheral-to-memory transfer of 32-bit
	// words into buf, wrapping forever, at very high priority, with the
	// half, complete and error interrupts enabled. Each word holds the
	// master result in its low half and the slave result in its high half.
	ConfigureCircular(buf []uint16) error

	Enable()
	Disable()

	Flags() DMAFlags
	ClearFlags(f DMAFlags)
}
