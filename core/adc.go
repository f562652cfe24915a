// Dual-ADC acquisition of phase voltages, battery voltage and current.
// Two converters in regular simultaneous mode scan eight channels each;
// a circular DMA transfer packs both results into one 16-sample buffer
// and raises an interrupt at each half.

package core

import (
	"sync/atomic"
	"time"
)

const (
	// RawSampleCount is the size of the DMA buffer in samples.
	RawSampleCount = 16

	// HalfSampleCount is the number of samples in one half of the buffer,
	// one interleaved round of both converters.
	HalfSampleCount = RawSampleCount / 2

	channelsPerADC = RawSampleCount / 2
)

// Converter input channels on the STM32F103 board (all on GPIOA).
const (
	ChanPhaseU  ADCChannel = 0
	ChanPhaseV  ADCChannel = 1
	ChanPhaseW  ADCChannel = 2
	ChanVBatt   ADCChannel = 3
	ChanCurrent ADCChannel = 4
)

// analogInputs are the pins switched to analog mode before conversion.
var analogInputs = []ADCChannel{ChanPhaseU, ChanPhaseV, ChanPhaseW, ChanVBatt, ChanCurrent}

// Scan order of each converter. Changing it changes the meaning of every
// buffer slot below.
var (
	adc1Sequence = [channelsPerADC]ADCChannel{
		ChanPhaseU, ChanPhaseV, ChanPhaseW, ChanVBatt,
		ChanPhaseV, ChanPhaseW, ChanPhaseU, ChanVBatt,
	}
	adc2Sequence = [channelsPerADC]ADCChannel{
		ChanPhaseV, ChanPhaseW, ChanPhaseU, ChanCurrent,
		ChanPhaseU, ChanPhaseV, ChanPhaseW, ChanCurrent,
	}
)

// Raw buffer slots in DMA write order. Even slots come from ADC1, odd
// slots from ADC2; the trailing digit is the round (buffer half).
const (
	SlotA1PhaseU1  = 0
	SlotA2PhaseV1  = 1
	SlotA1PhaseV1  = 2
	SlotA2PhaseW1  = 3
	SlotA1PhaseW1  = 4
	SlotA2PhaseU1  = 5
	SlotA1VBatt1   = 6
	SlotA2Current1 = 7

	SlotA1PhaseV2  = 8
	SlotA2PhaseU2  = 9
	SlotA1PhaseW2  = 10
	SlotA2PhaseV2  = 11
	SlotA1PhaseU2  = 12
	SlotA2PhaseW2  = 13
	SlotA1VBatt2   = 14
	SlotA2Current2 = 15
)

// SlotInfo describes where a buffer slot's sample comes from.
type SlotInfo struct {
	Unit    ADCUnit
	Channel ADCChannel
	Round   int // 1 for the first half, 2 for the second
}

// SlotLayout returns the source of every slot, derived from the scan
// sequences and the DMA word packing.
func SlotLayout() [RawSampleCount]SlotInfo {
	var out [RawSampleCount]SlotInfo
	for i := 0; i < channelsPerADC; i++ {
		round := i/(channelsPerADC/2) + 1
		out[2*i] = SlotInfo{Unit: ADC1, Channel: adc1Sequence[i], Round: round}
		out[2*i+1] = SlotInfo{Unit: ADC2, Channel: adc2Sequence[i], Round: round}
	}
	return out
}

// RawBuffer is the DMA destination.
type RawBuffer [RawSampleCount]uint16

// CompletedHalf returns the half of the buffer the DMA finished with
// when the callback fired. The other half is being written.
func (b *RawBuffer) CompletedHalf(fullTransfer bool) []uint16 {
	if fullTransfer {
		return b[HalfSampleCount:]
	}
	return b[:HalfSampleCount]
}

// ADCSampleCallback receives the shared DMA buffer from interrupt
// context. Only the half reported by CompletedHalf may be read, and only
// until the callback returns; the buffer must not be written.
type ADCSampleCallback func(fullTransfer bool, samples *RawBuffer)

// AcquisitionConfig holds the acquisition timing constants.
type AcquisitionConfig struct {
	SampleTime   SampleTime
	PowerOnDelay time.Duration

	// RestartAfterErrors restarts the DMA channel after this many
	// consecutive transfer errors. Zero keeps the circular transfer
	// running untouched.
	RestartAfterErrors uint32
}

// DefaultAcquisitionConfig returns the timing of the STM32F103 board.
func DefaultAcquisitionConfig() AcquisitionConfig {
	return AcquisitionConfig{
		SampleTime:   SampleTime7_5,
		PowerOnDelay: 10 * time.Millisecond,
	}
}

// AcquisitionPipeline runs the converters and dispatches the DMA
// interrupts to the consumer callbacks.
type AcquisitionPipeline struct {
	adc ADCDriver
	dma DMAChannel
	ind Indicator
	cfg AcquisitionConfig

	buf        RawBuffer
	onHalf     ADCSampleCallback
	onComplete ADCSampleCallback

	transferErrors atomic.Uint32
	consecutive    uint32 // Only touched by the dispatch loop

	// pending collects flags raised while a dispatch is in progress so
	// the callbacks never run nested.
	pending     atomic.Uint32
	dispatching atomic.Bool
}

// NewAcquisitionPipeline creates a pipeline on the given peripherals.
// ind may be nil.
func NewAcquisitionPipeline(adc ADCDriver, dma DMAChannel, ind Indicator) *AcquisitionPipeline {
	if ind == nil {
		ind = NopIndicator{}
	}
	return &AcquisitionPipeline{adc: adc, dma: dma, ind: ind}
}

// Init configures both converters and the DMA channel, calibrates, and
// starts continuous conversion. Either callback may be nil.
func (a *AcquisitionPipeline) Init(cfg AcquisitionConfig, onHalf, onComplete ADCSampleCallback) error {
	a.cfg = cfg
	a.onHalf = onHalf
	a.onComplete = onComplete
	a.transferErrors.Store(0)
	a.consecutive = 0
	a.pending.Store(0)

	if err := a.adc.ConfigureAnalogInputs(analogInputs); err != nil {
		return err
	}

	if err := a.dma.ConfigureCircular(a.buf[:]); err != nil {
		return err
	}
	a.dma.Enable()

	a.adc.PowerOff(ADC1)
	a.adc.PowerOff(ADC2)
	a.adc.SetDualRegularSimultaneous()

	if err := a.configureUnit(ADC1, adc1Sequence[:]); err != nil {
		return err
	}
	if err := a.configureUnit(ADC2, adc2Sequence[:]); err != nil {
		return err
	}

	// The slave follows the master in dual mode.
	a.adc.StartConversion(ADC1)
	return nil
}

func (a *AcquisitionPipeline) configureUnit(unit ADCUnit, seq []ADCChannel) error {
	if err := a.adc.ConfigureScan(unit, ScanConfig{
		Sequence:   seq,
		SampleTime: a.cfg.SampleTime,
	}); err != nil {
		return err
	}

	a.adc.PowerOn(unit)
	a.adc.Delay(a.cfg.PowerOnDelay)

	if err := a.adc.Calibrate(unit); err != nil {
		return ErrCalibration
	}
	return nil
}

// Buffer returns the DMA destination buffer.
func (a *AcquisitionPipeline) Buffer() *RawBuffer {
	return &a.buf
}

// TransferErrors returns the number of DMA transfer errors since Init.
func (a *AcquisitionPipeline) TransferErrors() uint32 {
	return a.transferErrors.Load()
}

// Err returns ErrTransferError once any transfer error was seen. The
// acquisition keeps running regardless.
func (a *AcquisitionPipeline) Err() error {
	if a.transferErrors.Load() != 0 {
		return ErrTransferError
	}
	return nil
}

// HandleInterrupt is the DMA channel interrupt handler. If it preempts
// itself the inner invocation only queues its flags; the outer one
// dispatches them once the running callback returns.
func (a *AcquisitionPipeline) HandleInterrupt() {
	f := a.dma.Flags()
	a.dma.ClearFlags(f)
	a.queue(f)

	for {
		if !a.dispatching.CompareAndSwap(false, true) {
			return
		}
		for {
			f := DMAFlags(a.pending.Swap(0))
			if f == 0 {
				break
			}
			a.dispatch(f)
		}
		a.dispatching.Store(false)

		// Flags queued between the last Swap and the Store above would
		// otherwise wait for the next interrupt.
		if a.pending.Load() == 0 {
			return
		}
	}
}

func (a *AcquisitionPipeline) queue(f DMAFlags) {
	for {
		old := a.pending.Load()
		if a.pending.CompareAndSwap(old, old|uint32(f)) {
			return
		}
	}
}

func (a *AcquisitionPipeline) dispatch(f DMAFlags) {
	if f&DMAHalfTransfer != 0 {
		a.consecutive = 0
		a.ind.On(LEDRed)
		RecordEvent(EvtDMAHalf, 0, 0, 0)
		if a.onHalf != nil {
			a.onHalf(false, &a.buf)
		}
	}

	if f&DMATransferComplete != 0 {
		a.consecutive = 0
		a.ind.Off(LEDRed)
		RecordEvent(EvtDMAComplete, 0, 0, 0)
		if a.onComplete != nil {
			a.onComplete(true, &a.buf)
		}
	}

	if f&DMATransferError != 0 {
		n := a.transferErrors.Add(1)
		a.consecutive++
		a.ind.Toggle(LEDGreen)
		RecordEvent(EvtDMAError, 0, n, a.consecutive)

		if a.cfg.RestartAfterErrors != 0 && a.consecutive >= a.cfg.RestartAfterErrors {
			a.dma.Disable()
			a.dma.Enable()
			RecordEvent(EvtDMARestart, 0, n, a.consecutive)
			a.consecutive = 0
		}
	}
}
