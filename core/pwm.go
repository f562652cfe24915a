// Package core is the interrupt-driven control core of a brushless DC
// motor controller: six-step commutation, dual-ADC acquisition and the
// hardware and soft timer schedulers. Peripherals are reached through
// the HAL interfaces a target implements.
package core

const (
	// DefaultPWMPeriod gives ~15.6kHz center-aligned PWM at 64MHz; the
	// motor sees twice that with the two-leg switching scheme.
	DefaultPWMPeriod = 0x7FF

	// DefaultDutyShift scales the signed 16-bit duty to the compare range.
	DefaultDutyShift = 5

	// MaxDutyShift leaves at least the sign of a 16-bit duty.
	MaxDutyShift = 15
)

// PWMConfig holds the tunable constants of the commutation engine.
type PWMConfig struct {
	Period    uint16 // Timer auto-reload value
	DeadTime  uint8  // Raw dead-time generator setting
	DutyShift uint8  // Duty is divided by 1<<DutyShift before use
}

// DefaultPWMConfig returns the configuration of the STM32F103 board:
// 0x7FF period, no dead time, duty/32.
func DefaultPWMConfig() PWMConfig {
	return PWMConfig{
		Period:    DefaultPWMPeriod,
		DeadTime:  0,
		DutyShift: DefaultDutyShift,
	}
}

// CommutationState is the state of the six-step sequence.
type CommutationState struct {
	Running bool  // Sequence armed; the commutation interrupt advances it
	Idle    bool  // Bridge floating; the next event applies the next step
	Step    int   // 0..5
	Duty    int16 // Requested signed duty
}

// CommutationEngine owns the bridge timer and the commutation state.
// All state changes happen in HandleCommutation or inside critical
// sections of the main-line entry points.
type CommutationEngine struct {
	hw  BridgeTimer
	ind Indicator
	cfg PWMConfig

	center    uint16
	state     CommutationState
	preloaded BridgeState
	compare   [NumPhases]uint16
}

// NewCommutationEngine creates an engine for the given bridge timer.
// ind may be nil.
func NewCommutationEngine(hw BridgeTimer, ind Indicator) *CommutationEngine {
	if ind == nil {
		ind = NopIndicator{}
	}
	return &CommutationEngine{hw: hw, ind: ind}
}

// Init configures the timer and leaves the bridge floating with the
// sequence stopped at step 0.
func (e *CommutationEngine) Init(cfg PWMConfig) error {
	if cfg.DutyShift > MaxDutyShift {
		return ErrInvalidDutyShift
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultPWMPeriod
	}
	center := cfg.Period / 2

	if err := e.hw.Configure(BridgeConfig{
		Period:   cfg.Period,
		Center:   center,
		DeadTime: cfg.DeadTime,
	}); err != nil {
		return err
	}

	state := disableInterrupts()
	e.cfg = cfg
	e.center = center
	e.state = CommutationState{Running: false, Idle: true, Step: 0, Duty: 0}
	e.load(FloatingState())
	e.applyDuty()
	restoreInterrupts(state)

	// Apply the floating pattern before the handler is live.
	e.hw.GenerateCommutation()
	e.hw.ClearCommutationFlag()
	e.hw.EnableCommutationIRQ()
	return nil
}

// Center returns the compare value for zero duty.
func (e *CommutationEngine) Center() uint16 {
	return e.center
}

// State returns a snapshot of the commutation state.
func (e *CommutationEngine) State() CommutationState {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return e.state
}

// Compare returns the compare values last written for each leg.
func (e *CommutationEngine) Compare() [NumPhases]uint16 {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return e.compare
}

// Preloaded returns the leg configuration the next commutation event
// will apply.
func (e *CommutationEngine) Preloaded() BridgeState {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return e.preloaded
}

// ForceAllFloating stops the sequence and switches every switch off,
// applied immediately through a commutation event.
func (e *CommutationEngine) ForceAllFloating() {
	state := disableInterrupts()
	e.state.Running = false
	e.state.Idle = true
	e.load(FloatingState())
	restoreInterrupts(state)

	RecordEvent(EvtForcedFloating, 0, 0, 0)
	e.hw.GenerateCommutation()
}

// ForceAllLowSide stops the sequence and turns every low-side switch on
// and every high-side switch off, applied immediately.
func (e *CommutationEngine) ForceAllLowSide() {
	state := disableInterrupts()
	e.state.Running = false
	e.state.Idle = true
	e.load(LowSideState())
	restoreInterrupts(state)

	RecordEvent(EvtForcedLowSide, 0, 0, 0)
	e.hw.GenerateCommutation()
}

// SetDuty stores the signed duty and rewrites the compare values of all
// three legs for the current step, the freewheeling leg included. The
// new values reach the outputs at the next PWM period.
func (e *CommutationEngine) SetDuty(value int16) {
	state := disableInterrupts()
	e.state.Duty = value
	e.applyDuty()
	restoreInterrupts(state)
}

// TriggerCommutation arms the sequence and requests a commutation event.
// Phase transitions are only ever applied through these events.
func (e *CommutationEngine) TriggerCommutation() {
	state := disableInterrupts()
	e.state.Running = true
	restoreInterrupts(state)

	e.hw.GenerateCommutation()
}

// HandleCommutation is the commutation interrupt handler. While running,
// every event coming from outside leaves the bridge floating and the
// handler immediately applies the next step with a second event, so a
// floating gap separates any two active steps. The gap keeps a PWM
// period cut short at the commutation edge from pushing a current spike
// into the phase that was just switched.
func (e *CommutationEngine) HandleCommutation() {
	e.hw.ClearCommutationFlag()
	e.ind.Toggle(LEDGreen)

	state := disableInterrupts()
	running := e.state.Running
	advanced := false
	if running {
		if e.state.Idle {
			e.state.Idle = false
			e.state.Step = (e.state.Step + 1) % CommutationSteps
			e.load(StepState(e.state.Step))
			advanced = true
		} else {
			e.state.Idle = true
			e.load(FloatingState())
		}
	}
	step := e.state.Step
	duty := e.state.Duty

	// Reapply the duty at least once per commutation.
	e.applyDuty()
	restoreInterrupts(state)

	if running {
		if advanced {
			RecordEvent(EvtCommutation, uint8(step), uint32(uint16(duty)), 0)
			e.hw.GenerateCommutation()
		} else {
			RecordEvent(EvtIdleGap, uint8(step), 0, 0)
		}
	}

	e.ind.Off(LEDGreen)
}

// load preloads a bridge configuration. Mode and enable bits of a leg
// are always written together so no leg is left with a mix of the old
// and new setup when the event fires.
func (e *CommutationEngine) load(s BridgeState) {
	for p := PhaseU; p < NumPhases; p++ {
		leg := s[p]
		e.hw.SetMode(p, leg.Mode)
		e.hw.SetOutputs(p, leg.High, leg.Low)
	}
	e.preloaded = s
}

// applyDuty writes the compare values for the stored duty and step.
// Must be called with interrupts masked.
func (e *CommutationEngine) applyDuty() {
	scaled := e.scaledDuty()
	signs := DutySigns(e.state.Step)
	for p := PhaseU; p < NumPhases; p++ {
		v := int32(e.center) + int32(signs[p])*scaled
		c := uint16(clamp(v, 0, int32(e.cfg.Period)))
		e.compare[p] = c
		e.hw.SetCompare(p, c)
	}
}

// scaledDuty divides the duty down to the compare range, truncating
// toward zero. Saturation happens per leg in applyDuty.
func (e *CommutationEngine) scaledDuty() int32 {
	return int32(e.state.Duty) / (int32(1) << e.cfg.DutyShift)
}
