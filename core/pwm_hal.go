package core

// Phase identifies one half-bridge leg of the three-phase output stage.
type Phase uint8

const (
	PhaseU Phase = iota
	PhaseV
	PhaseW
	NumPhases
)

func (p Phase) String() string {
	switch p {
	case PhaseU:
		return "U"
	case PhaseV:
		return "V"
	case PhaseW:
		return "W"
	default:
		return "?"
	}
}

// OutputMode is the output-compare mode of one leg's reference signal.
type OutputMode uint8

const (
	// ModeForceLow holds the reference low: high switch off.
	ModeForceLow OutputMode = iota
	// ModeForceHigh holds the reference high: high switch on.
	ModeForceHigh
	// ModePWM1 drives the reference high while the counter is below the
	// compare value.
	ModePWM1
)

func (m OutputMode) String() string {
	switch m {
	case ModeForceLow:
		return "force-low"
	case ModeForceHigh:
		return "force-high"
	case ModePWM1:
		return "pwm"
	default:
		return "?"
	}
}

// BridgeConfig is the static timer setup for center-aligned
// complementary PWM.
type BridgeConfig struct {
	// Period is the auto-reload value. With center-aligned counting the
	// PWM frequency is coreClock / (2 * Period).
	Period uint16

	// Center is the compare value producing zero net phase voltage.
	Center uint16

	// DeadTime is the raw dead-time generator setting inserted between
	// one switch of a leg turning off and its complement turning on.
	DeadTime uint8
}

// BridgeTimer is the advanced-control timer driving the six bridge
// switches (TIM1 on the STM32F103 board). Mode and output-enable writes
// are preloaded and only take effect on the next commutation event;
// compare writes are preloaded until the next PWM period.
type BridgeTimer interface {
	// Configure resets the timer for center-aligned counting with the
	// given period and dead time, sets break/off-state safety logic,
	// enables preload of the complementary control bits, loads Center on
	// every compare, enables the main output and starts the counter. The
	// commutation interrupt is left disabled.
	Configure(cfg BridgeConfig) error

	SetMode(p Phase, m OutputMode)

	// SetOutputs sets the output-enable bits of a leg: high is the
	// high-side output, low the complementary low-side output.
	SetOutputs(p Phase, high, low bool)

	SetCompare(p Phase, value uint16)

	// GenerateCommutation requests a commutation event, applying the
	// preloaded mode and enable bits to all three legs at once. The
	// commutation interrupt follows if enabled.
	GenerateCommutation()

	EnableCommutationIRQ()
	ClearCommutationFlag()
}
