package core

// CommutationSteps is the length of the six-step sequence.
const CommutationSteps = 6

// SwitchState is the resulting state of one bridge switch.
type SwitchState uint8

const (
	SwitchOff SwitchState = iota
	SwitchOn
	SwitchPWM // Switching, complementary to the other switch of the leg
)

// LegConfig is the output configuration of one half-bridge leg.
type LegConfig struct {
	Mode OutputMode
	High bool // High-side output enabled
	Low  bool // Complementary low-side output enabled
}

// HighSide returns the state of the leg's high-side switch. It follows
// the reference signal while its output is enabled.
func (l LegConfig) HighSide() SwitchState {
	if !l.High {
		return SwitchOff
	}
	switch l.Mode {
	case ModeForceHigh:
		return SwitchOn
	case ModePWM1:
		return SwitchPWM
	default:
		return SwitchOff
	}
}

// LowSide returns the state of the leg's low-side switch. It follows the
// complemented reference signal while its output is enabled.
func (l LegConfig) LowSide() SwitchState {
	if !l.Low {
		return SwitchOff
	}
	switch l.Mode {
	case ModeForceLow:
		return SwitchOn
	case ModePWM1:
		return SwitchPWM
	default:
		return SwitchOff
	}
}

// ShootThrough reports whether both switches of the leg would conduct
// at the same time.
func (l LegConfig) ShootThrough() bool {
	return l.HighSide() == SwitchOn && l.LowSide() == SwitchOn
}

// BridgeState is the configuration of all three legs.
type BridgeState [NumPhases]LegConfig

var (
	legFloating = LegConfig{Mode: ModeForceLow, High: true}
	legLowSide  = LegConfig{Mode: ModeForceLow, Low: true}
	legActive   = LegConfig{Mode: ModePWM1, High: true, Low: true}
)

// FloatingState has every switch off.
func FloatingState() BridgeState {
	return BridgeState{legFloating, legFloating, legFloating}
}

// LowSideState has every low-side switch on and every high-side switch
// off, shorting the motor windings.
func LowSideState() BridgeState {
	return BridgeState{legLowSide, legLowSide, legLowSide}
}

// FreewheelPhase returns the leg held off during a step.
func FreewheelPhase(step int) Phase {
	switch step % 3 {
	case 1:
		return PhaseW
	case 2:
		return PhaseV
	default:
		return PhaseU
	}
}

// StepState returns the bridge configuration for a commutation step:
// complementary PWM on two legs, the freewheeling leg held off.
func StepState(step int) BridgeState {
	off := FreewheelPhase(step)
	var s BridgeState
	for p := PhaseU; p < NumPhases; p++ {
		if p == off {
			s[p] = legFloating
		} else {
			s[p] = legActive
		}
	}
	return s
}

// dutySigns gives, per step, whether each leg's compare value moves
// above (+1) or below (-1) the center for a positive duty. The entry for
// the freewheeling leg is the sign it will carry once it turns active.
var dutySigns = [CommutationSteps][NumPhases]int8{
	{-1, -1, +1},
	{+1, -1, +1},
	{+1, -1, -1},
	{+1, +1, -1},
	{-1, +1, -1},
	{-1, +1, +1},
}

// DutySigns returns the per-leg duty sign for a step.
func DutySigns(step int) [NumPhases]int8 {
	return dutySigns[step%CommutationSteps]
}
