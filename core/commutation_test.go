package core

import (
	"testing"
)

func TestStepStateTwoActiveLegs(t *testing.T) {
	for step := 0; step < CommutationSteps; step++ {
		s := StepState(step)
		off := FreewheelPhase(step)

		pwm := 0
		complementary := 0
		for p := PhaseU; p < NumPhases; p++ {
			leg := s[p]
			if leg.ShootThrough() {
				t.Errorf("step %d leg %s: both switches on", step, p)
			}
			if leg.Mode == ModePWM1 {
				pwm++
			}
			if leg.Low {
				complementary++
			}

			if p == off {
				if leg.Mode != ModeForceLow {
					t.Errorf("step %d freewheel leg %s: mode %s, want force-low", step, p, leg.Mode)
				}
				if leg.Low {
					t.Errorf("step %d freewheel leg %s: complementary output enabled", step, p)
				}
				if leg.HighSide() != SwitchOff || leg.LowSide() != SwitchOff {
					t.Errorf("step %d freewheel leg %s: switches not off", step, p)
				}
				continue
			}

			if leg.HighSide() != SwitchPWM || leg.LowSide() != SwitchPWM {
				t.Errorf("step %d leg %s: got %d/%d, want complementary PWM",
					step, p, leg.HighSide(), leg.LowSide())
			}
		}

		if pwm != 2 {
			t.Errorf("step %d: %d legs in PWM mode, want 2", step, pwm)
		}
		if complementary != 2 {
			t.Errorf("step %d: %d complementary outputs enabled, want 2", step, complementary)
		}
	}
}

func TestFreewheelPhase(t *testing.T) {
	want := []Phase{PhaseU, PhaseW, PhaseV, PhaseU, PhaseW, PhaseV}
	for step, p := range want {
		if got := FreewheelPhase(step); got != p {
			t.Errorf("step %d: freewheel %s, want %s", step, got, p)
		}
	}
}

func TestFloatingState(t *testing.T) {
	for p, leg := range FloatingState() {
		if leg.HighSide() != SwitchOff || leg.LowSide() != SwitchOff {
			t.Errorf("leg %s: not floating", Phase(p))
		}
	}
}

func TestLowSideState(t *testing.T) {
	for p, leg := range LowSideState() {
		if leg.HighSide() != SwitchOff {
			t.Errorf("leg %s: high side not off", Phase(p))
		}
		if leg.LowSide() != SwitchOn {
			t.Errorf("leg %s: low side not on", Phase(p))
		}
	}
}

func TestDutySignsOpposeOnActiveLegs(t *testing.T) {
	for step := 0; step < CommutationSteps; step++ {
		signs := DutySigns(step)
		off := FreewheelPhase(step)

		sum := 0
		for p := PhaseU; p < NumPhases; p++ {
			if p != off {
				sum += int(signs[p])
			}
		}
		if sum != 0 {
			t.Errorf("step %d: active legs %v do not oppose", step, signs)
		}
	}
}
