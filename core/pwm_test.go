package core

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestEngine(t *testing.T, cfg PWMConfig) (*CommutationEngine, *fakeBridge, *fakeIndicator) {
	t.Helper()
	hw := &fakeBridge{}
	ind := &fakeIndicator{}
	e := NewCommutationEngine(hw, ind)
	hw.handler = e.HandleCommutation
	if err := e.Init(cfg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return e, hw, ind
}

func allCompare(v uint16) [NumPhases]uint16 {
	return [NumPhases]uint16{v, v, v}
}

func TestCommutationInit(t *testing.T) {
	e, hw, _ := newTestEngine(t, DefaultPWMConfig())

	want := CommutationState{Running: false, Idle: true, Step: 0, Duty: 0}
	if diff := cmp.Diff(want, e.State()); diff != "" {
		t.Errorf("initial state mismatch (-want +got):\n%s", diff)
	}

	if hw.cfg.Period != DefaultPWMPeriod {
		t.Errorf("period: got %#x, want %#x", hw.cfg.Period, DefaultPWMPeriod)
	}
	if e.Center() != 0x3FF {
		t.Errorf("center: got %#x, want 0x3ff", e.Center())
	}
	if hw.compare != allCompare(0x3FF) {
		t.Errorf("compare: got %v, want all 0x3ff", hw.compare)
	}
	if hw.applied != FloatingState() {
		t.Errorf("bridge not floating after Init: %+v", hw.applied)
	}
	if !hw.irqEnabled {
		t.Error("commutation interrupt not enabled")
	}
	if hw.flag {
		t.Error("commutation flag left pending")
	}
}

func TestCommutationInitDefaultsPeriod(t *testing.T) {
	_, hw, _ := newTestEngine(t, PWMConfig{DutyShift: DefaultDutyShift})
	if hw.cfg.Period != DefaultPWMPeriod {
		t.Errorf("period: got %#x, want default", hw.cfg.Period)
	}
}

func TestCommutationInitInvalidDutyShift(t *testing.T) {
	tests := []struct {
		shift uint8
		want  error
	}{
		{MaxDutyShift, nil},
		{MaxDutyShift + 1, ErrInvalidDutyShift},
		{31, ErrInvalidDutyShift},
		{32, ErrInvalidDutyShift},
		{255, ErrInvalidDutyShift},
	}

	for _, tt := range tests {
		hw := &fakeBridge{}
		e := NewCommutationEngine(hw, nil)
		err := e.Init(PWMConfig{Period: DefaultPWMPeriod, DutyShift: tt.shift})
		if !errors.Is(err, tt.want) {
			t.Errorf("shift %d: got %v, want %v", tt.shift, err, tt.want)
		}
		if tt.want != nil && hw.configured != 0 {
			t.Errorf("shift %d: bridge configured despite the error", tt.shift)
		}
	}
}

func TestMaxDutyShiftKeepsSign(t *testing.T) {
	e, hw, _ := newTestEngine(t, PWMConfig{Period: DefaultPWMPeriod, DutyShift: MaxDutyShift})
	e.TriggerCommutation()

	// Step 1 drives U and W high, V low.
	e.SetDuty(math.MinInt16)
	c := e.Center()
	want := [NumPhases]uint16{c - 1, c + 1, c - 1}
	if hw.compare != want {
		t.Errorf("compare at MinInt16: got %v, want %v", hw.compare, want)
	}
}

func TestCommutationSequence(t *testing.T) {
	e, hw, _ := newTestEngine(t, DefaultPWMConfig())

	prev := e.State().Step
	for i := 0; i < 2*CommutationSteps; i++ {
		before := len(hw.applyLog)
		e.TriggerCommutation()

		applied := hw.applyLog[before:]
		if len(applied) != 2 {
			t.Fatalf("trigger %d: %d bridge updates, want 2", i, len(applied))
		}

		st := e.State()
		if st.Step != (prev+1)%CommutationSteps {
			t.Errorf("trigger %d: step %d after %d", i, st.Step, prev)
		}
		if applied[0] != FloatingState() {
			t.Errorf("trigger %d: no floating gap before step %d", i, st.Step)
		}
		if applied[1] != StepState(st.Step) {
			t.Errorf("trigger %d: applied %+v, want step %d", i, applied[1], st.Step)
		}
		if !st.Running {
			t.Errorf("trigger %d: not running", i)
		}
		if e.Preloaded() != FloatingState() {
			t.Errorf("trigger %d: next event would not float the bridge", i)
		}
		prev = st.Step
	}
}

func TestCommutationVisitsEveryStep(t *testing.T) {
	e, _, _ := newTestEngine(t, DefaultPWMConfig())

	var seen []int
	for i := 0; i < CommutationSteps+1; i++ {
		e.TriggerCommutation()
		seen = append(seen, e.State().Step)
	}
	want := []int{1, 2, 3, 4, 5, 0, 1}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("step order mismatch (-want +got):\n%s", diff)
	}
}

func TestZeroDutyHoldsCenter(t *testing.T) {
	e, hw, _ := newTestEngine(t, DefaultPWMConfig())

	e.SetDuty(0)
	for i := 0; i < CommutationSteps; i++ {
		e.TriggerCommutation()
		if hw.compare != allCompare(e.Center()) {
			t.Errorf("event %d (step %d): compare %v, want center", i, e.State().Step, hw.compare)
		}
	}
}

func TestSetDutyImmediate(t *testing.T) {
	e, hw, _ := newTestEngine(t, DefaultPWMConfig())
	e.TriggerCommutation() // step 1: U+, V-, W+

	events := hw.events
	e.SetDuty(3200) // 3200/32 = 100

	want := [NumPhases]uint16{1123, 923, 1123}
	if hw.compare != want {
		t.Errorf("compare: got %v, want %v", hw.compare, want)
	}
	if e.Compare() != want {
		t.Errorf("Compare(): got %v, want %v", e.Compare(), want)
	}

	// Idempotent and never commutes.
	e.SetDuty(3200)
	if hw.compare != want {
		t.Errorf("repeated SetDuty changed compare: %v", hw.compare)
	}
	if hw.events != events {
		t.Errorf("SetDuty generated %d commutation events", hw.events-events)
	}
	if e.State().Duty != 3200 {
		t.Errorf("duty: got %d, want 3200", e.State().Duty)
	}
}

func TestDutyReappliedOnCommutation(t *testing.T) {
	e, hw, _ := newTestEngine(t, DefaultPWMConfig())
	e.TriggerCommutation()
	e.SetDuty(3200)

	e.TriggerCommutation() // step 2: U+, V-, W-
	want := [NumPhases]uint16{1123, 923, 923}
	if hw.compare != want {
		t.Errorf("compare after commutation: got %v, want %v", hw.compare, want)
	}
}

func TestSetDutyScaling(t *testing.T) {
	tests := []struct {
		name string
		cfg  PWMConfig
		duty int16
		want [NumPhases]uint16 // At step 1: U+, V-, W+
	}{
		{"max", DefaultPWMConfig(), math.MaxInt16, [NumPhases]uint16{2046, 0, 2046}},
		{"min", DefaultPWMConfig(), math.MinInt16, [NumPhases]uint16{0, 2047, 0}},
		{"truncates small negative", DefaultPWMConfig(), -31, allCompare(1023)},
		{"truncates toward zero", DefaultPWMConfig(), -33, [NumPhases]uint16{1022, 1024, 1022}},
		{"saturates", PWMConfig{Period: 100, DutyShift: 0}, 1000, [NumPhases]uint16{100, 0, 100}},
		{"saturates negative", PWMConfig{Period: 100, DutyShift: 0}, -1000, [NumPhases]uint16{0, 100, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, hw, _ := newTestEngine(t, tt.cfg)
			e.TriggerCommutation()
			e.SetDuty(tt.duty)
			if hw.compare != tt.want {
				t.Errorf("compare: got %v, want %v", hw.compare, tt.want)
			}
		})
	}
}

func TestForceAllFloating(t *testing.T) {
	e, hw, _ := newTestEngine(t, DefaultPWMConfig())
	e.TriggerCommutation()
	e.TriggerCommutation()
	step := e.State().Step

	e.ForceAllFloating()

	st := e.State()
	if st.Running || !st.Idle {
		t.Errorf("state after ForceAllFloating: %+v", st)
	}
	if st.Step != step {
		t.Errorf("step moved from %d to %d", step, st.Step)
	}
	if hw.applied != FloatingState() {
		t.Errorf("bridge not floating: %+v", hw.applied)
	}

	// Restart resumes the sequence.
	e.TriggerCommutation()
	if got := e.State().Step; got != (step+1)%CommutationSteps {
		t.Errorf("step after restart: got %d, want %d", got, (step+1)%CommutationSteps)
	}
}

func TestForceAllLowSide(t *testing.T) {
	e, hw, _ := newTestEngine(t, DefaultPWMConfig())
	e.TriggerCommutation()

	e.ForceAllLowSide()

	if e.State().Running {
		t.Error("still running after ForceAllLowSide")
	}
	if hw.applied != LowSideState() {
		t.Errorf("bridge not braking: %+v", hw.applied)
	}
	for p, leg := range hw.applied {
		if leg.ShootThrough() {
			t.Errorf("leg %s: shoot-through", Phase(p))
		}
	}
}

func TestHandlerWhileStopped(t *testing.T) {
	e, hw, ind := newTestEngine(t, DefaultPWMConfig())

	events := hw.events
	e.HandleCommutation()

	if e.State().Step != 0 {
		t.Errorf("stopped handler advanced to step %d", e.State().Step)
	}
	if hw.events != events {
		t.Error("stopped handler generated a commutation event")
	}
	want := []string{"toggle green", "off green"}
	if diff := cmp.Diff(want, ind.log); diff != "" {
		t.Errorf("indicator mismatch (-want +got):\n%s", diff)
	}
}

func TestCommutationEvents(t *testing.T) {
	ClearEventRing()
	e, _, _ := newTestEngine(t, DefaultPWMConfig())
	e.TriggerCommutation()

	var types []uint8
	for _, evt := range Events() {
		types = append(types, evt.Type)
	}
	want := []uint8{EvtCommutation, EvtIdleGap}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}
