package sim

import (
	"errors"

	"bldc/core"
)

// Bridge simulates the advanced-control timer and the six bridge
// switches.
type Bridge struct {
	irq *Controller

	cfg        core.BridgeConfig
	configured bool

	preload core.BridgeState
	applied core.BridgeState
	compare [core.NumPhases]uint16

	comIRQ  bool
	comFlag bool
	events  int

	// OnApply, if set, sees every configuration a commutation event applies.
	OnApply func(core.BridgeState)
}

// NewBridge creates a bridge delivering its commutation interrupt on irq.
func NewBridge(irq *Controller) *Bridge {
	return &Bridge{irq: irq}
}

func (b *Bridge) Configure(cfg core.BridgeConfig) error {
	if cfg.Period == 0 || cfg.Center > cfg.Period {
		return errors.New("sim: invalid bridge period")
	}
	b.cfg = cfg
	b.configured = true
	for p := range b.compare {
		b.compare[p] = cfg.Center
	}
	b.comIRQ = false
	b.comFlag = false
	return nil
}

func (b *Bridge) SetMode(p core.Phase, m core.OutputMode) {
	b.preload[p].Mode = m
}

func (b *Bridge) SetOutputs(p core.Phase, high, low bool) {
	b.preload[p].High = high
	b.preload[p].Low = low
}

func (b *Bridge) SetCompare(p core.Phase, v uint16) {
	b.compare[p] = v
}

func (b *Bridge) GenerateCommutation() {
	b.applied = b.preload
	b.events++
	b.comFlag = true
	if b.OnApply != nil {
		b.OnApply(b.applied)
	}
	if b.comIRQ {
		b.irq.Raise(IRQCommutation)
	}
}

func (b *Bridge) EnableCommutationIRQ() { b.comIRQ = true }
func (b *Bridge) ClearCommutationFlag() { b.comFlag = false }

// Applied returns the leg configuration currently driving the switches.
func (b *Bridge) Applied() core.BridgeState { return b.applied }

// Compare returns the live compare values.
func (b *Bridge) Compare() [core.NumPhases]uint16 { return b.compare }

// Events returns the number of commutation events generated.
func (b *Bridge) Events() int { return b.events }

// HighSideFraction returns the share of a PWM period the leg's high-side
// switch conducts, in 1/65536 units, and whether the leg is floating.
func (b *Bridge) HighSideFraction(p core.Phase) (uint32, bool) {
	leg := b.applied[p]
	switch {
	case leg.HighSide() == core.SwitchOn:
		return 1 << 16, false
	case leg.HighSide() == core.SwitchPWM:
		return uint32(b.compare[p]) << 16 / uint32(b.cfg.Period), false
	case leg.LowSide() != core.SwitchOff:
		return 0, false
	default:
		return 0, true
	}
}
