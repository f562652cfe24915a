//go:build stm32f103

package main

import (
	"machine"

	"bldc/core"
)

// Bridge outputs: CH1..CH3 on PA8..PA10, CH1N..CH3N on PB13..PB15.
var (
	bridgeHighPins = [core.NumPhases]machine.Pin{machine.PA8, machine.PA9, machine.PA10}
	bridgeLowPins  = [core.NumPhases]machine.Pin{machine.PB13, machine.PB14, machine.PB15}
)

// tim1Bridge drives the six switches from TIM1 in center-aligned mode
// with preloaded, COM-event-latched output configuration.
type tim1Bridge struct{}

func (tim1Bridge) Configure(cfg core.BridgeConfig) error {
	for p := range bridgeHighPins {
		bridgeHighPins[p].Configure(machine.PinConfig{Mode: machine.PinOutput50MHz + machine.PinOutputModeAltPushPull})
		bridgeLowPins[p].Configure(machine.PinConfig{Mode: machine.PinOutput50MHz + machine.PinOutputModeAltPushPull})
	}

	tim1.CR1.Set(0)
	tim1.DIER.Set(0)
	tim1.PSC.Set(0)
	tim1.ARR.Set(uint32(cfg.Period))
	tim1.RCR.Set(0)

	// Every leg starts forced low with preload on; the outputs stay off
	// until the first commutation event.
	tim1.CCER.Set(0)
	tim1.CCMR1.Set(uint32(ocmForceLow|timCCMR_OCPE) | uint32(ocmForceLow|timCCMR_OCPE)<<8)
	tim1.CCMR2.Set(uint32(ocmForceLow | timCCMR_OCPE))
	for p := 0; p < int(core.NumPhases); p++ {
		tim1.CCR[p].Set(uint32(cfg.Center))
	}

	tim1.BDTR.Set(uint32(cfg.DeadTime))
	tim1.CR2.Set(timCR2_CCPC)
	tim1.CR1.Set(timCR1_CMS1 | timCR1_ARPE)
	tim1.EGR.Set(timEGR_UG)
	tim1.SR.Set(0)

	tim1.BDTR.SetBits(timBDTR_MOE)
	tim1.CR1.SetBits(timCR1_CEN)
	return nil
}

var ocModes = [...]uint32{
	core.ModeForceLow:  ocmForceLow,
	core.ModeForceHigh: ocmForceHigh,
	core.ModePWM1:      ocmPWM1,
}

func (tim1Bridge) SetMode(p core.Phase, m core.OutputMode) {
	reg := &tim1.CCMR1
	shift := uint8(8 * (p % 2))
	if p >= 2 {
		reg = &tim1.CCMR2
		shift = 0
	}
	reg.ReplaceBits(ocModes[m]>>4, timCCMR_OCM>>4, 4+shift)
}

func (tim1Bridge) SetOutputs(p core.Phase, high, low bool) {
	ch := int(p)
	var bits uint32
	if high {
		bits |= timCCE(ch)
	}
	if low {
		bits |= timCCNE(ch)
	}
	tim1.CCER.ReplaceBits(bits, timCCE(ch)|timCCNE(ch), 0)
}

func (tim1Bridge) SetCompare(p core.Phase, v uint16) {
	tim1.CCR[p].Set(uint32(v))
}

func (tim1Bridge) GenerateCommutation() {
	tim1.EGR.Set(timEGR_COMG)
}

func (tim1Bridge) EnableCommutationIRQ() {
	tim1.DIER.SetBits(timDIER_COMIE)
}

func (tim1Bridge) ClearCommutationFlag() {
	tim1.SR.Set(^uint32(timSR_COMIF))
}
