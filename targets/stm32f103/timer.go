//go:build stm32f103

package main

import "bldc/core"

// tim2Compare runs TIM2 as the free-running compare timer behind the
// hardware timer scheduler.
type tim2Compare struct{}

func (tim2Compare) Configure(prescaler uint16) error {
	tim2.CR1.Set(0)
	tim2.DIER.Set(0)
	tim2.CCMR1.Set(ocmFrozen | ocmFrozen<<8)
	tim2.CCMR2.Set(ocmFrozen | ocmFrozen<<8)
	tim2.CCER.Set(0)
	tim2.PSC.Set(uint32(prescaler))
	tim2.ARR.Set(0xFFFF)
	tim2.EGR.Set(timEGR_UG)
	tim2.SR.Set(0)
	tim2.CR1.Set(timCR1_CEN)
	return nil
}

func (tim2Compare) Counter() uint16 { return uint16(tim2.CNT.Get()) }

func (tim2Compare) SetCompare(ch int, v uint16) { tim2.CCR[ch].Set(uint32(v)) }

func (tim2Compare) EnableCompareIRQ(ch int)       { tim2.DIER.SetBits(timCCIE(ch)) }
func (tim2Compare) DisableCompareIRQ(ch int)      { tim2.DIER.ClearBits(timCCIE(ch)) }
func (tim2Compare) CompareIRQEnabled(ch int) bool { return tim2.DIER.HasBits(timCCIE(ch)) }
func (tim2Compare) CompareFlag(ch int) bool       { return tim2.SR.HasBits(timCCIE(ch)) }

// Status bits clear on writing 0; ones leave the other flags alone.
func (tim2Compare) ClearCompareFlag(ch int) { tim2.SR.Set(^timCCIE(ch)) }

var _ core.CompareTimer = tim2Compare{}
