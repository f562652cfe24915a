//go:build stm32f103

package main

import (
	"runtime/volatile"
	"unsafe"
)

// STM32F103 peripheral memory map (RM0008)
const (
	tim2Base    = 0x40000000
	adc1Base    = 0x40012400
	adc2Base    = 0x40012800
	tim1Base    = 0x40012C00
	dma1Base    = 0x40020000
	rccBase     = 0x40021000
	sysTickBase = 0xE000E010
)

// Interrupt numbers
const (
	irqDMA1Channel1 = 11
	irqTIM1TrgCom   = 26
	irqTIM2         = 28
)

// timRegs covers both the advanced-control and the general-purpose
// timers; TIM2 leaves RCR and BDTR reserved.
type timRegs struct {
	CR1   volatile.Register32
	CR2   volatile.Register32
	SMCR  volatile.Register32
	DIER  volatile.Register32
	SR    volatile.Register32
	EGR   volatile.Register32
	CCMR1 volatile.Register32
	CCMR2 volatile.Register32
	CCER  volatile.Register32
	CNT   volatile.Register32
	PSC   volatile.Register32
	ARR   volatile.Register32
	RCR   volatile.Register32
	CCR   [4]volatile.Register32
	BDTR  volatile.Register32
	DCR   volatile.Register32
	DMAR  volatile.Register32
}

const (
	timCR1_CEN    = 1 << 0
	timCR1_CMS1   = 1 << 5 // Center-aligned mode 1
	timCR1_ARPE   = 1 << 7
	timCR2_CCPC   = 1 << 0
	timDIER_COMIE = 1 << 5
	timSR_COMIF   = 1 << 5
	timEGR_UG     = 1 << 0
	timEGR_COMG   = 1 << 5
	timBDTR_MOE   = 1 << 15

	// Per-channel byte of CCMR1/CCMR2
	timCCMR_OCPE = 1 << 3
	timCCMR_OCM  = 7 << 4
	ocmFrozen    = 0 << 4
	ocmForceLow  = 4 << 4
	ocmForceHigh = 5 << 4
	ocmPWM1      = 6 << 4
)

// Per-channel bits of DIER/SR and CCER
func timCCIE(ch int) uint32 { return 1 << (ch + 1) }
func timCCE(ch int) uint32  { return 1 << (4 * ch) }
func timCCNE(ch int) uint32 { return 1 << (4*ch + 2) }

type adcRegs struct {
	SR    volatile.Register32
	CR1   volatile.Register32
	CR2   volatile.Register32
	SMPR1 volatile.Register32
	SMPR2 volatile.Register32
	JOFR  [4]volatile.Register32
	HTR   volatile.Register32
	LTR   volatile.Register32
	SQR1  volatile.Register32
	SQR2  volatile.Register32
	SQR3  volatile.Register32
	JSQR  volatile.Register32
	JDR   [4]volatile.Register32
	DR    volatile.Register32
}

const (
	adcCR1_SCAN       = 1 << 8
	adcCR1_DUALMOD    = 0xF << 16
	adcDualRegularSim = 6 << 16

	adcCR2_ADON    = 1 << 0
	adcCR2_CONT    = 1 << 1
	adcCR2_CAL     = 1 << 2
	adcCR2_RSTCAL  = 1 << 3
	adcCR2_DMA     = 1 << 8
	adcCR2_ALIGN   = 1 << 11
	adcCR2_EXTSEL  = 7 << 17 // SWSTART
	adcCR2_EXTTRIG = 1 << 20
	adcCR2_SWSTART = 1 << 22
)

type dmaChannelRegs struct {
	CCR   volatile.Register32
	CNDTR volatile.Register32
	CPAR  volatile.Register32
	CMAR  volatile.Register32
	_     volatile.Register32
}

type dmaRegs struct {
	ISR  volatile.Register32
	IFCR volatile.Register32
	CH   [7]dmaChannelRegs
}

const (
	dmaCCR_EN    = 1 << 0
	dmaCCR_TCIE  = 1 << 1
	dmaCCR_HTIE  = 1 << 2
	dmaCCR_TEIE  = 1 << 3
	dmaCCR_CIRC  = 1 << 5
	dmaCCR_MINC  = 1 << 7
	dmaCCR_PSIZE = 2 << 8 // 32-bit
	dmaCCR_MSIZE = 2 << 10
	dmaCCR_PL    = 3 << 12 // Very high

	dmaISR_TCIF1 = 1 << 1
	dmaISR_HTIF1 = 1 << 2
	dmaISR_TEIF1 = 1 << 3
	dmaIFCR_ALL1 = 0xF
)

type rccRegs struct {
	CR      volatile.Register32
	CFGR    volatile.Register32
	CIR     volatile.Register32
	APB2RST volatile.Register32
	APB1RST volatile.Register32
	AHBENR  volatile.Register32
	APB2ENR volatile.Register32
	APB1ENR volatile.Register32
}

const (
	rccAHBENR_DMA1  = 1 << 0
	rccAPB2ENR_AFIO = 1 << 0
	rccAPB2ENR_IOPA = 1 << 2
	rccAPB2ENR_IOPB = 1 << 3
	rccAPB2ENR_ADC1 = 1 << 9
	rccAPB2ENR_ADC2 = 1 << 10
	rccAPB2ENR_TIM1 = 1 << 11
	rccAPB1ENR_TIM2 = 1 << 0
	rccCFGR_ADCPRE  = 3 << 14
	rccCFGR_ADCPRE6 = 2 << 14
)

type sysTickRegs struct {
	CTRL volatile.Register32
	LOAD volatile.Register32
	VAL  volatile.Register32
}

const (
	sysTickCTRL_ENABLE    = 1 << 0
	sysTickCTRL_TICKINT   = 1 << 1
	sysTickCTRL_CLKSOURCE = 1 << 2 // Processor clock
)

var (
	tim1    = (*timRegs)(unsafe.Pointer(uintptr(tim1Base)))
	tim2    = (*timRegs)(unsafe.Pointer(uintptr(tim2Base)))
	adc1    = (*adcRegs)(unsafe.Pointer(uintptr(adc1Base)))
	adc2    = (*adcRegs)(unsafe.Pointer(uintptr(adc2Base)))
	dma1    = (*dmaRegs)(unsafe.Pointer(uintptr(dma1Base)))
	rcc     = (*rccRegs)(unsafe.Pointer(uintptr(rccBase)))
	sysTick = (*sysTickRegs)(unsafe.Pointer(uintptr(sysTickBase)))
)

// enableClocks gates on every peripheral the controller uses. The ADC
// clock is the APB2 clock divided by six.
func enableClocks() {
	rcc.AHBENR.SetBits(rccAHBENR_DMA1)
	rcc.APB2ENR.SetBits(rccAPB2ENR_AFIO | rccAPB2ENR_IOPA | rccAPB2ENR_IOPB |
		rccAPB2ENR_ADC1 | rccAPB2ENR_ADC2 | rccAPB2ENR_TIM1)
	rcc.APB1ENR.SetBits(rccAPB1ENR_TIM2)
	rcc.CFGR.ReplaceBits(rccCFGR_ADCPRE6, rccCFGR_ADCPRE, 0)
}
