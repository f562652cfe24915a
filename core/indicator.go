package core

import (
	"periph.io/x/conn/v3/gpio"
)

// LED identifies one of the board status LEDs.
type LED uint8

const (
	LEDGreen LED = iota
	LEDRed
	numLEDs
)

// Indicator signals transient states to the outside world. Purely
// observational: it never fails and never blocks.
type Indicator interface {
	On(led LED)
	Off(led LED)
	Toggle(led LED)
}

// NopIndicator discards every signal.
type NopIndicator struct{}

func (NopIndicator) On(LED)     {}
func (NopIndicator) Off(LED)    {}
func (NopIndicator) Toggle(LED) {}

// PinIndicator drives status LEDs through periph GPIO output pins.
// The STM32F103 board wires the LEDs open-drain to VCC, so they are
// active-low by default.
type PinIndicator struct {
	pins      [numLEDs]gpio.PinOut
	lit       [numLEDs]bool
	activeLow bool
}

// NewPinIndicator creates an indicator for the green and red LED pins.
// A nil pin disables that LED. All LEDs start switched off.
func NewPinIndicator(green, red gpio.PinOut, activeLow bool) *PinIndicator {
	p := &PinIndicator{activeLow: activeLow}
	p.pins[LEDGreen] = green
	p.pins[LEDRed] = red
	for led := LED(0); led < numLEDs; led++ {
		p.set(led, false)
	}
	return p
}

func (p *PinIndicator) On(led LED)  { p.set(led, true) }
func (p *PinIndicator) Off(led LED) { p.set(led, false) }

func (p *PinIndicator) Toggle(led LED) {
	if led >= numLEDs {
		return
	}
	p.set(led, !p.lit[led])
}

// Lit reports whether the LED is currently switched on.
func (p *PinIndicator) Lit(led LED) bool {
	if led >= numLEDs {
		return false
	}
	return p.lit[led]
}

func (p *PinIndicator) set(led LED, on bool) {
	if led >= numLEDs {
		return
	}
	p.lit[led] = on
	pin := p.pins[led]
	if pin == nil {
		return
	}
	level := gpio.Level(on)
	if p.activeLow {
		level = !level
	}
	// Indicator output is best effort.
	_ = pin.Out(level)
}
