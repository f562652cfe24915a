//go:build stm32f103

package main

import (
	"errors"
	"machine"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Status LEDs, wired to VCC.
const (
	ledGreenPin = machine.PB4
	ledRedPin   = machine.PB5
)

// ledPin adapts a TinyGo pin to a periph output pin.
type ledPin struct {
	name string
	pin  machine.Pin
}

func newLEDPin(name string, pin machine.Pin) *ledPin {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &ledPin{name: name, pin: pin}
}

func (p *ledPin) String() string   { return p.name }
func (p *ledPin) Halt() error      { return nil }
func (p *ledPin) Name() string     { return p.name }
func (p *ledPin) Number() int      { return int(p.pin) }
func (p *ledPin) Function() string { return "Out" }

func (p *ledPin) Out(l gpio.Level) error {
	p.pin.Set(bool(l))
	return nil
}

func (p *ledPin) PWM(gpio.Duty, physic.Frequency) error {
	return errors.New("led: no PWM")
}

var _ gpio.PinOut = (*ledPin)(nil)
