// Package config holds the board constants of the controller, loadable
// from YAML. Physical quantities are written the way they read on a
// datasheet ("64MHz", "3.3V").
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"bldc/core"
)

type Config struct {
	Clock   ClockConfig   `yaml:"clock"`
	PWM     PWMConfig     `yaml:"pwm"`
	HWTimer HWTimerConfig `yaml:"hw_timer"`
	SysTick SysTickConfig `yaml:"sys_tick"`
	ADC     ADCConfig     `yaml:"adc"`
	Sim     SimConfig     `yaml:"sim"`
}

// ---- CLOCK ----

type ClockConfig struct {
	Core Frequency `yaml:"core"`
}

// ---- PWM ----

type PWMConfig struct {
	Period    uint16 `yaml:"period"`
	DeadTime  uint8  `yaml:"dead_time"`
	DutyShift uint8  `yaml:"duty_shift"`
}

// ---- TIMERS ----

type HWTimerConfig struct {
	Frequency Frequency `yaml:"frequency"` // Counter rate
}

type SysTickConfig struct {
	Rate Frequency `yaml:"rate"`
}

// ---- ADC ----

type ADCConfig struct {
	SampleTime         SampleTime        `yaml:"sample_time"`
	PowerOnDelay       time.Duration     `yaml:"power_on_delay"`
	VRef               ElectricPotential `yaml:"vref"`
	PhaseDivider       uint32            `yaml:"phase_divider"`
	VBattDivider       uint32            `yaml:"vbatt_divider"`
	RestartAfterErrors uint32            `yaml:"restart_after_errors"`
}

// ---- SIMULATION ----

type SimConfig struct {
	Duration            time.Duration `yaml:"duration"`
	CommutationInterval time.Duration `yaml:"commutation_interval"`
	Duty                int16         `yaml:"duty"`
	TracePort           string        `yaml:"trace_port"` // Empty: stdout
	TraceBaud           int           `yaml:"trace_baud"`

	// Analog inputs seen by the simulated converters.
	Battery      ElectricPotential `yaml:"battery"`
	CurrentSense ElectricPotential `yaml:"current_sense"`
}

// Default returns the configuration of the STM32F103 board.
func Default() *Config {
	return &Config{
		Clock: ClockConfig{Core: Frequency(64 * physic.MegaHertz)},
		PWM: PWMConfig{
			Period:    core.DefaultPWMPeriod,
			DeadTime:  0,
			DutyShift: core.DefaultDutyShift,
		},
		HWTimer: HWTimerConfig{Frequency: Frequency(4 * physic.MegaHertz)},
		SysTick: SysTickConfig{Rate: Frequency(10 * physic.KiloHertz)},
		ADC: ADCConfig{
			SampleTime:   SampleTime(core.SampleTime7_5),
			PowerOnDelay: 10 * time.Millisecond,
			VRef:         ElectricPotential(3300 * physic.MilliVolt),
			PhaseDivider: 11,
			VBattDivider: 11,
		},
		Sim: SimConfig{
			Duration:            100 * time.Millisecond,
			CommutationInterval: 2 * time.Millisecond,
			Duty:                3200,
			TraceBaud:           115200,
			Battery:             ElectricPotential(12 * physic.Volt),
			CurrentSense:        ElectricPotential(250 * physic.MilliVolt),
		},
	}
}

// CoreClock returns the core clock as a physic quantity.
func (c *Config) CoreClock() physic.Frequency { return physic.Frequency(c.Clock.Core) }

// CommutationConfig returns the commutation engine setup.
func (c *Config) CommutationConfig() core.PWMConfig {
	return core.PWMConfig{
		Period:    c.PWM.Period,
		DeadTime:  c.PWM.DeadTime,
		DutyShift: c.PWM.DutyShift,
	}
}

// AcquisitionConfig returns the acquisition pipeline setup.
func (c *Config) AcquisitionConfig() core.AcquisitionConfig {
	return core.AcquisitionConfig{
		SampleTime:         core.SampleTime(c.ADC.SampleTime),
		PowerOnDelay:       c.ADC.PowerOnDelay,
		RestartAfterErrors: c.ADC.RestartAfterErrors,
	}
}

// MonitorConfig returns the phase monitor scaling.
func (c *Config) MonitorConfig() core.MonitorConfig {
	return core.MonitorConfig{
		VRef:         physic.ElectricPotential(c.ADC.VRef),
		PhaseDivider: c.ADC.PhaseDivider,
		VBattDivider: c.ADC.VBattDivider,
	}
}

// SysTickTicks converts a duration to whole soft-timer ticks.
func (c *Config) SysTickTicks(d time.Duration) uint32 {
	period := physic.Frequency(c.SysTick.Rate).Period()
	if period <= 0 {
		return 0
	}
	return uint32(d / period)
}

// ---- QUANTITIES ----

// Frequency is a physic.Frequency written as "64MHz".
type Frequency physic.Frequency

func (f *Frequency) UnmarshalYAML(n *yaml.Node) error {
	var v physic.Frequency
	if err := v.Set(n.Value); err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*f = Frequency(v)
	return nil
}

func (f Frequency) MarshalYAML() (interface{}, error) {
	return physic.Frequency(f).String(), nil
}

// ElectricPotential is a physic.ElectricPotential written as "3.3V".
type ElectricPotential physic.ElectricPotential

func (e *ElectricPotential) UnmarshalYAML(n *yaml.Node) error {
	var v physic.ElectricPotential
	if err := v.Set(n.Value); err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*e = ElectricPotential(v)
	return nil
}

func (e ElectricPotential) MarshalYAML() (interface{}, error) {
	return physic.ElectricPotential(e).String(), nil
}

// SampleTime is the converter sampling window written in cycles ("7.5").
type SampleTime core.SampleTime

var sampleTimeNames = []string{"1.5", "7.5", "13.5", "28.5", "41.5", "55.5", "71.5", "239.5"}

func (s *SampleTime) UnmarshalYAML(n *yaml.Node) error {
	for i, name := range sampleTimeNames {
		if n.Value == name {
			*s = SampleTime(i)
			return nil
		}
	}
	return fmt.Errorf("line %d: unsupported sample time %q cycles", n.Line, n.Value)
}

func (s SampleTime) MarshalYAML() (interface{}, error) {
	if int(s) >= len(sampleTimeNames) {
		return nil, fmt.Errorf("invalid sample time %d", s)
	}
	return sampleTimeNames[s], nil
}
