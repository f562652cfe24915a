package config

import (
	"fmt"

	"periph.io/x/conn/v3/physic"

	"bldc/core"
)

const (
	maxDutyShift     = core.MaxDutyShift
	maxSysTickReload = 1<<24 - 1
	maxPrescaler     = 1 << 16
)

// Validate checks configuration correctness.
// It does not mutate the configuration.
func Validate(cfg *Config) error {
	coreClock := physic.Frequency(cfg.Clock.Core)
	if coreClock <= 0 {
		return fmt.Errorf("clock.core must be positive")
	}

	// ---- PWM ----

	if cfg.PWM.Period < 2 {
		return fmt.Errorf("pwm.period %d too small", cfg.PWM.Period)
	}
	if cfg.PWM.DutyShift > maxDutyShift {
		return fmt.Errorf("pwm.duty_shift %d exceeds %d", cfg.PWM.DutyShift, maxDutyShift)
	}

	// ---- HARDWARE TIMER ----

	hw := physic.Frequency(cfg.HWTimer.Frequency)
	if hw <= 0 || hw > coreClock {
		return fmt.Errorf("hw_timer.frequency %s out of range (0, %s]", hw, coreClock)
	}
	if coreClock%hw != 0 {
		return fmt.Errorf("hw_timer.frequency %s does not divide clock.core %s", hw, coreClock)
	}
	if coreClock/hw > maxPrescaler {
		return fmt.Errorf("hw_timer.frequency %s needs a prescaler above %d", hw, maxPrescaler)
	}

	// ---- SYS TICK ----

	tick := physic.Frequency(cfg.SysTick.Rate)
	if tick <= 0 || tick > coreClock {
		return fmt.Errorf("sys_tick.rate %s out of range (0, %s]", tick, coreClock)
	}
	if reload := int64(coreClock/tick) - 1; reload < 1 || reload > maxSysTickReload {
		return fmt.Errorf("sys_tick.rate %s needs reload %d outside 24 bits", tick, reload)
	}

	// ---- ADC ----

	if cfg.ADC.VRef <= 0 {
		return fmt.Errorf("adc.vref must be positive")
	}
	if cfg.ADC.PowerOnDelay < 0 {
		return fmt.Errorf("adc.power_on_delay must not be negative")
	}

	// ---- SIMULATION ----

	if cfg.Sim.Duration < 0 || cfg.Sim.CommutationInterval < 0 {
		return fmt.Errorf("sim durations must not be negative")
	}
	if cfg.Sim.CommutationInterval > 0 && cfg.SysTickTicks(cfg.Sim.CommutationInterval) == 0 {
		return fmt.Errorf("sim.commutation_interval %s shorter than one tick", cfg.Sim.CommutationInterval)
	}
	if cfg.Sim.Battery < 0 || cfg.Sim.CurrentSense < 0 {
		return fmt.Errorf("sim analog inputs must not be negative")
	}

	return nil
}
