//go:build stm32f103

package main

import "errors"

// coreSysTick is the Cortex-M tick timer feeding the soft timers.
type coreSysTick struct{}

func (coreSysTick) Start(reload uint32) error {
	if reload == 0 || reload > 1<<24-1 {
		return errors.New("sys tick reload out of range")
	}
	sysTick.CTRL.Set(0)
	sysTick.LOAD.Set(reload)
	sysTick.VAL.Set(0)
	sysTick.CTRL.Set(sysTickCTRL_CLKSOURCE | sysTickCTRL_TICKINT | sysTickCTRL_ENABLE)
	return nil
}

//export SysTick_Handler
func sysTickHandler() {
	softTimers.Tick()
}
