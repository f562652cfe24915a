//go:build stm32f103

package main

import (
	"machine"
	"math"
	"runtime/interrupt"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"

	"bldc/core"
)

const (
	debug = false

	timerFrequency = 4 * physic.MegaHertz
	sysTickRate    = 10 * physic.KiloHertz

	// commutationDelta is 2ms at the timer frequency.
	commutationDelta = 8000

	// reportTicks is the monitor report period in sys ticks.
	reportTicks = 10000
)

var (
	indicator   *core.PinIndicator
	engine      *core.CommutationEngine
	hwTimers    *core.HardwareTimerScheduler
	softTimers  *core.SoftTimerScheduler
	acquisition *core.AcquisitionPipeline
	monitor     *core.PhaseMonitor

	reportDue atomic.Bool
)

func main() {
	initDebug(debug)
	enableClocks()

	coreClock := physic.Frequency(machine.CPUFrequency()) * physic.Hertz

	indicator = core.NewPinIndicator(
		newLEDPin("green", ledGreenPin),
		newLEDPin("red", ledRedPin),
		true,
	)
	engine = core.NewCommutationEngine(tim1Bridge{}, indicator)
	hwTimers = core.NewHardwareTimerScheduler(tim2Compare{})
	softTimers = core.NewSoftTimerScheduler()
	acquisition = core.NewAcquisitionPipeline(dualADC{}, dmaADC{}, indicator)
	monitor = core.NewPhaseMonitor(core.DefaultMonitorConfig())

	check("pwm", engine.Init(core.DefaultPWMConfig()))
	check("hw timer", hwTimers.Init(coreClock, timerFrequency))

	interrupt.New(irqTIM1TrgCom, func(interrupt.Interrupt) {
		engine.HandleCommutation()
	}).Enable()
	interrupt.New(irqTIM2, func(interrupt.Interrupt) {
		hwTimers.HandleInterrupt()
	}).Enable()
	interrupt.New(irqDMA1Channel1, func(interrupt.Interrupt) {
		acquisition.HandleInterrupt()
	}).Enable()

	check("sys tick", softTimers.Start(coreSysTick{}, coreClock, sysTickRate))
	check("adc", acquisition.Init(core.DefaultAcquisitionConfig(), monitor.Consume, monitor.Consume))

	// Ten percent positive duty, commutating at a fixed rate.
	engine.SetDuty(math.MaxInt16 / 10)
	_, err := hwTimers.Register(commutationDelta, func(int, uint16) {
		engine.TriggerCommutation()
	})
	check("commutation timer", err)

	if softTimers.Register(reportTicks, func(int) { reportDue.Store(true) }) == core.NoSlot {
		check("report timer", core.ErrCapacityExceeded)
	}

	for {
		if reportDue.Swap(false) {
			report()
		}
		time.Sleep(time.Millisecond)
	}
}

func report() {
	if err := monitor.Update(drivers.Voltage); err != nil {
		core.DebugPrintln("monitor: " + err.Error())
		return
	}
	core.DebugPrintln("U=" + monitor.Phase(core.PhaseU).String() +
		" V=" + monitor.Phase(core.PhaseV).String() +
		" W=" + monitor.Phase(core.PhaseW).String() +
		" bus=" + monitor.BusVoltage().String())
	if acquisition.Err() != nil {
		core.DebugPrintln("adc: " + acquisition.Err().Error())
	}
}

// check stops the bridge and blinks red forever on a bring-up failure.
func check(what string, err error) {
	if err == nil {
		return
	}
	engine.ForceAllFloating()
	core.DebugPrintln(what + ": " + err.Error())
	core.DumpEventRing()
	for {
		indicator.Toggle(core.LEDRed)
		time.Sleep(250 * time.Millisecond)
	}
}
