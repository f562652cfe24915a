package core

import (
	"sync/atomic"

	"periph.io/x/conn/v3/physic"
)

const (
	// SoftTimerSlots is the number of soft timers available.
	SoftTimerSlots = 5

	// NoSlot is returned by SoftTimerScheduler.Register when every slot
	// is taken.
	NoSlot = -1

	// maxSysTickReload is the widest value the 24-bit reload register holds.
	maxSysTickReload = 1<<24 - 1
)

// SoftTimerCallback runs in tick interrupt context when a soft timer expires.
type SoftTimerCallback func(slot int)

// TickSource is the periodic tick interrupt feeding the soft timers
// (the Cortex-M SysTick on the STM32F103 board).
type TickSource interface {
	// Start programs the reload value and enables the tick interrupt.
	Start(reload uint32) error
}

type softTimer struct {
	callback SoftTimerCallback
	start    uint32 // Tick count the current period started at
	period   uint32 // Ticks that must strictly elapse before firing
	oneShot  bool
}

// SoftTimerScheduler is a coarse timer ladder driven by a fixed-rate tick.
type SoftTimerScheduler struct {
	counter atomic.Uint32
	timers  [SoftTimerSlots]softTimer
}

// NewSoftTimerScheduler creates a scheduler with every slot free and the
// tick counter at zero.
func NewSoftTimerScheduler() *SoftTimerScheduler {
	return &SoftTimerScheduler{}
}

// Start programs src to tick at tickRate from coreClock.
func (s *SoftTimerScheduler) Start(src TickSource, coreClock, tickRate physic.Frequency) error {
	if tickRate <= 0 || coreClock < tickRate {
		return ErrInvalidTickRate
	}
	reload := int64(coreClock/tickRate) - 1
	if reload < 1 || reload > maxSysTickReload {
		return ErrInvalidTickRate
	}
	return src.Start(uint32(reload))
}

// Timestamp returns the current tick count. Use it with Elapsed for
// busy-wait style polling.
func (s *SoftTimerScheduler) Timestamp() uint32 {
	return s.counter.Load()
}

// SetTimestamp sets the tick count (for testing/hardware integration).
func (s *SoftTimerScheduler) SetTimestamp(ticks uint32) {
	s.counter.Store(ticks)
}

// Elapsed reports whether strictly more than threshold ticks have passed
// since timestamp. Wraparound of the tick counter is handled.
func (s *SoftTimerScheduler) Elapsed(timestamp, threshold uint32) bool {
	return s.counter.Load()-timestamp > threshold
}

// Register claims the first free slot for a timer firing every period
// ticks, counted from now. It returns NoSlot when none is free or
// callback is nil.
func (s *SoftTimerScheduler) Register(period uint32, callback SoftTimerCallback) int {
	return s.register(period, callback, false)
}

// RegisterOneShot claims a slot for a timer firing once, after period
// ticks. The slot is free again when the callback runs.
func (s *SoftTimerScheduler) RegisterOneShot(period uint32, callback SoftTimerCallback) int {
	return s.register(period, callback, true)
}

func (s *SoftTimerScheduler) register(period uint32, callback SoftTimerCallback, oneShot bool) int {
	if callback == nil {
		return NoSlot
	}
	state := disableInterrupts()
	defer restoreInterrupts(state)

	now := s.counter.Load()
	for i := range s.timers {
		t := &s.timers[i]
		if t.callback != nil {
			continue
		}
		t.callback = callback
		t.start = now
		t.period = period
		t.oneShot = oneShot
		return i
	}

	RecordEvent(EvtCapacityExceeded, 1, SoftTimerSlots, 0)
	return NoSlot
}

// Unregister frees a slot. Invalid slot ids are ignored.
func (s *SoftTimerScheduler) Unregister(slot int) {
	if slot < 0 || slot >= SoftTimerSlots {
		return
	}
	state := disableInterrupts()
	s.timers[slot] = softTimer{}
	restoreInterrupts(state)
}

// UpdatePeriod sets a new period and restarts the slot's period from
// now. Invalid slot ids are ignored.
func (s *SoftTimerScheduler) UpdatePeriod(slot int, period uint32) {
	if slot < 0 || slot >= SoftTimerSlots {
		return
	}
	state := disableInterrupts()
	s.timers[slot].start = s.counter.Load()
	s.timers[slot].period = period
	restoreInterrupts(state)
}

// Free returns the number of unregistered slots.
func (s *SoftTimerScheduler) Free() int {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	n := 0
	for i := range s.timers {
		if s.timers[i].callback == nil {
			n++
		}
	}
	return n
}

// Tick is the tick interrupt handler. A timer fires once strictly more
// than its period has elapsed and restarts its period at the current
// tick; time spent in callbacks is not compensated.
func (s *SoftTimerScheduler) Tick() {
	now := s.counter.Add(1)

	for i := range s.timers {
		t := &s.timers[i]
		cb := t.callback
		if cb == nil || now-t.start <= t.period {
			continue
		}
		t.start = now
		if t.oneShot {
			t.callback = nil
		}
		RecordEvent(EvtSoftTimerFire, uint8(i), t.period, 0)
		cb(i)
	}
}
