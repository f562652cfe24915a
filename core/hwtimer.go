package core

import (
	"periph.io/x/conn/v3/physic"
)

const (
	// HardwareTimerSlots is the number of compare channels on the timer.
	HardwareTimerSlots = 4

	// MinTimerDelta is the shortest accepted compare interval. Anything
	// shorter recurs faster than the handler can be serviced.
	MinTimerDelta = 4
)

// HardwareTimerCallback runs in interrupt context on a compare match.
// deadline is the counter value that matched.
type HardwareTimerCallback func(slot int, deadline uint16)

type hwTimerEntry struct {
	next     uint16 // Counter value of the next compare match
	delta    uint16 // Reload step applied after each match
	callback HardwareTimerCallback
	gen      uint8 // Bumped on every Register of this slot
	oneShot  bool
}

// HardwareTimerScheduler multiplexes the compare channels of one
// free-running counter into independently re-armable periodic callbacks.
type HardwareTimerScheduler struct {
	hw      CompareTimer
	entries [HardwareTimerSlots]hwTimerEntry
}

// NewHardwareTimerScheduler creates a scheduler with every slot free.
func NewHardwareTimerScheduler(hw CompareTimer) *HardwareTimerScheduler {
	return &HardwareTimerScheduler{hw: hw}
}

// Init programs the timer to count at timerFreq from coreClock and
// clears every slot. The counter runs the full 16-bit range.
func (s *HardwareTimerScheduler) Init(coreClock, timerFreq physic.Frequency) error {
	if timerFreq <= 0 || coreClock < timerFreq || coreClock%timerFreq != 0 {
		return ErrInvalidTickRate
	}
	div := int64(coreClock / timerFreq)
	if div > 0x10000 {
		return ErrInvalidTickRate
	}

	state := disableInterrupts()
	for i := range s.entries {
		s.entries[i] = hwTimerEntry{}
	}
	restoreInterrupts(state)

	if err := s.hw.Configure(uint16(div - 1)); err != nil {
		return err
	}
	for ch := 0; ch < HardwareTimerSlots; ch++ {
		s.hw.DisableCompareIRQ(ch)
		s.hw.SetCompare(ch, 0)
	}
	return nil
}

// Register arms the first free channel to fire delta ticks from now and
// every delta ticks after that. It returns the slot id, which stays valid
// until Unregister. callback must not be nil.
func (s *HardwareTimerScheduler) Register(delta uint16, callback HardwareTimerCallback) (int, error) {
	return s.register(delta, callback, false)
}

// RegisterOneShot arms the first free channel to fire once, delta ticks
// from now. The slot is freed before the callback runs, so the callback
// may register again.
func (s *HardwareTimerScheduler) RegisterOneShot(delta uint16, callback HardwareTimerCallback) (int, error) {
	return s.register(delta, callback, true)
}

func (s *HardwareTimerScheduler) register(delta uint16, callback HardwareTimerCallback, oneShot bool) (int, error) {
	// A nil callback marks a free slot.
	if callback == nil {
		return -1, ErrNilCallback
	}
	if delta < MinTimerDelta {
		RecordEvent(EvtIntervalTooShort, 0, uint32(delta), 0)
		return -1, ErrIntervalTooShort
	}

	state := disableInterrupts()
	defer restoreInterrupts(state)

	now := s.hw.Counter()
	for i := range s.entries {
		e := &s.entries[i]
		if e.callback != nil {
			continue
		}
		e.callback = callback
		e.gen++
		e.oneShot = oneShot
		e.next = now + delta
		e.delta = delta
		s.hw.ClearCompareFlag(i)
		s.hw.SetCompare(i, e.next)
		s.hw.EnableCompareIRQ(i)
		return i, nil
	}

	RecordEvent(EvtCapacityExceeded, 0, HardwareTimerSlots, 0)
	return -1, ErrCapacityExceeded
}

// Unregister frees a slot and disables its interrupt. Invalid slot ids
// are ignored. A match already being serviced is not interrupted.
func (s *HardwareTimerScheduler) Unregister(slot int) {
	if slot < 0 || slot >= HardwareTimerSlots {
		return
	}
	state := disableInterrupts()
	s.entries[slot].callback = nil
	s.hw.DisableCompareIRQ(slot)
	restoreInterrupts(state)
}

// ModifyDelta changes the reload step of a slot. The compare value
// already armed is kept, so the new step applies from the next match on.
// Invalid slot ids are ignored; a valid slot rejects a delta below
// MinTimerDelta.
func (s *HardwareTimerScheduler) ModifyDelta(slot int, delta uint16) error {
	if slot < 0 || slot >= HardwareTimerSlots {
		return nil
	}
	if delta < MinTimerDelta {
		return ErrIntervalTooShort
	}
	state := disableInterrupts()
	s.entries[slot].delta = delta
	restoreInterrupts(state)
	return nil
}

// Deadline returns the counter value the slot will next match at and
// whether the slot is registered.
func (s *HardwareTimerScheduler) Deadline(slot int) (uint16, bool) {
	if slot < 0 || slot >= HardwareTimerSlots {
		return 0, false
	}
	state := disableInterrupts()
	defer restoreInterrupts(state)
	e := &s.entries[slot]
	return e.next, e.callback != nil
}

// Free returns the number of unregistered slots.
func (s *HardwareTimerScheduler) Free() int {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	n := 0
	for i := range s.entries {
		if s.entries[i].callback == nil {
			n++
		}
	}
	return n
}

// HandleInterrupt is the shared timer interrupt handler. It services
// every enabled channel whose match flag is pending.
func (s *HardwareTimerScheduler) HandleInterrupt() {
	for ch := 0; ch < HardwareTimerSlots; ch++ {
		if s.hw.CompareFlag(ch) && s.hw.CompareIRQEnabled(ch) {
			s.HandleCompare(ch)
		}
	}
}

// HandleCompare services one channel's compare match: run the callback,
// then move the compare value one step forward. The reload happens even
// without a callback so a reused channel keeps its phase.
func (s *HardwareTimerScheduler) HandleCompare(ch int) {
	if ch < 0 || ch >= HardwareTimerSlots {
		return
	}
	s.hw.ClearCompareFlag(ch)

	e := &s.entries[ch]
	deadline := e.next
	gen := e.gen
	if cb := e.callback; cb != nil {
		RecordEvent(EvtHWTimerFire, uint8(ch), uint32(deadline), 0)
		if e.oneShot {
			e.callback = nil
			s.hw.DisableCompareIRQ(ch)
		}
		cb(ch, deadline)
	} else {
		// Unregistered while the match was pending.
		RecordEvent(EvtHWTimerOrphan, uint8(ch), uint32(deadline), 0)
		s.hw.DisableCompareIRQ(ch)
	}

	if e.gen != gen {
		// The callback freed the slot and registered it again; the new
		// registration has armed its own compare value.
		return
	}
	e.next = deadline + e.delta
	s.hw.SetCompare(ch, e.next)
}
