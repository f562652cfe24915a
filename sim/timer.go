package sim

import (
	"bldc/core"
)

// CompareTimer simulates a free-running 16-bit counter with compare
// channels sharing one interrupt line.
type CompareTimer struct {
	irq *Controller

	prescaler uint16
	running   bool
	counter   uint16
	compare   [core.HardwareTimerSlots]uint16
	enabled   [core.HardwareTimerSlots]bool
	flags     [core.HardwareTimerSlots]bool
}

// NewCompareTimer creates a stopped timer delivering on irq.
func NewCompareTimer(irq *Controller) *CompareTimer {
	return &CompareTimer{irq: irq}
}

func (t *CompareTimer) Configure(prescaler uint16) error {
	*t = CompareTimer{irq: t.irq, prescaler: prescaler, running: true}
	return nil
}

func (t *CompareTimer) Counter() uint16 { return t.counter }

func (t *CompareTimer) SetCompare(ch int, v uint16) { t.compare[ch] = v }

func (t *CompareTimer) EnableCompareIRQ(ch int)       { t.enabled[ch] = true }
func (t *CompareTimer) DisableCompareIRQ(ch int)      { t.enabled[ch] = false }
func (t *CompareTimer) CompareIRQEnabled(ch int) bool { return t.enabled[ch] }
func (t *CompareTimer) CompareFlag(ch int) bool       { return t.flags[ch] }
func (t *CompareTimer) ClearCompareFlag(ch int)       { t.flags[ch] = false }

// Prescaler returns the programmed prescaler.
func (t *CompareTimer) Prescaler() uint16 { return t.prescaler }

// SetCounter moves the counter without raising matches.
func (t *CompareTimer) SetCounter(v uint16) { t.counter = v }

// Advance counts ticks one at a time. A match sets the channel flag and,
// if the channel's interrupt is enabled, raises the timer interrupt.
func (t *CompareTimer) Advance(ticks int) {
	if !t.running {
		return
	}
	for i := 0; i < ticks; i++ {
		t.counter++
		raise := false
		for ch, c := range t.compare {
			if c == t.counter {
				t.flags[ch] = true
				raise = raise || t.enabled[ch]
			}
		}
		if raise {
			t.irq.Raise(IRQCompare)
		}
	}
}
