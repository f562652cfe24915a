package core

// CompareTimer is a free-running 16-bit up-counter with independent
// compare channels and one interrupt source per channel (TIM2 on the
// STM32F103 board). Channel numbers are 0-based.
type CompareTimer interface {
	// Configure resets the timer, sets the prescaler, freezes all compare
	// outputs, disables every compare interrupt and starts counting.
	Configure(prescaler uint16) error

	// Counter returns the current counter value.
	Counter() uint16

	// SetCompare loads the compare register of a channel. Compare preload
	// is off, the new value is live immediately.
	SetCompare(ch int, value uint16)

	EnableCompareIRQ(ch int)
	DisableCompareIRQ(ch int)
	CompareIRQEnabled(ch int) bool

	// CompareFlag reports whether the channel's match flag is pending.
	CompareFlag(ch int) bool
	ClearCompareFlag(ch int)
}
