package sim

import "errors"

// SysTick simulates the core tick timer: a 24-bit down-counter raising
// its interrupt every reload+1 core cycles.
type SysTick struct {
	irq *Controller

	reload  uint32
	running bool
	cycles  uint64 // Core cycles since the last tick
}

// NewSysTick creates a stopped tick timer delivering on irq.
func NewSysTick(irq *Controller) *SysTick {
	return &SysTick{irq: irq}
}

func (s *SysTick) Start(reload uint32) error {
	if reload == 0 || reload > 1<<24-1 {
		return errors.New("sim: sys tick reload out of range")
	}
	s.reload = reload
	s.running = true
	s.cycles = 0
	return nil
}

// Reload returns the programmed reload value.
func (s *SysTick) Reload() uint32 { return s.reload }

// Running reports whether the tick timer was started.
func (s *SysTick) Running() bool { return s.running }

// Advance counts core cycles, raising one interrupt per elapsed tick.
func (s *SysTick) Advance(cycles uint64) {
	if !s.running {
		return
	}
	s.cycles += cycles
	period := uint64(s.reload) + 1
	for s.cycles >= period {
		s.cycles -= period
		s.irq.Raise(IRQSysTick)
	}
}
