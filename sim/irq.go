// Package sim runs the controller core on simulated peripherals: a
// virtual clock steps the compare timer, the converters and the tick, and
// an interrupt controller delivers their handlers one at a time.
package sim

// Line is an interrupt request line.
type Line int

const (
	IRQCommutation Line = iota
	IRQCompare
	IRQDMA
	IRQSysTick
	numLines
)

var lineNames = [numLines]string{"commutation", "compare", "dma", "systick"}

func (l Line) String() string {
	if l < 0 || l >= numLines {
		return "?"
	}
	return lineNames[l]
}

// Controller delivers interrupts at a single priority level. A line
// raised while a handler runs stays pending and is serviced when the
// handler returns, in line order.
type Controller struct {
	handlers [numLines]func()
	pending  [numLines]bool
	counts   [numLines]int
	active   bool
}

// NewController creates a controller with no handlers attached.
func NewController() *Controller {
	return &Controller{}
}

// Attach installs the handler for a line.
func (c *Controller) Attach(l Line, h func()) {
	c.handlers[l] = h
}

// Raise marks a line pending and services every pending line unless a
// handler is already running.
func (c *Controller) Raise(l Line) {
	c.pending[l] = true
	if c.active {
		return
	}

	c.active = true
	for {
		next := c.nextPending()
		if next < 0 {
			break
		}
		c.pending[next] = false
		c.counts[next]++
		if h := c.handlers[next]; h != nil {
			h()
		}
	}
	c.active = false
}

func (c *Controller) nextPending() Line {
	for l := Line(0); l < numLines; l++ {
		if c.pending[l] {
			return l
		}
	}
	return -1
}

// Count returns how many times a line's handler was entered.
func (c *Controller) Count(l Line) int {
	return c.counts[l]
}
