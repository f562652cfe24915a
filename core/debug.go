package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Event captures an interrupt-context event for post-mortem analysis
type Event struct {
	Type   uint8  // Event type code
	Slot   uint8  // Step, timer slot or LED, depending on Type
	Clock  uint32 // Soft-timer timestamp at event
	Value1 uint32 // Context-dependent value
	Value2 uint32 // Context-dependent value
}

// Event type codes
const (
	EvtCommutation      = 1  // Active step applied (Slot=step, Value1=duty)
	EvtIdleGap          = 2  // Floating gap between two active steps
	EvtForcedFloating   = 3  // ForceAllFloating
	EvtForcedLowSide    = 4  // ForceAllLowSide
	EvtDMAHalf          = 5  // Half-transfer dispatched
	EvtDMAComplete      = 6  // Full-transfer dispatched
	EvtDMAError         = 7  // Transfer error (Value1=total errors)
	EvtDMARestart       = 8  // DMA channel restarted after repeated errors
	EvtHWTimerFire      = 9  // Compare match (Slot=channel, Value1=deadline)
	EvtHWTimerOrphan    = 10 // Compare match with no callback, IRQ disabled
	EvtCapacityExceeded = 11 // Registration rejected (Slot=0 hw, 1 soft)
	EvtIntervalTooShort = 12 // Hardware timer registration below minimum
	EvtSoftTimerFire    = 13 // Soft timer fired (Slot=slot)
)

// EventRingSize is the number of events kept for post-mortem.
const EventRingSize = 32

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Event ring buffer (non-blocking, for post-mortem)
	eventRing     [EventRingSize]Event
	eventRingHead uint8
	eventsEnabled bool = true

	// eventClock stamps events; installed by whoever owns the tick.
	eventClock func() uint32

	// Async debug output channel, and the worker's exit signal
	debugChan chan string
	debugDone chan struct{}
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, semihosting, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// SetEventClock installs the timestamp source for recorded events.
func SetEventClock(clock func() uint32) {
	eventClock = clock
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	debugDone = make(chan struct{})
	go debugOutputWorker(debugChan, debugDone)
}

// StopAsyncDebug writes out the queued messages and stops the worker.
// Later DebugAsync calls are dropped until InitAsyncDebug runs again.
func StopAsyncDebug() {
	if debugChan == nil {
		return
	}
	close(debugChan)
	<-debugDone
	debugChan = nil
}

// debugOutputWorker runs in background, drains debug channel
func debugOutputWorker(msgs <-chan string, done chan<- struct{}) {
	defer close(done)
	for msg := range msgs {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	if debugEnabled && debugChan != nil {
		select {
		case debugChan <- msg:
		default:
		}
	}
}

// RecordEvent captures an event in the ring buffer. Safe to call from
// interrupt handlers: no allocation, no blocking.
func RecordEvent(eventType, slot uint8, value1, value2 uint32) {
	if !eventsEnabled {
		return
	}
	var clock uint32
	if eventClock != nil {
		clock = eventClock()
	}
	state := disableInterrupts()
	idx := eventRingHead
	eventRing[idx] = Event{
		Type:   eventType,
		Slot:   slot,
		Clock:  clock,
		Value1: value1,
		Value2: value2,
	}
	eventRingHead = (idx + 1) % EventRingSize
	restoreInterrupts(state)
}

// Events returns the recorded events, oldest first.
func Events() []Event {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	out := make([]Event, 0, EventRingSize)
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.Type == 0 {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// EventName returns a short label for an event type code.
func EventName(eventType uint8) string {
	switch eventType {
	case EvtCommutation:
		return "COMM"
	case EvtIdleGap:
		return "IDLE_GAP"
	case EvtForcedFloating:
		return "FLOAT"
	case EvtForcedLowSide:
		return "LOW_SIDE"
	case EvtDMAHalf:
		return "DMA_HALF"
	case EvtDMAComplete:
		return "DMA_FULL"
	case EvtDMAError:
		return "DMA_ERR!"
	case EvtDMARestart:
		return "DMA_RESTART"
	case EvtHWTimerFire:
		return "HWT_FIRE"
	case EvtHWTimerOrphan:
		return "HWT_ORPHAN"
	case EvtCapacityExceeded:
		return "NO_SLOT!"
	case EvtIntervalTooShort:
		return "TOO_SHORT!"
	case EvtSoftTimerFire:
		return "STT_FIRE"
	default:
		return "UNKNOWN"
	}
}

// DumpEventRing outputs the event ring buffer (call on shutdown/error)
func DumpEventRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[EVENT] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[EVENT] " + EventName(evt.Type) +
			" slot=" + itoa(int(evt.Slot)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[EVENT] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	state := disableInterrupts()
	for i := range eventRing {
		eventRing[i] = Event{}
	}
	eventRingHead = 0
	restoreInterrupts(state)
}
