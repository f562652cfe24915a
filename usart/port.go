package usart

import (
	"io"
	"sync"
)

// HandleByteFunc receives one byte from the receive interrupt.
type HandleByteFunc func(b byte) int

// GetByteFunc supplies the next byte to transmit, or a negative value
// when there is nothing left.
type GetByteFunc func() int32

// Port drives a byte stream with the get and handle callback pair of a USART
// driver. Sending is enabled by the producer and disabled by the port
// itself once GetByte runs dry.
type Port struct {
	w       io.Writer
	handle  HandleByteFunc
	get     GetByteFunc
	sending bool

	scratch [64]byte
}

// NewPort creates a port transmitting to w. Either callback may be nil.
func NewPort(w io.Writer, handle HandleByteFunc, get GetByteFunc) *Port {
	return &Port{w: w, handle: handle, get: get}
}

// EnableSend arms the transmitter; the next Flush drains GetByte.
func (p *Port) EnableSend() { p.sending = true }

// DisableSend stops transmission after the current byte.
func (p *Port) DisableSend() { p.sending = false }

// Sending reports whether the transmitter is armed.
func (p *Port) Sending() bool { return p.sending }

// Receive feeds incoming bytes to the receive callback.
func (p *Port) Receive(data []byte) {
	if p.handle == nil {
		return
	}
	for _, b := range data {
		p.handle(b)
	}
}

// Flush services the transmit-empty condition until GetByte has nothing
// more, then disables sending. Bytes are written in batches.
func (p *Port) Flush() (int, error) {
	total := 0
	for p.sending && p.get != nil {
		n := 0
		for n < len(p.scratch) {
			v := p.get()
			if v < 0 {
				p.sending = false
				break
			}
			p.scratch[n] = byte(v)
			n++
		}
		if n == 0 {
			break
		}
		written, err := p.w.Write(p.scratch[:n])
		total += written
		if err != nil {
			p.sending = false
			return total, err
		}
	}
	return total, nil
}

// Tracer queues text lines into a FIFO and arms a port, as a debug writer.
// It is safe for use by several goroutines.
type Tracer struct {
	mu   sync.Mutex
	fifo *Fifo
	port *Port
}

// NewTracer creates a tracer writing to w through a FIFO of the given
// capacity.
func NewTracer(w io.Writer, capacity int) *Tracer {
	f := NewFifo(capacity)
	return &Tracer{
		fifo: f,
		port: NewPort(w, nil, f.GetByte),
	}
}

// Println queues s followed by a newline. It never blocks; text that
// does not fit is dropped.
func (t *Tracer) Println(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fifo.Write([]byte(s))
	t.fifo.Write([]byte{'\n'})
	t.port.EnableSend()
}

// Flush drains the queued text to the writer.
func (t *Tracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.port.Flush()
	return err
}

// Dropped returns the number of bytes lost to a full FIFO.
func (t *Tracer) Dropped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fifo.Dropped()
}
