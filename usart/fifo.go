// Package usart buffers trace output for the serial port: a byte FIFO
// filled by the main line and a port that drains it through the
// transmit-empty callback contract.
package usart

// NoByte is returned by GetByte when the FIFO is empty.
const NoByte = -1

// Fifo is a circular byte buffer with one producer and one consumer.
// One slot is kept free to tell full from empty.
type Fifo struct {
	buf   []byte
	read  int
	write int
	size  int

	dropped int
}

// NewFifo creates a FIFO holding up to capacity-1 bytes.
func NewFifo(capacity int) *Fifo {
	if capacity < 2 {
		capacity = 2
	}
	return &Fifo{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends as much of data as fits and returns the count written.
// The rest is counted as dropped.
func (f *Fifo) Write(data []byte) int {
	written := 0
	for _, b := range data {
		next := (f.write + 1) % f.size
		if next == f.read {
			break
		}
		f.buf[f.write] = b
		f.write = next
		written++
	}
	f.dropped += len(data) - written
	return written
}

// Read reads up to len(data) bytes.
func (f *Fifo) Read(data []byte) int {
	n := 0
	for i := range data {
		if f.read == f.write {
			break
		}
		data[i] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
		n++
	}
	return n
}

// GetByte pops one byte, or returns NoByte when empty. It has the shape
// of the transmit callback.
func (f *Fifo) GetByte() int32 {
	if f.read == f.write {
		return NoByte
	}
	b := f.buf[f.read]
	f.read = (f.read + 1) % f.size
	return int32(b)
}

// PutByte appends one byte. It has the shape of the receive callback and
// returns 0, or -1 when full.
func (f *Fifo) PutByte(b byte) int {
	if f.Write([]byte{b}) == 0 {
		return -1
	}
	return 0
}

// Available returns the number of bytes waiting to be read.
func (f *Fifo) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes that can still be written.
func (f *Fifo) Free() int {
	return f.size - f.Available() - 1
}

// Dropped returns the number of bytes rejected because the FIFO was full.
func (f *Fifo) Dropped() int {
	return f.dropped
}

func (f *Fifo) IsEmpty() bool {
	return f.read == f.write
}

// Reset clears the buffer and the drop counter.
func (f *Fifo) Reset() {
	f.read = 0
	f.write = 0
	f.dropped = 0
}
