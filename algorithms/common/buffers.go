package common

// CircularBuffer keeps the most recent size samples of a stream. Writes
// never fail: once full, the oldest samples are overwritten. It is used as
// the analysis ring in front of the spectral analyzer, which needs a frame
// several times longer than one audio buffer.
type CircularBuffer struct {
	buffer   []float64
	size     int
	writePos int
	count    int
}

// NewCircularBuffer creates a new circular buffer
func NewCircularBuffer(size int) *CircularBuffer {
	return &CircularBuffer{
		buffer: make([]float64, size),
		size:   size,
	}
}

// Write appends data, overwriting the oldest samples when full
func (cb *CircularBuffer) Write(data []float64) int {
	written := len(data)
	// only the tail can survive a write longer than the ring
	if len(data) > cb.size {
		data = data[len(data)-cb.size:]
	}
	for len(data) > 0 {
		n := copy(cb.buffer[cb.writePos:], data)
		data = data[n:]
		cb.writePos = (cb.writePos + n) % cb.size
		cb.count = min(cb.size, cb.count+n)
	}
	return written
}

// Snapshot copies the buffered samples into dst in chronological order,
// oldest first, and returns the number copied. Nothing is consumed.
func (cb *CircularBuffer) Snapshot(dst []float64) int {
	n := min(len(dst), cb.count)
	// oldest sample of the last n written
	start := (cb.writePos - n + cb.size) % cb.size
	first := copy(dst[:n], cb.buffer[start:])
	if first < n {
		copy(dst[first:n], cb.buffer[:n-first])
	}
	return n
}

// Available returns number of samples currently held
func (cb *CircularBuffer) Available() int {
	return cb.count
}

// Size returns the capacity
func (cb *CircularBuffer) Size() int {
	return cb.size
}

// Clear empties the buffer
func (cb *CircularBuffer) Clear() {
	cb.writePos = 0
	cb.count = 0
	clear(cb.buffer)
}

// IsFull returns true if buffer is full
func (cb *CircularBuffer) IsFull() bool {
	return cb.count == cb.size
}

// DelayLine is a fixed-capacity sample delay. Both the tempo delay effect and
// the Karplus-Strong pluck voice run on one.
type DelayLine struct {
	buffer   []float64
	size     int
	writePos int
}

// NewDelayLine creates a new delay line
func NewDelayLine(maxDelaySamples int) *DelayLine {
	return &DelayLine{
		buffer: make([]float64, max(maxDelaySamples, 1)),
		size:   max(maxDelaySamples, 1),
	}
}

// Capacity returns the longest delay the line can produce
func (dl *DelayLine) Capacity() int {
	return dl.size
}

// Process writes input and returns the sample written delaySamples calls
// ago. Delays are clamped to [1, Capacity].
func (dl *DelayLine) Process(input float64, delaySamples int) float64 {
	output := dl.Read(delaySamples)
	dl.Write(input)
	return output
}

// Read returns the sample written delaySamples writes ago without advancing
func (dl *DelayLine) Read(delaySamples int) float64 {
	delaySamples = max(1, min(delaySamples, dl.size))
	return dl.buffer[(dl.writePos-delaySamples+dl.size)%dl.size]
}

// ReadInterpolated reads a fractional delay with linear interpolation
func (dl *DelayLine) ReadInterpolated(delaySamples float64) float64 {
	delaySamples = max(1, min(delaySamples, float64(dl.size-1)))
	intDelay := int(delaySamples)
	frac := delaySamples - float64(intDelay)
	return Lerp(dl.Read(intDelay), dl.Read(intDelay+1), frac)
}

// Write appends one sample
func (dl *DelayLine) Write(input float64) {
	dl.buffer[dl.writePos] = input
	dl.writePos = (dl.writePos + 1) % dl.size
}

// Clear empties the delay line
func (dl *DelayLine) Clear() {
	clear(dl.buffer)
	dl.writePos = 0
}
