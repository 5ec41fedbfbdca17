package render

// Trace is a fixed-size ring buffer of chart samples. Old samples are
// overwritten once the buffer is full, which bounds chart memory per widget
// regardless of uptime.
type Trace struct {
	data  []float64
	start int
	count int
}

// NewTrace allocates a trace holding up to size samples.
func NewTrace(size int) *Trace {
	if size <= 0 {
		size = 1
	}
	return &Trace{data: make([]float64, size)}
}

// Put appends a sample, evicting the oldest one when full.
func (t *Trace) Put(v float64) {
	idx := (t.start + t.count) % len(t.data)
	t.data[idx] = v
	if t.count < len(t.data) {
		t.count++
	} else {
		t.start = (t.start + 1) % len(t.data)
	}
}

// Len reports the number of stored samples.
func (t *Trace) Len() int { return t.count }

// Cap reports the buffer capacity.
func (t *Trace) Cap() int { return len(t.data) }

// Each visits the samples from oldest to newest.
func (t *Trace) Each(fn func(i int, v float64)) {
	for i := 0; i < t.count; i++ {
		fn(i, t.data[(t.start+i)%len(t.data)])
	}
}

// Bounds reports the smallest and largest stored sample. The third result is
// false while the trace is empty.
func (t *Trace) Bounds() (float64, float64, bool) {
	if t.count == 0 {
		return 0, 0, false
	}
	min, max := t.data[t.start], t.data[t.start]
	t.Each(func(_ int, v float64) {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	})
	return min, max, true
}
