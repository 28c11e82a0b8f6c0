package market

// History is a fixed-size ring of moving-average records. Pushing into a
// full history evicts the oldest record.
type History struct {
	buf   []MovingAverage
	start int
	n     int
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{buf: make([]MovingAverage, size)}
}

func (h *History) Push(ma MovingAverage) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = ma
		h.n++
		return
	}
	h.buf[h.start] = ma
	h.start = (h.start + 1) % len(h.buf)
}

func (h *History) Len() int   { return h.n }
func (h *History) Full() bool { return h.n == len(h.buf) }

// Records returns the history oldest first.
func (h *History) Records() []MovingAverage {
	out := make([]MovingAverage, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}
