package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratioSampler lets n of every d events through. A zero ratio lets everything through.
type ratioSampler struct {
	ratio   atomic.Uint64 // n<<32 | d
	counter atomic.Uint64
}

func newRatioSampler(n, d int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(n, d)
	return s
}

// Set replaces the ratio and restarts the window.
func (s *ratioSampler) Set(n, d int) {
	if n <= 0 || d <= 0 {
		n, d = 0, 0
	}
	if n > d {
		n = d
	}
	s.ratio.Store(uint64(uint32(n))<<32 | uint64(uint32(d)))
	s.counter.Store(0)
}

// Allow reports whether the next event passes.
func (s *ratioSampler) Allow() bool {
	r := s.ratio.Load()
	n, d := r>>32, r&0xffffffff
	if n == 0 || d == 0 {
		return true
	}
	i := s.counter.Add(1) - 1
	return i%d < n
}

// parseRatioSpec reads "n/d", "d" (meaning 1/d), or "all"/"off" (no sampling).
func parseRatioSpec(spec string) (int, int) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	switch spec {
	case "", "all", "off", "none":
		return 0, 0
	}
	num, den, ok := strings.Cut(spec, "/")
	if !ok {
		num, den = "1", spec
	}
	n, err1 := strconv.Atoi(strings.TrimSpace(num))
	d, err2 := strconv.Atoi(strings.TrimSpace(den))
	if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
		return 0, 0
	}
	return n, d
}
