package stream

import "sync"

const defaultMaxTotalStreams = 1000

// streamLimiter caps concurrent SSE connections, both per client IP and
// across the whole process. Counts are adjusted under a single mutex; the
// hot path is two map operations so contention is negligible next to the
// lifetime of a stream.
type streamLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newStreamLimiter(maxPerIP int) *streamLimiter {
	return &streamLimiter{
		perIP:    make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: defaultMaxTotalStreams,
	}
}

// acquire reserves a connection slot for ip. It returns false when either
// the per-IP or the global cap is already exhausted, leaving counts
// untouched.
func (l *streamLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.maxTotal || l.perIP[ip] >= l.maxPerIP {
		return false
	}
	l.perIP[ip]++
	l.total++
	return true
}

// release returns a previously acquired slot. IPs with no remaining
// connections are dropped from the map so it cannot grow unbounded.
func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total--
	if l.perIP[ip]--; l.perIP[ip] <= 0 {
		delete(l.perIP, ip)
	}
}

func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}
