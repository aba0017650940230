package middleware

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
	"time"
)

type Backoff interface {
	// Next returns how long to sleep before retrying attempt+1.
	// attempt starts at 1 for the first retry (i.e. after the first failed request).
	Next(attempt int) time.Duration
}

type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64 // 0..1
}

var (
	jitterMu  sync.Mutex
	jitterRng = rand.New(rand.NewPCG(seed64(), seed64()))
)

func seed64() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err == nil {
		return binary.LittleEndian.Uint64(b[:])
	}
	// Fallback: time-based seed (still better than deterministic).
	return uint64(time.Now().UnixNano())
}

func jitterFloat64() float64 {
	jitterMu.Lock()
	defer jitterMu.Unlock()
	return jitterRng.Float64()
}

func DefaultBackoff() Backoff {
	return ExponentialBackoff{
		Base:   200 * time.Millisecond,
		Max:    3 * time.Second,
		Jitter: 0.2,
	}
}

func (b ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := b.Base
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	max := b.Max
	if max <= 0 {
		max = 3 * time.Second
	}

	// base * 2^(attempt-1)
	d := base
	for i := 1; i < attempt; i++ {
		if d >= max/2 {
			d = max
			break
		}
		d *= 2
	}
	if d > max {
		d = max
	}

	j := b.Jitter
	if j <= 0 {
		return d
	}
	if j > 1 {
		j = 1
	}

	// +/- jitter%
	f := 1 + (jitterFloat64()*2-1)*j
	if f < 0 {
		f = 0
	}
	return time.Duration(float64(d) * f)
}
