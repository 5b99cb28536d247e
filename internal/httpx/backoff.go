package httpx

import (
	"math/rand"
	"sync"
	"time"
)

var (
	jitterMu   sync.Mutex
	jitterRand = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// delay returns the pause before retry attempt (0-indexed): BaseDelay
// doubled per attempt and capped at MaxDelay, then spread by up to
// +/-Jitter. Only consulted when MaxRetries > 0; the default policy never
// sleeps because it never retries.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return spread(d, p.Jitter)
}

func spread(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 || d <= 0 {
		return d
	}
	if jitter > 1 {
		jitter = 1
	}
	jitterMu.Lock()
	f := jitterRand.Float64()
	jitterMu.Unlock()
	factor := 1 - jitter + 2*jitter*f
	return time.Duration(float64(d) * factor)
}
