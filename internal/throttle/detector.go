package throttle

import (
	"sync"
	"time"
)

// Detector flags keys showing abnormal attempt bursts. It keeps its own
// attempt history, independent of the Limiter's counting: the limiter is
// the authoritative gate, the detector is a heuristic whose positive
// result means "escalate friction", never "deny".
type Detector struct {
	mu        sync.RWMutex
	keys      map[string]*entry
	threshold int
	window    time.Duration

	now func() time.Time
}

// NewDetector creates a detector that flags a key once more than
// threshold attempts land within window.
func NewDetector(threshold int, window time.Duration) *Detector {
	return &Detector{
		keys:      make(map[string]*entry),
		threshold: threshold,
		window:    window,
		now:       time.Now,
	}
}

func (d *Detector) get(key string) *entry {
	d.mu.RLock()
	e, ok := d.keys[key]
	d.mu.RUnlock()
	if ok {
		return e
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok = d.keys[key]; ok {
		return e
	}
	e = &entry{}
	d.keys[key] = e
	return e
}

// Observe records an attempt for the key.
func (d *Detector) Observe(key string) {
	e := d.get(NormalizeKey(key))
	now := d.now()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.prune(now.Add(-d.window))
	e.attempts = append(e.attempts, now)
}

// IsSuspicious reports whether more than the threshold of attempts for
// the key occurred within the burst window.
func (d *Detector) IsSuspicious(key string) bool {
	e := d.get(NormalizeKey(key))
	now := d.now()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.prune(now.Add(-d.window))
	return len(e.attempts) > d.threshold
}

// Reset clears burst history for the key.
func (d *Detector) Reset(key string) {
	k := NormalizeKey(key)
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, k)
}

// Cleanup drops keys with no attempts left inside the window.
func (d *Detector) Cleanup() {
	cutoff := d.now().Add(-d.window)

	d.mu.Lock()
	defer d.mu.Unlock()
	for key, e := range d.keys {
		e.mu.Lock()
		e.prune(cutoff)
		empty := len(e.attempts) == 0
		e.mu.Unlock()
		if empty {
			delete(d.keys, key)
		}
	}
}

// StartJanitor runs Cleanup on the given interval until stop is closed.
func (d *Detector) StartJanitor(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}
