// Copyright 2026 The FieldOps Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package throttle holds the in-memory login abuse controls: a per-key
// sliding-window attempt limiter and a burst heuristic. State lives
// server-side in this process; keys are case-normalized so casing cannot
// bypass either control.
package throttle

import (
	"strings"
	"sync"
	"time"
)

// NormalizeKey canonicalizes a throttle key. Emails are the usual key, so
// trim and lower-case.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// entry tracks attempt timestamps for a single key. Each entry carries its
// own mutex: counting on one key never contends with another key.
type entry struct {
	mu       sync.Mutex
	attempts []time.Time
}

// prune drops attempts older than the window. Caller holds e.mu.
func (e *entry) prune(cutoff time.Time) {
	kept := e.attempts[:0]
	for _, at := range e.attempts {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	e.attempts = kept
}

// Limiter counts login attempts per key within a sliding window.
// Allow is a read-only check; Record is the authoritative, atomic
// check-then-append, so two concurrent attempts on one key can never both
// slip under the threshold.
type Limiter struct {
	mu          sync.RWMutex
	keys        map[string]*entry
	maxAttempts int
	window      time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewLimiter creates a limiter allowing maxAttempts per key within window.
func NewLimiter(maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{
		keys:        make(map[string]*entry),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

func (l *Limiter) get(key string) *entry {
	l.mu.RLock()
	e, ok := l.keys[key]
	l.mu.RUnlock()
	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok = l.keys[key]; ok {
		return e
	}
	e = &entry{}
	l.keys[key] = e
	return e
}

// Allow reports whether the key is still under the attempt threshold.
// It does not count anything.
func (l *Limiter) Allow(key string) bool {
	e := l.get(NormalizeKey(key))
	now := l.now()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.prune(now.Add(-l.window))
	return len(e.attempts) < l.maxAttempts
}

// Record counts an attempt against the key. The check and the append run
// under the key's mutex; the return value is the authoritative admission
// decision. A false return means the window was already full and nothing
// was recorded.
func (l *Limiter) Record(key string) bool {
	e := l.get(NormalizeKey(key))
	now := l.now()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.prune(now.Add(-l.window))
	if len(e.attempts) >= l.maxAttempts {
		return false
	}
	e.attempts = append(e.attempts, now)
	return true
}

// Reset clears attempt history for the key. Called on successful
// authentication so a legitimate user is not penalized by their own prior
// failures.
func (l *Limiter) Reset(key string) {
	k := NormalizeKey(key)
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, k)
}

// Cleanup drops keys whose entire history has aged out of the window.
// Run it periodically from the owning process to bound memory on drive-by
// keys.
func (l *Limiter) Cleanup() {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.keys {
		e.mu.Lock()
		e.prune(cutoff)
		empty := len(e.attempts) == 0
		e.mu.Unlock()
		if empty {
			delete(l.keys, key)
		}
	}
}

// StartJanitor runs Cleanup on the given interval until stop is closed.
func (l *Limiter) StartJanitor(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}
