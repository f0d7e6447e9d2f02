package throttle

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates the basic sliding-window threshold: five recorded
// attempts exhaust the window, Allow flips to false, and Reset restores
// access immediately.
// Scope: Unit Test
// Security: Brute-force mitigation (login throttling)
// Expected: Allow true for 5 records, false afterwards, true after Reset.
// Test Case ID: THR-01
func TestLimiter_ThresholdAndReset(t *testing.T) {
	l := NewLimiter(5, 15*time.Minute)

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow("a@x.com"), "attempt %d should be under threshold", i+1)
		require.True(t, l.Record("a@x.com"))
	}

	assert.False(t, l.Allow("a@x.com"))
	assert.False(t, l.Record("a@x.com"), "record must refuse once the window is full")

	l.Reset("a@x.com")
	assert.True(t, l.Allow("a@x.com"))
}

// TestPurpose: Validates that keys are case-normalized so casing variations
// of the same email share one counter.
// Scope: Unit Test
// Security: Throttle bypass prevention
// Expected: Mixed-case records count against the lower-cased key.
// Test Case ID: THR-02
func TestLimiter_KeyNormalization(t *testing.T) {
	l := NewLimiter(3, 15*time.Minute)

	require.True(t, l.Record("A@X.com"))
	require.True(t, l.Record(" a@x.COM "))
	require.True(t, l.Record("a@x.com"))

	assert.False(t, l.Allow("A@X.COM"))
}

// TestPurpose: Validates that the window slides: attempts older than the
// window stop counting toward the threshold.
// Scope: Unit Test
// Expected: After old attempts age out, the key is admitted again.
// Test Case ID: THR-03
func TestLimiter_SlidingWindowExpiry(t *testing.T) {
	l := NewLimiter(3, 15*time.Minute)

	current := time.Now()
	l.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		require.True(t, l.Record("a@x.com"))
	}
	require.False(t, l.Allow("a@x.com"))

	// 10 minutes later the window is still full.
	current = current.Add(10 * time.Minute)
	assert.False(t, l.Allow("a@x.com"))

	// 16 minutes after the first attempt all three have aged out.
	current = current.Add(6 * time.Minute)
	assert.True(t, l.Allow("a@x.com"))
	assert.True(t, l.Record("a@x.com"))
}

// TestPurpose: Validates that concurrent Record calls on one key never admit
// more than maxAttempts within a window (no check-then-act race).
// Scope: Unit Test (race)
// Security: Concurrency safety of the throttle counter
// Expected: Exactly maxAttempts of N concurrent records succeed.
// Test Case ID: THR-04
func TestLimiter_ConcurrentRecordNoOverAdmission(t *testing.T) {
	const workers = 64
	const maxAttempts = 5

	l := NewLimiter(maxAttempts, 15*time.Minute)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if l.Record("a@x.com") {
				admitted.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int64(maxAttempts), admitted.Load())
	assert.False(t, l.Allow("a@x.com"))
}

// TestPurpose: Validates that different keys do not contend or share state.
// Scope: Unit Test
// Expected: Exhausting one key leaves another untouched.
// Test Case ID: THR-05
func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLimiter(2, 15*time.Minute)

	require.True(t, l.Record("a@x.com"))
	require.True(t, l.Record("a@x.com"))
	require.False(t, l.Allow("a@x.com"))

	assert.True(t, l.Allow("b@x.com"))
	assert.True(t, l.Record("b@x.com"))
}

// TestPurpose: Validates the janitor path removes fully aged-out keys.
// Scope: Unit Test
// Expected: Cleanup drops keys whose attempts all fall outside the window.
// Test Case ID: THR-06
func TestLimiter_Cleanup(t *testing.T) {
	l := NewLimiter(3, 15*time.Minute)

	current := time.Now()
	l.now = func() time.Time { return current }

	require.True(t, l.Record("stale@x.com"))
	current = current.Add(20 * time.Minute)
	require.True(t, l.Record("fresh@x.com"))

	l.Cleanup()

	l.mu.RLock()
	_, staleKept := l.keys["stale@x.com"]
	_, freshKept := l.keys["fresh@x.com"]
	l.mu.RUnlock()

	assert.False(t, staleKept)
	assert.True(t, freshKept)
}
