package fingerprint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonical_Deterministic(t *testing.T) {
	a := map[string]any{
		"canvas_hash":          "abc123",
		"audio_hash":           "def456",
		"hardware_concurrency": 8,
		"device_memory":        16,
		"timezone":             "America/New_York",
		"user_agent":           "Mozilla/5.0",
	}
	// Same signals, different insertion order.
	b := map[string]any{
		"user_agent":           "Mozilla/5.0",
		"timezone":             "America/New_York",
		"device_memory":        16,
		"hardware_concurrency": 8,
		"audio_hash":           "def456",
		"canvas_hash":          "abc123",
	}

	h1, err := Canonical(a)
	assert.NoError(t, err)
	h2, err := Canonical(b)
	assert.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // 256-bit hex

	// Repeated calls stay stable.
	h3, err := Canonical(a)
	assert.NoError(t, err)
	assert.Equal(t, h1, h3)
}

func TestCanonical_DistinctInputs(t *testing.T) {
	h1, err := Canonical(map[string]any{"canvas_hash": "a"})
	assert.NoError(t, err)
	h2, err := Canonical(map[string]any{"canvas_hash": "b"})
	assert.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestCanonical_EmptyRejected(t *testing.T) {
	_, err := Canonical(map[string]any{})
	assert.ErrorIs(t, err, ErrEmptySignals)

	_, err = Canonical(nil)
	assert.ErrorIs(t, err, ErrEmptySignals)
}

func TestCanonical_NumericForms(t *testing.T) {
	// JSON decoding yields float64; an integral float must hash like the int.
	h1, err := Canonical(map[string]any{"hardware_concurrency": 8})
	assert.NoError(t, err)
	h2, err := Canonical(map[string]any{"hardware_concurrency": float64(8)})
	assert.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestMemoryCache_TTLLazyExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	c := NewMemoryCache(time.Hour)
	c.now = func() time.Time { return now }

	assert.False(t, c.Lookup(ctx, "h1"), "fresh cache must miss")
	c.Store(ctx, "h1")
	assert.True(t, c.Lookup(ctx, "h1"))

	// Advance past the TTL: expired entry behaves like a miss and is evicted.
	now = now.Add(time.Hour + time.Minute)
	assert.False(t, c.Lookup(ctx, "h1"))
	c.mu.Lock()
	_, present := c.entries["h1"]
	c.mu.Unlock()
	assert.False(t, present, "expired entry must be physically evicted on touch")
}

func TestMemoryCache_RestoreIdempotent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour)
	c.Store(ctx, "h1")
	c.Store(ctx, "h1")
	assert.True(t, c.Lookup(ctx, "h1"))
}
