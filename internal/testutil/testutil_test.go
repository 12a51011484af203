package testutil

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickClock_AdvancesByStep(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewTickClock(start, time.Second)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start.Add(time.Second), clock.Now())
	assert.Equal(t, start.Add(2*time.Second), clock.Now())
}

func TestTickClock_Reset(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewTickClock(start, time.Second)

	clock.Now()
	clock.Now()
	clock.Reset(start)
	assert.Equal(t, start, clock.Now())
}

func TestTickClock_ConcurrentNowIsStrictlyIncreasing(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewTickClock(start, time.Millisecond)

	const goroutines = 8
	const calls = 100

	var wg sync.WaitGroup
	seen := make([][]time.Time, goroutines)
	for i := 0; i < goroutines; i++ {
		seen[i] = make([]time.Time, 0, calls)
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				seen[idx] = append(seen[idx], clock.Now())
			}
		}(i)
	}
	wg.Wait()

	unique := make(map[time.Time]bool)
	for _, ts := range seen {
		for _, instant := range ts {
			require.False(t, unique[instant], "duplicate instant %v", instant)
			unique[instant] = true
		}
	}
	assert.Len(t, unique, goroutines*calls)
}

func TestPNG_DecodesWithDeclaredDimensions(t *testing.T) {
	data := PNG(12, 34)

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Width)
	assert.Equal(t, 34, cfg.Height)
}

func TestPNG_DifferentDimensionsDifferentBytes(t *testing.T) {
	assert.NotEqual(t, PNG(4, 4), PNG(8, 8))
	assert.Equal(t, PNG(4, 4), PNG(4, 4))
}

func TestPNGBase64_RoundTrips(t *testing.T) {
	encoded := PNGBase64(4, 8)

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, PNG(4, 8), decoded)
}
