package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolutionCacheSecurity(t *testing.T) {
	c := NewResolutionCache(time.Minute)

	_, ok := c.GetSecurityID("AAPL")
	assert.False(t, ok)

	c.SetSecurityID("AAPL", 42)
	id, ok := c.GetSecurityID("AAPL")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	c.InvalidateSecurity("AAPL")
	_, ok = c.GetSecurityID("AAPL")
	assert.False(t, ok)
}

func TestResolutionCacheTime(t *testing.T) {
	c := NewResolutionCache(time.Minute)
	ts := time.Date(2025, 1, 2, 14, 30, 0, 0, time.UTC)

	c.SetTimeID(ts, 7)

	// same instant in a different zone must hit the same entry
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("should have loaded timezone America/New_York: %v", err)
	}
	id, ok := c.GetTimeID(ts.In(ny))
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestResolutionCacheTTLExpiry(t *testing.T) {
	c := NewResolutionCache(time.Nanosecond)

	c.SetSecurityID("TSLA", 9)
	time.Sleep(time.Millisecond)

	_, ok := c.GetSecurityID("TSLA")
	assert.False(t, ok, "entry older than TTL must miss")
}

func TestResolutionCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewResolutionCache(0)

	c.SetSecurityID("MSFT", 3)
	id, ok := c.GetSecurityID("MSFT")
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)
}

func TestResolutionCacheConcurrentAccess(t *testing.T) {
	c := NewResolutionCache(time.Minute)
	ts := time.Date(2025, 1, 2, 14, 30, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.SetSecurityID("SPY", 1)
			c.GetSecurityID("SPY")
		}()
		go func() {
			defer wg.Done()
			c.SetTimeID(ts, 2)
			c.GetTimeID(ts)
		}()
	}
	wg.Wait()

	id, ok := c.GetSecurityID("SPY")
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)
}
