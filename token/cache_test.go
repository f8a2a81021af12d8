package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstgnz/payflow/apperr"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rc), mr
}

func TestCacheGetRefreshesOnMiss(t *testing.T) {
	c, _ := newTestCache(t)
	calls := 0
	refresh := func(ctx context.Context) (Token, error) {
		calls++
		return Token{Value: "tok-1", ExpiresAt: time.Now().Add(time.Minute)}, nil
	}

	tok, err := c.Get(context.Background(), "stripe:merchant-1", refresh)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.Value)
	assert.Equal(t, 1, calls)

	tok2, err := c.Get(context.Background(), "stripe:merchant-1", refresh)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok2.Value)
	assert.Equal(t, 1, calls, "second call should hit the cache, not refresh")
}

func TestCacheGetCoalescesConcurrentRefresh(t *testing.T) {
	c, _ := newTestCache(t)
	var calls int
	var mu sync.Mutex
	refresh := func(ctx context.Context) (Token, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		return Token{Value: "tok-shared", ExpiresAt: time.Now().Add(time.Minute)}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := c.Get(context.Background(), "iyzico:merchant-2", refresh)
			assert.NoError(t, err)
			assert.Equal(t, "tok-shared", tok.Value)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "concurrent Get calls for the same key should coalesce into one refresh")
}

func TestCacheGetNegativeCachesFailure(t *testing.T) {
	c, _ := newTestCache(t)
	calls := 0
	refresh := func(ctx context.Context) (Token, error) {
		calls++
		return Token{}, errors.New("connector auth endpoint down")
	}

	_, err := c.Get(context.Background(), "papara:merchant-3", refresh)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthTokenUnavailable))
	assert.Equal(t, 1, calls)

	_, err = c.Get(context.Background(), "papara:merchant-3", refresh)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "negative cache should prevent an immediate second refresh attempt")
}

func TestCacheInvalidateForcesRefresh(t *testing.T) {
	c, _ := newTestCache(t)
	calls := 0
	refresh := func(ctx context.Context) (Token, error) {
		calls++
		return Token{Value: "tok", ExpiresAt: time.Now().Add(time.Minute)}, nil
	}

	_, err := c.Get(context.Background(), "akbank:merchant-4", refresh)
	require.NoError(t, err)
	c.Invalidate(context.Background(), "akbank:merchant-4")

	_, err = c.Get(context.Background(), "akbank:merchant-4", refresh)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
