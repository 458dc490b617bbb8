package fx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return NewCache(client, time.Minute)
}

func TestCacheFetchJSONPopulatesOnMiss(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return []ExchangeRate{{CurrencyCode: "USD", Rate: 0.0274, CompanyID: 1}}, nil
	}

	var rates []ExchangeRate
	require.NoError(t, cache.FetchJSON(ctx, 1, &rates, loader))
	require.Len(t, rates, 1)
	require.Equal(t, "USD", rates[0].CurrencyCode)
	require.Equal(t, 1, calls)

	rates = nil
	require.NoError(t, cache.FetchJSON(ctx, 1, &rates, loader))
	require.Len(t, rates, 1)
	require.Equal(t, 1, calls, "second fetch must come from the cache")
}

func TestCacheFetchJSONKeysByCompany(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	loaderFor := func(code string) func(context.Context) (any, error) {
		return func(context.Context) (any, error) {
			return []ExchangeRate{{CurrencyCode: code}}, nil
		}
	}

	var first, second []ExchangeRate
	require.NoError(t, cache.FetchJSON(ctx, 1, &first, loaderFor("USD")))
	require.NoError(t, cache.FetchJSON(ctx, 2, &second, loaderFor("EUR")))
	require.Equal(t, "USD", first[0].CurrencyCode)
	require.Equal(t, "EUR", second[0].CurrencyCode)
}

func TestCacheInvalidateForcesReload(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return []ExchangeRate{{CurrencyCode: "EUR"}}, nil
	}

	var rates []ExchangeRate
	require.NoError(t, cache.FetchJSON(ctx, 5, &rates, loader))
	require.NoError(t, cache.Invalidate(ctx, 5))
	require.NoError(t, cache.FetchJSON(ctx, 5, &rates, loader))
	require.Equal(t, 2, calls)
}

func TestCacheNilClientFallsThrough(t *testing.T) {
	var cache *Cache
	var rates []ExchangeRate
	err := cache.FetchJSON(context.Background(), 1, &rates, func(context.Context) (any, error) {
		return []ExchangeRate{{CurrencyCode: "VES"}}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "VES", rates[0].CurrencyCode)
}
