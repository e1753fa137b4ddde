package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/page-tracker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract checks the behaviour every Store adapter shares.
// Expiry is adapter specific and tested next to each adapter.
func runStoreContract(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("incr creates counter at one", func(t *testing.T) {
		s := newStore(t)
		n, err := s.Incr(ctx, "count:http://a")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.Incr(ctx, "count:http://a")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("get missing key", func(t *testing.T) {
		s := newStore(t)
		val, found, err := s.Get(ctx, "result:missing")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, val)
	})

	t.Run("setex then get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SetEx(ctx, "result:http://a", "<html>a</html>", 10*time.Second))

		val, found, err := s.Get(ctx, "result:http://a")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "<html>a</html>", val)
	})

	t.Run("setex overwrites", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SetEx(ctx, "result:http://a", "one", 10*time.Second))
		require.NoError(t, s.SetEx(ctx, "result:http://a", "two", 10*time.Second))

		val, found, err := s.Get(ctx, "result:http://a")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "two", val)
	})

	t.Run("empty value is found", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SetEx(ctx, "result:empty", "", 10*time.Second))

		val, found, err := s.Get(ctx, "result:empty")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Empty(t, val)
	})

	t.Run("counter readable with get", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 3; i++ {
			_, err := s.Incr(ctx, "count:http://b")
			require.NoError(t, err)
		}
		val, found, err := s.Get(ctx, "count:http://b")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "3", val)
	})

	t.Run("non-positive ttl rejected", func(t *testing.T) {
		s := newStore(t)
		err := s.SetEx(ctx, "result:http://a", "x", 0)
		var storeErr *store.StoreError
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, store.ErrCauseCommandFailed, storeErr.Cause)
	})

	t.Run("concurrent incr is atomic", func(t *testing.T) {
		s := newStore(t)
		const workers = 20
		const perWorker = 25

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					_, err := s.Incr(ctx, "count:http://hot")
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		val, found, err := s.Get(ctx, "count:http://hot")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, fmt.Sprint(workers*perWorker), val)
	})

	t.Run("keys differing by one byte are independent", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Incr(ctx, "count:http://a")
		require.NoError(t, err)
		n, err := s.Incr(ctx, "count:http://a/")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
