/*
Copyright 2026 DebitRelay Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package lockstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, capacity int64) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, capacity), mr
}

func TestTryAdmitIsIdempotentPerLock(t *testing.T) {
	store, _ := newTestStore(t, 100)
	ctx := context.Background()

	admitted, err := store.TryAdmit(ctx, "intents:FIXED:CREATED:pi_1:LOCK")
	require.NoError(t, err)
	assert.True(t, admitted)

	// second attempt for the same lock is refused without touching the counter
	admitted, err = store.TryAdmit(ctx, "intents:FIXED:CREATED:pi_1:LOCK")
	require.NoError(t, err)
	assert.False(t, admitted)

	size, err := store.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestReleaseAllowsReadmission(t *testing.T) {
	store, _ := newTestStore(t, 100)
	ctx := context.Background()
	key := "intents:DYNAMIC:dyn_1:LOCK"

	admitted, err := store.TryAdmit(ctx, key)
	require.NoError(t, err)
	require.True(t, admitted)

	require.NoError(t, store.Release(ctx, key))

	locked, err := store.IsLocked(ctx, key)
	require.NoError(t, err)
	assert.False(t, locked)

	size, err := store.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	admitted, err = store.TryAdmit(ctx, key)
	require.NoError(t, err)
	assert.True(t, admitted)
}

func TestBackpressureAtCapacity(t *testing.T) {
	store, _ := newTestStore(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		admitted, err := store.TryAdmit(ctx, fmt.Sprintf("intents:DYNAMIC:dyn_%d:LOCK", i))
		require.NoError(t, err)
		require.True(t, admitted)
	}

	// queue is full, a brand-new intent is refused and the counter is unchanged
	admitted, err := store.TryAdmit(ctx, "intents:DYNAMIC:dyn_new:LOCK")
	require.NoError(t, err)
	assert.False(t, admitted)

	size, err := store.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)

	locked, err := store.IsLocked(ctx, "intents:DYNAMIC:dyn_new:LOCK")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestDoubleReleaseDoesNotUnderflowCounter(t *testing.T) {
	store, _ := newTestStore(t, 100)
	ctx := context.Background()

	admitted, err := store.TryAdmit(ctx, "intents:FIXED:RECURRING:pi_1:LOCK")
	require.NoError(t, err)
	require.True(t, admitted)
	admitted, err = store.TryAdmit(ctx, "intents:FIXED:RECURRING:pi_2:LOCK")
	require.NoError(t, err)
	require.True(t, admitted)

	require.NoError(t, store.Release(ctx, "intents:FIXED:RECURRING:pi_1:LOCK"))
	require.NoError(t, store.Release(ctx, "intents:FIXED:RECURRING:pi_1:LOCK"))
	require.NoError(t, store.Release(ctx, "intents:FIXED:RECURRING:pi_1:LOCK"))

	size, err := store.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	require.NoError(t, store.Release(ctx, "intents:FIXED:RECURRING:pi_2:LOCK"))
	require.NoError(t, store.Release(ctx, "intents:FIXED:RECURRING:pi_2:LOCK"))

	size, err = store.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestConcurrentAdmissionAdmitsExactlyOnce(t *testing.T) {
	store, _ := newTestStore(t, 100)
	ctx := context.Background()

	var admittedCount int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admitted, err := store.TryAdmit(ctx, "intents:FIXED:CREATED:contended:LOCK")
			assert.NoError(t, err)
			if admitted {
				atomic.AddInt64(&admittedCount, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), admittedCount)

	size, err := store.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestCounterConservation(t *testing.T) {
	store, _ := newTestStore(t, 100)
	ctx := context.Background()

	var enqueued, released int64
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("intents:FIXED:CREATED:pi_%d:LOCK", i)
		admitted, err := store.TryAdmit(ctx, key)
		require.NoError(t, err)
		if admitted {
			enqueued++
		}
		if i%2 == 0 {
			require.NoError(t, store.Release(ctx, key))
			released++
		}
	}

	size, err := store.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, enqueued-released, size)
}

func TestTryAdmitPropagatesRedisErrors(t *testing.T) {
	client, rmock := redismock.NewClientMock()
	store := NewStore(client, 10)

	lockKey := "intents:FIXED:CREATED:pi_1:LOCK"
	// the admission timestamp argument varies, match on script and keys only
	rmock.CustomMatch(func(expected, actual []interface{}) error {
		return nil
	}).ExpectEval(admitScript, []string{lockKey, SizeKey}, int64(10), int64(0)).
		SetErr(errors.New("connection refused"))

	admitted, err := store.TryAdmit(context.Background(), lockKey)
	require.Error(t, err)
	assert.False(t, admitted)
	require.NoError(t, rmock.ExpectationsWereMet())
}

func TestReleasePropagatesRedisErrors(t *testing.T) {
	client, rmock := redismock.NewClientMock()
	store := NewStore(client, 10)

	lockKey := "intents:DYNAMIC:pi_1:LOCK"
	rmock.ExpectEval(releaseScript, []string{lockKey, SizeKey}).
		SetErr(errors.New("connection refused"))

	err := store.Release(context.Background(), lockKey)
	require.Error(t, err)
	require.NoError(t, rmock.ExpectationsWereMet())
}
