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

package relayer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/debitrelay/relayer/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backdateLock(t *testing.T, mr interface{ Set(string, string) error }, lockKey string, age time.Duration) {
	t.Helper()
	require.NoError(t, mr.Set(lockKey, fmt.Sprint(time.Now().Add(-age).Unix())))
}

func TestReapReleasesLockWithoutQueuedTask(t *testing.T) {
	r, _, _, _, mr := newTestRelayer(t, 100)
	intent := newTestIntent(model.IntentStatusCreated)
	lockKey := JobKindCreatedFixed.LockKey(intent.PaymentIntent)

	// lock and counter committed, but the process died before the enqueue
	admitted, err := r.locks.TryAdmit(context.Background(), lockKey)
	require.NoError(t, err)
	require.True(t, admitted)
	backdateLock(t, mr, lockKey, 10*time.Minute)

	reaped, err := r.ReapOrphanedLocks(context.Background(), 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	locked, err := r.locks.IsLocked(context.Background(), lockKey)
	require.NoError(t, err)
	assert.False(t, locked)

	size, err := r.locks.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestReapedIntentCanBeAdmittedAgain(t *testing.T) {
	r, queue, _, _, mr := newTestRelayer(t, 100)
	intent := newTestIntent(model.IntentStatusCreated)
	lockKey := JobKindCreatedFixed.LockKey(intent.PaymentIntent)

	admitted, err := r.locks.TryAdmit(context.Background(), lockKey)
	require.NoError(t, err)
	require.True(t, admitted)
	backdateLock(t, mr, lockKey, 10*time.Minute)

	_, err = r.ReapOrphanedLocks(context.Background(), 5*time.Minute)
	require.NoError(t, err)

	r.EnqueueCreatedFixed(context.Background(), []*model.PaymentIntent{intent})
	assert.Len(t, queue.enqueued, 1)
}

func TestReapKeepsLockBackedByQueuedTask(t *testing.T) {
	r, _, _, _, mr := newTestRelayer(t, 100)
	intent := newTestIntent(model.IntentStatusCreated)
	lockKey := JobKindCreatedFixed.LockKey(intent.PaymentIntent)

	// a real admission: the stub queue knows the task
	r.EnqueueCreatedFixed(context.Background(), []*model.PaymentIntent{intent})
	backdateLock(t, mr, lockKey, 10*time.Minute)

	reaped, err := r.ReapOrphanedLocks(context.Background(), 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, reaped)

	locked, err := r.locks.IsLocked(context.Background(), lockKey)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestReapKeepsFreshLock(t *testing.T) {
	r, _, _, _, _ := newTestRelayer(t, 100)
	intent := newTestIntent(model.IntentStatusCreated)
	lockKey := JobKindCreatedFixed.LockKey(intent.PaymentIntent)

	// admitted moments ago: its enqueue may still be in progress
	admitted, err := r.locks.TryAdmit(context.Background(), lockKey)
	require.NoError(t, err)
	require.True(t, admitted)

	reaped, err := r.ReapOrphanedLocks(context.Background(), 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, reaped)

	locked, err := r.locks.IsLocked(context.Background(), lockKey)
	require.NoError(t, err)
	assert.True(t, locked)
}
