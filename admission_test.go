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
	"errors"
	"testing"

	"github.com/debitrelay/relayer/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueCreatedFixedAdmitsAndLocks(t *testing.T) {
	r, queue, _, _, _ := newTestRelayer(t, 100)
	intent := newTestIntent(model.IntentStatusCreated)

	r.EnqueueCreatedFixed(context.Background(), []*model.PaymentIntent{intent})

	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, JobKindCreatedFixed, queue.enqueued[0].kind)
	assert.Equal(t, intent.PaymentIntent, queue.enqueued[0].intentID)

	locked, err := r.locks.IsLocked(context.Background(), JobKindCreatedFixed.LockKey(intent.PaymentIntent))
	require.NoError(t, err)
	assert.True(t, locked)

	size, err := r.locks.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestEnqueueSkipsIntentAlreadyInFlight(t *testing.T) {
	r, queue, _, _, _ := newTestRelayer(t, 100)
	intent := newTestIntent(model.IntentStatusCreated)

	r.EnqueueCreatedFixed(context.Background(), []*model.PaymentIntent{intent})
	r.EnqueueCreatedFixed(context.Background(), []*model.PaymentIntent{intent})

	assert.Len(t, queue.enqueued, 1)
}

func TestEnqueueSameIntentOnDifferentPaths(t *testing.T) {
	r, queue, _, _, _ := newTestRelayer(t, 100)
	intent := newTestIntent(model.IntentStatusRecurring)

	// the lock is per processing path, not global to the intent
	r.EnqueueRecurringFixed(context.Background(), []*model.PaymentIntent{intent})
	r.EnqueueDynamicPayments(context.Background(), []*model.DynamicPaymentRequestJob{{
		ID:              "dynreq_1",
		PaymentIntent:   intent,
		RequestedAmount: "0.5",
		AllocatedGas:    "0.02",
		Status:          model.DynamicStatusLocked,
	}})

	require.Len(t, queue.enqueued, 2)
	assert.Equal(t, JobKindRecurringFixed, queue.enqueued[0].kind)
	assert.Equal(t, JobKindDynamicPayment, queue.enqueued[1].kind)
}

func TestEnqueueRefusesWhenQueueFull(t *testing.T) {
	r, queue, _, _, _ := newTestRelayer(t, 2)
	intents := []*model.PaymentIntent{
		newTestIntent(model.IntentStatusCreated),
		newTestIntent(model.IntentStatusCreated),
		newTestIntent(model.IntentStatusCreated),
	}

	r.EnqueueCreatedFixed(context.Background(), intents)

	assert.Len(t, queue.enqueued, 2)
	size, err := r.locks.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)
}

func TestEnqueueReleasesLockWhenEnqueueFails(t *testing.T) {
	r, queue, _, _, _ := newTestRelayer(t, 100)
	queue.failWith = errors.New("broker unavailable")
	intent := newTestIntent(model.IntentStatusCreated)

	r.EnqueueCreatedFixed(context.Background(), []*model.PaymentIntent{intent})

	locked, err := r.locks.IsLocked(context.Background(), JobKindCreatedFixed.LockKey(intent.PaymentIntent))
	require.NoError(t, err)
	assert.False(t, locked)

	size, err := r.locks.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	// with the lock released the intent can be admitted again
	queue.failWith = nil
	r.EnqueueCreatedFixed(context.Background(), []*model.PaymentIntent{intent})
	assert.Len(t, queue.enqueued, 1)
}

func TestEnqueueSkipsInvalidIntent(t *testing.T) {
	r, queue, _, _, _ := newTestRelayer(t, 100)
	invalid := newTestIntent(model.IntentStatusCreated)
	invalid.MaxDebitAmount = "not-a-number"
	valid := newTestIntent(model.IntentStatusCreated)

	r.EnqueueCreatedFixed(context.Background(), []*model.PaymentIntent{invalid, valid})

	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, valid.PaymentIntent, queue.enqueued[0].intentID)
}

func TestDynamicLockIsKeyedOnIntent(t *testing.T) {
	r, queue, _, _, _ := newTestRelayer(t, 100)
	first := newTestDynamicJob()
	second := newTestDynamicJob()
	second.PaymentIntent = first.PaymentIntent

	// two requests against the same intent collapse to one in-flight job
	r.EnqueueDynamicPayments(context.Background(), []*model.DynamicPaymentRequestJob{first, second})

	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, first.ID, queue.enqueued[0].payload.(*model.DynamicPaymentRequestJob).ID)
}

func TestJobKindLockKeys(t *testing.T) {
	assert.Equal(t, "intents:FIXED:CREATED:pi_1:LOCK", JobKindCreatedFixed.LockKey("pi_1"))
	assert.Equal(t, "intents:FIXED:RECURRING:pi_1:LOCK", JobKindRecurringFixed.LockKey("pi_1"))
	assert.Equal(t, "intents:DYNAMIC:pi_1:LOCK", JobKindDynamicPayment.LockKey("pi_1"))
	assert.False(t, JobKind("payment_lookup").Valid())
}
