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
	"encoding/json"
	"errors"
	"testing"

	"github.com/debitrelay/relayer/internal/chain"
	"github.com/debitrelay/relayer/model"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func lockedTask(t *testing.T, r *Relayer, kind JobKind, intentID string, payload interface{}) *asynq.Task {
	t.Helper()
	admitted, err := r.locks.TryAdmit(context.Background(), kind.LockKey(intentID))
	require.NoError(t, err)
	require.True(t, admitted)
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(string(kind), data)
}

func TestProcessRelayTaskReleasesLockOnSuccess(t *testing.T) {
	r, _, ds, chainClient, _ := newTestRelayer(t, 100)
	intent := newTestIntent(model.IntentStatusCreated)
	balance := &model.RelayerBalance{ID: "rlb_1", UserID: intent.PayeeUserID, Network: intent.Network, Balance: "0.001"}

	ds.On("GetRelayerBalanceByUserID", mock.Anything, intent.PayeeUserID, intent.Network).Return(balance, nil)
	chainClient.On("EstimateFixedPaymentGas", mock.Anything, mock.Anything).Return(&chain.FixedGasEstimate{
		RelayerBalanceEnough: false,
		TotalFee:             units(t, "0.01"),
	})
	ds.On("UpdatePaymentIntentBalanceTooLow", mock.Anything, intent.PaymentIntent, "0.01").Return(nil)

	task := lockedTask(t, r, JobKindCreatedFixed, intent.PaymentIntent, intent)
	err := r.ProcessRelayTask(context.Background(), task)
	require.NoError(t, err)

	locked, err := r.locks.IsLocked(context.Background(), JobKindCreatedFixed.LockKey(intent.PaymentIntent))
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestProcessRelayTaskReleasesLockOnHandlerError(t *testing.T) {
	r, _, ds, _, _ := newTestRelayer(t, 100)
	intent := newTestIntent(model.IntentStatusCreated)

	ds.On("GetRelayerBalanceByUserID", mock.Anything, intent.PayeeUserID, intent.Network).
		Return(nil, errors.New("relayer balance not found"))

	task := lockedTask(t, r, JobKindCreatedFixed, intent.PaymentIntent, intent)
	err := r.ProcessRelayTask(context.Background(), task)

	// the lock is gone, so the broker must not redeliver this task
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	locked, err := r.locks.IsLocked(context.Background(), JobKindCreatedFixed.LockKey(intent.PaymentIntent))
	require.NoError(t, err)
	assert.False(t, locked)

	size, err := r.locks.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestProcessRelayTaskDynamicReleasesLock(t *testing.T) {
	r, _, ds, chainClient, _ := newTestRelayer(t, 100)
	job := newTestDynamicJob()

	chainClient.On("EstimateDynamicPaymentGas", mock.Anything, mock.Anything).Return(&chain.DynamicGasEstimate{
		AllocatedGasEnough: false,
	})
	ds.On("UpdateDynamicPaymentRequestJobStatus", mock.Anything, job.ID, model.DynamicStatusUnlocked).Return(nil)

	task := lockedTask(t, r, JobKindDynamicPayment, job.PaymentIntent.PaymentIntent, job)
	err := r.ProcessRelayTask(context.Background(), task)
	require.NoError(t, err)

	locked, err := r.locks.IsLocked(context.Background(), JobKindDynamicPayment.LockKey(job.PaymentIntent.PaymentIntent))
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestProcessRelayTaskUnknownKind(t *testing.T) {
	r, _, _, _, _ := newTestRelayer(t, 100)

	task := asynq.NewTask("payment_lookup", []byte(`{}`))
	err := r.ProcessRelayTask(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessRelayTaskMalformedPayload(t *testing.T) {
	r, _, _, _, _ := newTestRelayer(t, 100)

	task := asynq.NewTask(string(JobKindCreatedFixed), []byte(`{not json`))
	err := r.ProcessRelayTask(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRegisterHandlersCoversAllKinds(t *testing.T) {
	r, _, _, _, _ := newTestRelayer(t, 100)

	mux := asynq.NewServeMux()
	r.RegisterHandlers(mux)

	for _, kind := range []JobKind{JobKindCreatedFixed, JobKindRecurringFixed, JobKindDynamicPayment} {
		h, pattern := mux.Handler(asynq.NewTask(string(kind), nil))
		require.NotNil(t, h)
		assert.Equal(t, string(kind), pattern)
	}
}
